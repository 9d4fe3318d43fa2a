package eligibility

import (
	"math"
	"strconv"
	"strings"

	"placement/internal/domain/student"
)

// Normalized is the canonical view of a profile used for rule comparison.
// An empty Batch means the batch is unknown.
type Normalized struct {
	Department string
	Batch      string
	CGPA       float64
	Backlogs   int
	IsPlaced   bool
}

// Normalize never fails. Missing or unparseable values fall back to the most
// restrictive comparable default.
func Normalize(p student.Profile) Normalized {
	return Normalized{
		Department: NormalizeDepartment(p.Department),
		Batch:      normalizeBatch(p),
		CGPA:       parseFloat(p.CGPA),
		Backlogs:   parseInt(p.CurrentBacklogs),
		IsPlaced:   p.IsPlaced || p.PlacementStatus == student.PlacementPlaced,
	}
}

func NormalizeDepartment(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeBatch(p student.Profile) string {
	if batch := strings.TrimSpace(p.Batch); batch != "" {
		return batch
	}
	if p.GraduationYear > 0 {
		return strconv.Itoa(p.GraduationYear)
	}
	return ""
}

func parseFloat(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

func parseInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if value, err := strconv.Atoi(raw); err == nil {
		return value
	}
	// "2.0" style values written by older clients
	if value, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(value) && !math.IsInf(value, 0) {
		return int(value)
	}
	return 0
}
