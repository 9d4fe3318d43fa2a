package drive

import (
	"encoding/json"
	"strings"
	"time"

	"placement/internal/common"
)

// PlacementState is the one-way placement lifecycle of a drive.
type PlacementState string

const (
	PlacementOpen      PlacementState = "open"
	PlacementFinalized PlacementState = "finalized"
)

type ApplicationStatus string

const (
	ApplicationApplied ApplicationStatus = "applied"
	ApplicationPlaced  ApplicationStatus = "placed"
)

// EligibilityRule criteria that are nil or empty do not restrict.
type EligibilityRule struct {
	MinCGPA            *float64 `json:"min_cgpa,omitempty"`
	MaxBacklogs        *int     `json:"max_backlogs,omitempty"`
	AllowedDepartments []string `json:"allowed_departments"`
	AllowedBatches     []string `json:"allowed_batches"`
}

// StudentSnapshot is copied from the profile at apply time.
type StudentSnapshot struct {
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
	Department string `json:"department"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

type Application struct {
	StudentID common.UUID       `json:"student_id"`
	AppliedAt time.Time         `json:"applied_at"`
	Status    ApplicationStatus `json:"status"`
	Student   StudentSnapshot   `json:"student"`
}

type PlacedStudent struct {
	StudentID common.UUID `json:"student_id"`
	StudentSnapshot
}

type JobDrive struct {
	ID              common.UUID      `json:"id"`
	CompanyName     string           `json:"company_name"`
	JobType         string           `json:"job_type"`
	Description     string           `json:"description"`
	CTC             float64          `json:"ctc"`
	Location        string           `json:"location"`
	Date            time.Time        `json:"date"`
	Deadline        *time.Time       `json:"deadline,omitempty"`
	Time            string           `json:"time,omitempty"`
	IsActive        bool             `json:"is_active"`
	UnplacedOnly    bool             `json:"unplaced_only"`
	Eligibility     EligibilityRule  `json:"eligibility"`
	Applications    []Application    `json:"applications"`
	SelectionRounds []SelectionRound `json:"selection_rounds"`
	PlacedStudents  []PlacedStudent  `json:"placed_students"`
	Placement       PlacementState   `json:"placement_state"`
	FinalizedAt     *time.Time       `json:"finalized_at,omitempty"`
	CreatedBy       common.UUID      `json:"created_by"`
	Department      string           `json:"department"`
	Version         int              `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (d JobDrive) MarshalJSON() ([]byte, error) {
	type alias JobDrive
	return json.Marshal(struct {
		alias
		PlacementFinalized bool `json:"placement_finalized"`
	}{alias: alias(d), PlacementFinalized: d.Finalized()})
}

func (d *JobDrive) Finalized() bool {
	return d.Placement == PlacementFinalized
}

func (d *JobDrive) ensureOpen() error {
	if d.Finalized() {
		return common.NewError(common.CodeAlreadyFinalized, "placement already finalized for this drive", nil)
	}
	return nil
}

func (d *JobDrive) FindApplication(studentID common.UUID) (*Application, bool) {
	for i := range d.Applications {
		if d.Applications[i].StudentID == studentID {
			return &d.Applications[i], true
		}
	}
	return nil, false
}

func (d *JobDrive) HasApplied(studentID common.UUID) bool {
	_, ok := d.FindApplication(studentID)
	return ok
}

// AddApplication appends app unless the student already applied.
func (d *JobDrive) AddApplication(app Application) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	if d.HasApplied(app.StudentID) {
		return common.NewError(common.CodeAlreadyApplied, "already applied to this drive", nil)
	}
	if app.Status == "" {
		app.Status = ApplicationApplied
	}
	d.Applications = append(d.Applications, app)
	return nil
}

// Clone returns a deep copy so cached drives are never mutated in place.
func (d JobDrive) Clone() JobDrive {
	out := d
	out.Eligibility.AllowedDepartments = append([]string(nil), d.Eligibility.AllowedDepartments...)
	out.Eligibility.AllowedBatches = append([]string(nil), d.Eligibility.AllowedBatches...)
	out.Applications = append([]Application(nil), d.Applications...)
	out.PlacedStudents = append([]PlacedStudent(nil), d.PlacedStudents...)
	out.SelectionRounds = make([]SelectionRound, len(d.SelectionRounds))
	for i, round := range d.SelectionRounds {
		round.SelectedStudents = append([]common.UUID(nil), round.SelectedStudents...)
		out.SelectionRounds[i] = round
	}
	return out
}

// NormalizeJobType resolves the legacy "type" alias of job_type.
func NormalizeJobType(jobType, legacyType string) string {
	if value := strings.TrimSpace(jobType); value != "" {
		return value
	}
	return strings.TrimSpace(legacyType)
}

// NormalizeRule canonicalizes department and batch lists for comparison.
func NormalizeRule(rule EligibilityRule) EligibilityRule {
	out := rule
	out.AllowedDepartments = normalizeList(rule.AllowedDepartments, true)
	out.AllowedBatches = normalizeList(rule.AllowedBatches, false)
	return out
}

func normalizeList(values []string, lower bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if lower {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// Terms are the drive attributes the placement-status rule looks at.
type Terms struct {
	CTC          float64
	UnplacedOnly bool
}

func (d *JobDrive) Terms() Terms {
	return Terms{CTC: d.CTC, UnplacedOnly: d.UnplacedOnly}
}
