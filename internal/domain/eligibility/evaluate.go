package eligibility

import (
	"slices"

	"placement/internal/domain/drive"
)

// UpgradeCTC is the package (LPA) a drive must strictly exceed for an already
// placed student to apply.
const UpgradeCTC = 10.0

type Reason string

const (
	ReasonMinCGPA       Reason = "min_cgpa"
	ReasonDepartment    Reason = "department"
	ReasonMaxBacklogs   Reason = "max_backlogs"
	ReasonBatch         Reason = "batch"
	ReasonAlreadyPlaced Reason = "already_placed"
	ReasonUnplacedOnly  Reason = "unplaced_only"
)

type Result struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
}

func fail(reason Reason) Result {
	return Result{Reason: reason}
}

// Evaluate checks rule against p and stops at the first failing criterion.
// Criteria that are unset or empty always pass.
func Evaluate(rule drive.EligibilityRule, p Normalized, terms drive.Terms) Result {
	rule = drive.NormalizeRule(rule)

	if rule.MinCGPA != nil && *rule.MinCGPA > p.CGPA {
		return fail(ReasonMinCGPA)
	}
	if len(rule.AllowedDepartments) > 0 && !slices.Contains(rule.AllowedDepartments, p.Department) {
		return fail(ReasonDepartment)
	}
	if rule.MaxBacklogs != nil && *rule.MaxBacklogs < p.Backlogs {
		return fail(ReasonMaxBacklogs)
	}
	if len(rule.AllowedBatches) > 0 && (p.Batch == "" || !slices.Contains(rule.AllowedBatches, p.Batch)) {
		return fail(ReasonBatch)
	}
	if p.IsPlaced {
		if terms.UnplacedOnly {
			return fail(ReasonUnplacedOnly)
		}
		if terms.CTC <= UpgradeCTC {
			return fail(ReasonAlreadyPlaced)
		}
	}
	return Result{Eligible: true}
}
