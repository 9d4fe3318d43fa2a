package app

import (
	"strings"

	"placement/internal/domain/student"
)

// ProfileCompletion reports whether a profile is complete and, if not, which
// fields are missing.
type ProfileCompletion interface {
	Check(profile student.Profile) (bool, []string)
}

// RequiredFields is the default completion calculator: each listed field must
// be filled in.
type RequiredFields struct{}

func (RequiredFields) Check(p student.Profile) (bool, []string) {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", p.Name)
	check("email", p.Email)
	check("roll_number", p.RollNumber)
	check("phone", p.Phone)
	check("department", p.Department)
	check("cgpa", p.CGPA)
	check("current_backlogs", p.CurrentBacklogs)
	if strings.TrimSpace(p.Batch) == "" && p.GraduationYear <= 0 {
		missing = append(missing, "batch")
	}
	check("resume_url", p.ResumeURL)
	return len(missing) == 0, missing
}
