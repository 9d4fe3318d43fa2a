package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"placement/internal/common"
	"placement/internal/domain/analytics"
	"placement/internal/domain/student"
)

// StudentService is the profile-update collaborator. Consent, verification and
// placement fields are never written through it.
type StudentService struct {
	students   student.Repository
	completion ProfileCompletion
	analytics  analytics.Repository
	clock      func() time.Time
}

func NewStudentService(students student.Repository, completion ProfileCompletion, analytics analytics.Repository) *StudentService {
	if completion == nil {
		completion = RequiredFields{}
	}
	return &StudentService{students: students, completion: completion, analytics: analytics, clock: func() time.Time { return time.Now().UTC() }}
}

type ProfileInput struct {
	Email           string
	Name            string
	RollNumber      string
	Phone           string
	Department      string
	CGPA            string
	CurrentBacklogs string
	Batch           string
	GraduationYear  int
	Skills          []string
	ResumeURL       string
}

type ProfileView struct {
	student.Profile
	ProfileComplete bool     `json:"is_profile_complete"`
	MissingFields   []string `json:"missing_fields"`
}

func (s *StudentService) Get(ctx context.Context, actor Actor) (*ProfileView, error) {
	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.view(*profile), nil
}

func (s *StudentService) Update(ctx context.Context, actor Actor, input ProfileInput) (*ProfileView, error) {
	fields := map[string]string{}
	if cgpa := strings.TrimSpace(input.CGPA); cgpa != "" {
		value, err := strconv.ParseFloat(cgpa, 64)
		if err != nil || value < 0 || value > 10 {
			fields["cgpa"] = "cgpa must be a number between 0 and 10"
		}
	}
	if backlogs := strings.TrimSpace(input.CurrentBacklogs); backlogs != "" {
		value, err := strconv.Atoi(backlogs)
		if err != nil || value < 0 {
			fields["current_backlogs"] = "current_backlogs must be a non-negative integer"
		}
	}
	if input.GraduationYear < 0 {
		fields["graduation_year"] = "graduation_year must be positive"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid profile", fields)
	}

	profile := student.Profile{ID: actor.UserID, PlacementStatus: student.PlacementUnplaced}
	if existing, err := s.students.GetByID(ctx, actor.UserID); err == nil {
		profile = *existing
	} else if !common.Is(err, common.CodeNotFound) {
		return nil, err
	}
	profile.Email = strings.TrimSpace(input.Email)
	profile.Name = strings.TrimSpace(input.Name)
	profile.RollNumber = strings.TrimSpace(input.RollNumber)
	profile.Phone = strings.TrimSpace(input.Phone)
	profile.Department = strings.TrimSpace(input.Department)
	profile.CGPA = strings.TrimSpace(input.CGPA)
	profile.CurrentBacklogs = strings.TrimSpace(input.CurrentBacklogs)
	profile.Batch = strings.TrimSpace(input.Batch)
	profile.GraduationYear = input.GraduationYear
	profile.Skills = input.Skills
	profile.ResumeURL = strings.TrimSpace(input.ResumeURL)
	profile.UpdatedAt = s.clock()

	saved, err := s.students.Upsert(ctx, profile)
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "student.profile_updated", UserID: &actor.UserID, Payload: analyticsPayload(ctx, nil)})
	return s.view(*saved), nil
}

func (s *StudentService) view(p student.Profile) *ProfileView {
	complete, missing := s.completion.Check(p)
	if missing == nil {
		missing = []string{}
	}
	return &ProfileView{Profile: p, ProfileComplete: complete, MissingFields: missing}
}
