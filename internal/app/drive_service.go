package app

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"placement/internal/common"
	"placement/internal/domain/analytics"
	"placement/internal/domain/drive"
	"placement/internal/domain/eligibility"
	"placement/internal/domain/student"
	"placement/internal/export"
	"placement/internal/observability"
)

const (
	defaultDriveListLimit = 20
	maxDriveListLimit     = 100
)

type DriveService struct {
	drives     drive.Repository
	students   student.Repository
	analytics  analytics.Repository
	completion ProfileCompletion
	cache      *DriveCache
	locks      *KeyedLocker
	location   *time.Location
	logger     *slog.Logger
	clock      func() time.Time
}

type DriveServiceOptions struct {
	Completion ProfileCompletion
	Cache      *DriveCache
	Locks      *KeyedLocker
	Location   *time.Location
	Logger     *slog.Logger
}

func NewDriveService(drives drive.Repository, students student.Repository, analytics analytics.Repository, opts DriveServiceOptions) *DriveService {
	s := &DriveService{
		drives:     drives,
		students:   students,
		analytics:  analytics,
		completion: opts.Completion,
		cache:      opts.Cache,
		locks:      opts.Locks,
		location:   opts.Location,
		logger:     opts.Logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
	if s.completion == nil {
		s.completion = RequiredFields{}
	}
	if s.locks == nil {
		s.locks = NewKeyedLocker()
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type CreateDriveInput struct {
	CompanyName  string
	JobType      string
	LegacyType   string
	Description  string
	CTC          float64
	Location     string
	Date         time.Time
	Deadline     *time.Time
	Time         string
	IsActive     *bool
	UnplacedOnly bool
	Eligibility  drive.EligibilityRule
	Rounds       []string
}

// UpdateDriveInput patches a drive; nil fields are left unchanged.
type UpdateDriveInput struct {
	Description  *string
	Location     *string
	CTC          *float64
	Date         *time.Time
	Deadline     *time.Time
	Time         *string
	IsActive     *bool
	UnplacedOnly *bool
	Eligibility  *drive.EligibilityRule
	Rounds       []string
}

func (s *DriveService) CreateDrive(ctx context.Context, actor Actor, input CreateDriveInput) (*drive.JobDrive, error) {
	if !actor.CanPost() {
		return nil, common.NewError(common.CodeForbidden, "only placement staff can post drives", nil)
	}
	fields := map[string]string{}
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	if input.CompanyName == "" {
		fields["company_name"] = "company_name is required"
	}
	if input.Date.IsZero() {
		fields["date"] = "date is required"
	}
	if input.CTC < 0 {
		fields["ctc"] = "ctc must not be negative"
	}
	validateRule(input.Eligibility, fields)
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid drive", fields)
	}

	now := s.clock()
	deadline := input.Deadline
	if deadline == nil || deadline.IsZero() {
		value := drive.DefaultDeadline(input.Date)
		deadline = &value
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	d := drive.JobDrive{
		ID:              common.NewUUID(),
		CompanyName:     input.CompanyName,
		JobType:         drive.NormalizeJobType(input.JobType, input.LegacyType),
		Description:     strings.TrimSpace(input.Description),
		CTC:             input.CTC,
		Location:        strings.TrimSpace(input.Location),
		Date:            input.Date,
		Deadline:        deadline,
		Time:            strings.TrimSpace(input.Time),
		IsActive:        active,
		UnplacedOnly:    input.UnplacedOnly,
		Eligibility:     drive.NormalizeRule(input.Eligibility),
		Applications:    []drive.Application{},
		SelectionRounds: drive.NewRounds(input.Rounds),
		PlacedStudents:  []drive.PlacedStudent{},
		Placement:       drive.PlacementOpen,
		CreatedBy:       actor.UserID,
		Department:      eligibility.NormalizeDepartment(actor.Department),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := s.drives.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("job drive created", slog.String("drive_id", created.ID.String()), slog.String("company", created.CompanyName))
	_ = s.analytics.Create(ctx, analytics.Event{Name: "drive.created", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": created.ID.String()})})
	return created, nil
}

func (s *DriveService) UpdateDrive(ctx context.Context, actor Actor, id common.UUID, input UpdateDriveInput) (*drive.JobDrive, error) {
	fields := map[string]string{}
	if input.CTC != nil && *input.CTC < 0 {
		fields["ctc"] = "ctc must not be negative"
	}
	if input.Eligibility != nil {
		validateRule(*input.Eligibility, fields)
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid drive", fields)
	}

	updated, err := s.mutate(ctx, actor, id, func(d *drive.JobDrive) error {
		if d.Finalized() {
			return common.NewError(common.CodeAlreadyFinalized, "placement already finalized for this drive", nil)
		}
		if input.Rounds != nil {
			if err := applyRoundNames(d, input.Rounds); err != nil {
				return err
			}
		}
		if input.Description != nil {
			d.Description = strings.TrimSpace(*input.Description)
		}
		if input.Location != nil {
			d.Location = strings.TrimSpace(*input.Location)
		}
		if input.CTC != nil {
			d.CTC = *input.CTC
		}
		if input.Date != nil {
			d.Date = *input.Date
		}
		if input.Deadline != nil {
			deadline := *input.Deadline
			d.Deadline = &deadline
		}
		if input.Time != nil {
			d.Time = strings.TrimSpace(*input.Time)
		}
		if input.IsActive != nil {
			d.IsActive = *input.IsActive
		}
		if input.UnplacedOnly != nil {
			d.UnplacedOnly = *input.UnplacedOnly
		}
		if input.Eligibility != nil {
			d.Eligibility = drive.NormalizeRule(*input.Eligibility)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "drive.updated", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": id.String()})})
	return updated, nil
}

// applyRoundNames renames existing rounds in place and appends new ones. Once
// the drive has applications the list may only grow.
func applyRoundNames(d *drive.JobDrive, names []string) error {
	rounds := drive.NewRounds(names)
	if len(d.Applications) > 0 && len(rounds) < len(d.SelectionRounds) {
		return common.NewValidationError("invalid rounds", map[string]string{"rounds": "rounds cannot be removed once students have applied"})
	}
	for i := range rounds {
		if i < len(d.SelectionRounds) {
			existing := d.SelectionRounds[i]
			existing.Name = rounds[i].Name
			rounds[i] = existing
		}
	}
	d.SelectionRounds = rounds
	return nil
}

func validateRule(rule drive.EligibilityRule, fields map[string]string) {
	if rule.MinCGPA != nil && (*rule.MinCGPA < 0 || *rule.MinCGPA > 10) {
		fields["eligibility.min_cgpa"] = "min_cgpa must be between 0 and 10"
	}
	if rule.MaxBacklogs != nil && *rule.MaxBacklogs < 0 {
		fields["eligibility.max_backlogs"] = "max_backlogs must not be negative"
	}
}

func (s *DriveService) GetDrive(ctx context.Context, id common.UUID) (*drive.JobDrive, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached, nil
	}
	d, err := s.drives.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(*d)
	return d, nil
}

func (s *DriveService) ListDrives(ctx context.Context, limit, offset int) ([]drive.JobDrive, error) {
	if limit <= 0 {
		limit = defaultDriveListLimit
	}
	if limit > maxDriveListLimit {
		limit = maxDriveListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.drives.ListActive(ctx, limit, offset)
}

func (s *DriveService) ListApplications(ctx context.Context, actor Actor) ([]drive.JobDrive, error) {
	return s.drives.ListByApplicant(ctx, actor.UserID)
}

// Apply is the only path that adds applications to a drive.
func (s *DriveService) Apply(ctx context.Context, actor Actor, driveID common.UUID) (_ *drive.Application, err error) {
	defer func() { applicationsTotal.WithLabelValues(outcome(err)).Inc() }()

	if !actor.CanApply() {
		return nil, common.NewError(common.CodeForbidden, "only students can apply to drives", nil)
	}
	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return nil, common.NewError(common.CodeConsentRequired, "student profile is required", nil).
				WithDetail("reason", common.ReasonProfileIncomplete).
				WithDetail("missing_fields", []string{"profile"})
		}
		return nil, err
	}

	unlock := s.locks.Lock(driveLockKey(driveID))
	defer unlock()

	d, err := s.drives.GetByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.checkApply(d, actor, *profile, now); err != nil {
		return nil, err
	}
	application := drive.Application{
		StudentID: actor.UserID,
		AppliedAt: now,
		Status:    drive.ApplicationApplied,
		Student: drive.StudentSnapshot{
			Name:       profile.Name,
			RollNumber: profile.RollNumber,
			Department: profile.Department,
			Email:      profile.Email,
			Phone:      profile.Phone,
		},
	}
	if err := d.AddApplication(application); err != nil {
		return nil, err
	}
	d.UpdatedAt = now
	if _, err := s.save(ctx, *d); err != nil {
		return nil, err
	}

	s.log(ctx).Info("application recorded", slog.String("drive_id", driveID.String()), slog.String("student_id", actor.UserID.String()))
	_ = s.analytics.Create(ctx, analytics.Event{Name: "application.created", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": driveID.String()})})
	return &application, nil
}

func (s *DriveService) checkApply(d *drive.JobDrive, actor Actor, profile student.Profile, now time.Time) error {
	if d.Finalized() {
		return common.NewError(common.CodeAlreadyFinalized, "placement already finalized for this drive", nil)
	}
	if !d.IsActive {
		return common.NewError(common.CodeNotActive, "drive is not accepting applications", nil)
	}
	if d.DeadlinePassed(now, s.location) {
		return common.NewError(common.CodeDeadlinePassed, "application deadline has passed", nil).
			WithDetail("deadline", d.EffectiveDeadline(s.location))
	}
	if d.HasApplied(actor.UserID) {
		return common.NewError(common.CodeAlreadyApplied, "already applied to this drive", nil)
	}
	if err := CheckConsent(profile, actor.Role == RoleStudent, s.completion); err != nil {
		return err
	}
	result := eligibility.Evaluate(d.Eligibility, eligibility.Normalize(profile), d.Terms())
	if !result.Eligible {
		return common.NewError(common.CodeNotEligible, "you are not eligible for this drive", nil).
			WithDetail("reason", string(result.Reason))
	}
	return nil
}

type EligibilityPreview struct {
	DriveID         common.UUID        `json:"drive_id"`
	Eligible        bool               `json:"eligible"`
	Reason          eligibility.Reason `json:"reason,omitempty"`
	AlreadyApplied  bool               `json:"already_applied"`
	DeadlinePassed  bool               `json:"deadline_passed"`
	Deadline        time.Time          `json:"deadline"`
	ConsentRequired string             `json:"consent_required,omitempty"`
	CanApply        bool               `json:"can_apply"`
}

// PreviewEligibility runs the apply checks without recording anything.
func (s *DriveService) PreviewEligibility(ctx context.Context, actor Actor, driveID common.UUID) (*EligibilityPreview, error) {
	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	d, err := s.GetDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	result := eligibility.Evaluate(d.Eligibility, eligibility.Normalize(*profile), d.Terms())
	preview := &EligibilityPreview{
		DriveID:        d.ID,
		Eligible:       result.Eligible,
		Reason:         result.Reason,
		AlreadyApplied: d.HasApplied(actor.UserID),
		DeadlinePassed: d.DeadlinePassed(now, s.location),
		Deadline:       d.EffectiveDeadline(s.location),
	}
	if err := CheckConsent(*profile, actor.Role == RoleStudent, s.completion); err != nil {
		preview.ConsentRequired = common.Reason(err)
	}
	preview.CanApply = actor.CanApply() && s.checkApply(d, actor, *profile, now) == nil
	return preview, nil
}

func (s *DriveService) AddRound(ctx context.Context, actor Actor, id common.UUID, name string) (*drive.JobDrive, error) {
	var index int
	updated, err := s.mutate(ctx, actor, id, func(d *drive.JobDrive) error {
		var err error
		index, err = d.AddRound(name)
		return err
	})
	roundOperationsTotal.WithLabelValues("add", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "round.added", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": id.String(), "round": strconv.Itoa(index)})})
	return updated, nil
}

func (s *DriveService) CompleteRound(ctx context.Context, actor Actor, id common.UUID, round int) (*drive.JobDrive, error) {
	updated, err := s.mutate(ctx, actor, id, func(d *drive.JobDrive) error {
		return d.CompleteRound(round)
	})
	roundOperationsTotal.WithLabelValues("complete", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "round.completed", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": id.String(), "round": strconv.Itoa(round)})})
	return updated, nil
}

func (s *DriveService) SelectStudents(ctx context.Context, actor Actor, id common.UUID, round int, studentIDs []common.UUID) (*drive.JobDrive, error) {
	updated, err := s.mutate(ctx, actor, id, func(d *drive.JobDrive) error {
		return d.SelectStudents(round, studentIDs)
	})
	roundOperationsTotal.WithLabelValues("select", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	selected := updated.SelectionRounds[round].SelectedStudents
	s.log(ctx).Info("round selection replaced", slog.String("drive_id", id.String()), slog.Int("round", round), slog.Int("selected", len(selected)))
	_ = s.analytics.Create(ctx, analytics.Event{Name: "round.students_selected", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": id.String(), "round": strconv.Itoa(round), "selected": strconv.Itoa(len(selected))})})
	return updated, nil
}

func (s *DriveService) Candidates(ctx context.Context, actor Actor, id common.UUID, round int) ([]drive.Application, error) {
	d, err := s.GetDrive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeManage(actor, d); err != nil {
		return nil, err
	}
	return d.CandidatePool(round)
}

func (s *DriveService) Finalize(ctx context.Context, actor Actor, id common.UUID) (*drive.JobDrive, error) {
	updated, err := s.mutate(ctx, actor, id, func(d *drive.JobDrive) error {
		return d.Finalize(s.clock())
	})
	if err != nil {
		return nil, err
	}
	finalizationsTotal.Inc()
	s.log(ctx).Info("placement finalized", slog.String("drive_id", id.String()), slog.Int("placed", len(updated.PlacedStudents)))
	_ = s.analytics.Create(ctx, analytics.Event{Name: "placement.finalized", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"drive_id": id.String(), "placed": strconv.Itoa(len(updated.PlacedStudents))})})
	return updated, nil
}

func (s *DriveService) ExportPlaced(ctx context.Context, actor Actor, id common.UUID, w io.Writer) error {
	d, err := s.GetDrive(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeManage(actor, d); err != nil {
		return err
	}
	if !d.Finalized() {
		return common.NewError(common.CodeConflict, "placement has not been finalized", nil)
	}
	if err := export.WritePlacedStudents(w, *d); err != nil {
		return common.NewError(common.CodeInternal, "failed to export placed students", err)
	}
	return nil
}

// mutate loads the drive under its lock, checks that actor may manage it,
// applies fn and saves the result.
func (s *DriveService) mutate(ctx context.Context, actor Actor, id common.UUID, fn func(d *drive.JobDrive) error) (*drive.JobDrive, error) {
	unlock := s.locks.Lock(driveLockKey(id))
	defer unlock()

	d, err := s.drives.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeManage(actor, d); err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.clock()
	return s.save(ctx, *d)
}

func (s *DriveService) save(ctx context.Context, d drive.JobDrive) (*drive.JobDrive, error) {
	defer s.cache.Invalidate(d.ID)
	saved, err := s.drives.Save(ctx, d)
	if err != nil {
		if common.Is(err, common.CodeConflict) {
			s.log(ctx).Warn("concurrent drive update rejected", slog.String("drive_id", d.ID.String()))
		}
		return nil, err
	}
	return saved, nil
}

func (s *DriveService) log(ctx context.Context) *slog.Logger {
	return observability.FromContext(ctx, s.logger)
}

func driveLockKey(id common.UUID) string {
	return "drive:" + id.String()
}
