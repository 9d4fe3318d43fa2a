package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"placement/internal/app"
	"placement/internal/common"
	"placement/internal/domain/drive"
	"placement/internal/http/middleware"
	"placement/internal/http/response"
)

type DriveService interface {
	CreateDrive(ctx context.Context, actor app.Actor, input app.CreateDriveInput) (*drive.JobDrive, error)
	UpdateDrive(ctx context.Context, actor app.Actor, id common.UUID, input app.UpdateDriveInput) (*drive.JobDrive, error)
	GetDrive(ctx context.Context, id common.UUID) (*drive.JobDrive, error)
	ListDrives(ctx context.Context, limit, offset int) ([]drive.JobDrive, error)
	ListApplications(ctx context.Context, actor app.Actor) ([]drive.JobDrive, error)
	Apply(ctx context.Context, actor app.Actor, driveID common.UUID) (*drive.Application, error)
	PreviewEligibility(ctx context.Context, actor app.Actor, driveID common.UUID) (*app.EligibilityPreview, error)
	AddRound(ctx context.Context, actor app.Actor, id common.UUID, name string) (*drive.JobDrive, error)
	CompleteRound(ctx context.Context, actor app.Actor, id common.UUID, round int) (*drive.JobDrive, error)
	SelectStudents(ctx context.Context, actor app.Actor, id common.UUID, round int, studentIDs []common.UUID) (*drive.JobDrive, error)
	Candidates(ctx context.Context, actor app.Actor, id common.UUID, round int) ([]drive.Application, error)
	Finalize(ctx context.Context, actor app.Actor, id common.UUID) (*drive.JobDrive, error)
	ExportPlaced(ctx context.Context, actor app.Actor, id common.UUID, w io.Writer) error
}

// RateLimit is a per-key budget enforced by a handler.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

type DriveHandler struct {
	drives  DriveService
	limiter middleware.Limiter
	apply   RateLimit
}

func NewDriveHandler(drives DriveService, limiter middleware.Limiter, apply RateLimit) *DriveHandler {
	return &DriveHandler{drives: drives, limiter: limiter, apply: apply}
}

type eligibilityRequest struct {
	MinCGPA            *float64 `json:"min_cgpa"`
	MaxBacklogs        *int     `json:"max_backlogs"`
	AllowedDepartments []string `json:"allowed_departments"`
	AllowedBatches     []string `json:"allowed_batches"`
}

func (e eligibilityRequest) rule() drive.EligibilityRule {
	return drive.EligibilityRule{
		MinCGPA:            e.MinCGPA,
		MaxBacklogs:        e.MaxBacklogs,
		AllowedDepartments: e.AllowedDepartments,
		AllowedBatches:     e.AllowedBatches,
	}
}

type createDriveRequest struct {
	CompanyName  string             `json:"company_name"`
	JobType      string             `json:"job_type"`
	Type         string             `json:"type"`
	Description  string             `json:"description"`
	CTC          float64            `json:"ctc"`
	Location     string             `json:"location"`
	Date         dateValue          `json:"date"`
	Deadline     *dateValue         `json:"deadline"`
	Time         string             `json:"time"`
	IsActive     *bool              `json:"is_active"`
	UnplacedOnly bool               `json:"unplaced_only"`
	Eligibility  eligibilityRequest `json:"eligibility"`
	Rounds       []string           `json:"selection_rounds"`
}

type updateDriveRequest struct {
	Description  *string             `json:"description"`
	Location     *string             `json:"location"`
	CTC          *float64            `json:"ctc"`
	Date         *dateValue          `json:"date"`
	Deadline     *dateValue          `json:"deadline"`
	Time         *string             `json:"time"`
	IsActive     *bool               `json:"is_active"`
	UnplacedOnly *bool               `json:"unplaced_only"`
	Eligibility  *eligibilityRequest `json:"eligibility"`
	Rounds       []string            `json:"selection_rounds"`
}

type addRoundRequest struct {
	Name string `json:"name"`
}

type roundStatusRequest struct {
	Status string `json:"status"`
}

type selectStudentsRequest struct {
	StudentIDs []string `json:"student_ids"`
}

func (h *DriveHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req createDriveRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.drives.CreateDrive(r.Context(), actor, app.CreateDriveInput{
		CompanyName:  req.CompanyName,
		JobType:      req.JobType,
		LegacyType:   req.Type,
		Description:  req.Description,
		CTC:          req.CTC,
		Location:     req.Location,
		Date:         req.Date.Time,
		Deadline:     req.Deadline.ptr(),
		Time:         req.Time,
		IsActive:     req.IsActive,
		UnplacedOnly: req.UnplacedOnly,
		Eligibility:  req.Eligibility.rule(),
		Rounds:       req.Rounds,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *DriveHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req updateDriveRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	input := app.UpdateDriveInput{
		Description:  req.Description,
		Location:     req.Location,
		CTC:          req.CTC,
		Date:         req.Date.ptr(),
		Deadline:     req.Deadline.ptr(),
		Time:         req.Time,
		IsActive:     req.IsActive,
		UnplacedOnly: req.UnplacedOnly,
		Rounds:       req.Rounds,
	}
	if req.Eligibility != nil {
		rule := req.Eligibility.rule()
		input.Eligibility = &rule
	}
	updated, err := h.drives.UpdateDrive(r.Context(), actor, id, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *DriveHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	d, err := h.drives.GetDrive(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, actor.VisibleDrive(*d))
}

func (h *DriveHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.drives.ListDrives(r.Context(), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, visibleDrives(actor, items))
}

func visibleDrives(actor app.Actor, items []drive.JobDrive) []drive.JobDrive {
	out := make([]drive.JobDrive, 0, len(items))
	for _, d := range items {
		out = append(out, actor.VisibleDrive(d))
	}
	return out
}

func (h *DriveHandler) MyApplications(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.drives.ListApplications(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, visibleDrives(actor, items))
}

func (h *DriveHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	driveID, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if h.limiter != nil {
		key := "apply:" + driveID.String() + ":" + actor.UserID.String()
		if !h.limiter.Allow(key, h.apply.Limit, h.apply.Window) {
			response.Error(w, common.NewError(common.CodeRateLimited, "apply rate limit exceeded", nil))
			return
		}
	}
	created, err := h.drives.Apply(r.Context(), actor, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, created)
}

func (h *DriveHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	driveID, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	preview, err := h.drives.PreviewEligibility(r.Context(), actor, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, preview)
}

func (h *DriveHandler) AddRound(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req addRoundRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.drives.AddRound(r.Context(), actor, id, req.Name)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, updated)
}

func (h *DriveHandler) UpdateRoundStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	round, err := indexParam(r, "round")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req roundStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if drive.RoundStatus(strings.ToLower(strings.TrimSpace(req.Status))) != drive.RoundCompleted {
		response.Error(w, common.NewValidationError("invalid status", map[string]string{"status": "only completed is supported"}))
		return
	}
	updated, err := h.drives.CompleteRound(r.Context(), actor, id, round)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *DriveHandler) SelectStudents(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	round, err := indexParam(r, "round")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req selectStudentsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	ids := make([]common.UUID, 0, len(req.StudentIDs))
	for i, raw := range req.StudentIDs {
		parsed, err := common.ParseUUID(raw)
		if err != nil {
			response.Error(w, common.NewValidationError("invalid request", map[string]string{fmt.Sprintf("student_ids[%d]", i): "invalid uuid"}))
			return
		}
		ids = append(ids, parsed)
	}
	updated, err := h.drives.SelectStudents(r.Context(), actor, id, round, ids)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *DriveHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	round, err := indexParam(r, "round")
	if err != nil {
		response.Error(w, err)
		return
	}
	pool, err := h.drives.Candidates(r.Context(), actor, id, round)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pool)
}

func (h *DriveHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.drives.Finalize(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *DriveHandler) ExportPlaced(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	// Buffer so a failure can still be reported as a JSON error.
	var buf bytes.Buffer
	if err := h.drives.ExportPlaced(r.Context(), actor, id, &buf); err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="placed-students-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
