package handlers

import (
	"context"
	"net/http"

	"placement/internal/app"
	"placement/internal/http/response"
)

type StudentService interface {
	Get(ctx context.Context, actor app.Actor) (*app.ProfileView, error)
	Update(ctx context.Context, actor app.Actor, input app.ProfileInput) (*app.ProfileView, error)
}

type StudentHandler struct {
	students StudentService
}

func NewStudentHandler(students StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

type profileRequest struct {
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	RollNumber      string     `json:"roll_number"`
	Phone           string     `json:"phone"`
	Department      string     `json:"department"`
	CGPA            flexString `json:"cgpa"`
	CurrentBacklogs flexString `json:"current_backlogs"`
	Batch           flexString `json:"batch"`
	GraduationYear  int        `json:"graduation_year"`
	Skills          []string   `json:"skills"`
	ResumeURL       string     `json:"resume_url"`
}

func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	view, err := h.students.Get(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	view, err := h.students.Update(r.Context(), actor, app.ProfileInput{
		Email:           req.Email,
		Name:            req.Name,
		RollNumber:      req.RollNumber,
		Phone:           req.Phone,
		Department:      req.Department,
		CGPA:            string(req.CGPA),
		CurrentBacklogs: string(req.CurrentBacklogs),
		Batch:           string(req.Batch),
		GraduationYear:  req.GraduationYear,
		Skills:          req.Skills,
		ResumeURL:       req.ResumeURL,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}
