package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"placement/internal/app"
	"placement/internal/common"
	"placement/internal/http/middleware"
	"placement/internal/http/response"
)

// MaxConsentFormBytes bounds the multipart consent form, signature included.
const MaxConsentFormBytes = 3 << 20

type ConsentService interface {
	Submit(ctx context.Context, actor app.Actor, input app.ConsentInput) (*app.ConsentStatus, error)
	VerifyOTP(ctx context.Context, actor app.Actor, code string) (*app.ConsentStatus, error)
	ResendOTP(ctx context.Context, actor app.Actor) (*app.ConsentStatus, error)
	Status(ctx context.Context, actor app.Actor) (*app.ConsentStatus, error)
}

type ConsentHandler struct {
	consent ConsentService
	limiter middleware.Limiter
	otp     RateLimit
}

func NewConsentHandler(consent ConsentService, limiter middleware.Limiter, otp RateLimit) *ConsentHandler {
	return &ConsentHandler{consent: consent, limiter: limiter, otp: otp}
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

// Submit takes a multipart form with an "agreed" flag and a "signature" file.
func (h *ConsentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !h.allow(w, "otp:"+actor.UserID.String()) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxConsentFormBytes)
	if err := r.ParseMultipartForm(MaxConsentFormBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, common.NewValidationError("consent form too large", map[string]string{"signature": "file too large"}))
			return
		}
		response.Error(w, common.NewValidationError("invalid consent form", map[string]string{"form": "multipart form expected"}))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	agreed, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue("agreed")))
	input := app.ConsentInput{Agreed: agreed}
	file, header, err := r.FormFile("signature")
	if err == nil {
		defer file.Close()
		input.Signature = file
		input.SignatureName = header.Filename
	} else if !errors.Is(err, http.ErrMissingFile) {
		response.Error(w, common.NewValidationError("invalid consent form", map[string]string{"signature": "unreadable file"}))
		return
	}

	status, err := h.consent.Submit(r.Context(), actor, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *ConsentHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	status, err := h.consent.VerifyOTP(r.Context(), actor, req.OTP)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *ConsentHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !h.allow(w, "otp:"+actor.UserID.String()) {
		return
	}
	status, err := h.consent.ResendOTP(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *ConsentHandler) Status(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	status, err := h.consent.Status(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *ConsentHandler) allow(w http.ResponseWriter, key string) bool {
	if h.limiter == nil || h.limiter.Allow(key, h.otp.Limit, h.otp.Window) {
		return true
	}
	response.Error(w, common.NewError(common.CodeRateLimited, "otp rate limit exceeded", nil).
		WithDetail("retry_after_seconds", int(h.otp.Window/time.Second)))
	return false
}
