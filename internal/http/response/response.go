package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"placement/internal/common"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    common.Code       `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes err as a JSON error body. Errors that are not domain errors,
// and internal ones, are logged and reported without their cause.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := common.As(err)
	if !ok || appErr.Code == common.CodeInternal {
		slog.Error("request failed", slog.String("error", err.Error()))
		JSON(w, http.StatusInternalServerError, errorBody{Error: errorPayload{Code: common.CodeInternal, Message: "internal server error"}})
		return
	}
	JSON(w, StatusFor(appErr.Code), errorBody{Error: errorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
		Fields:  appErr.Fields,
		Details: appErr.Details,
	}})
}

func StatusFor(code common.Code) int {
	switch code {
	case common.CodeValidation, common.CodeInvalidRound, common.CodeNotASubsetOfPool,
		common.CodeInvalidCode, common.CodeOTPExpired, common.CodeNoOTPIssued:
		return http.StatusBadRequest
	case common.CodeUnauthorized:
		return http.StatusUnauthorized
	case common.CodeForbidden, common.CodeNotEligible, common.CodeConsentRequired:
		return http.StatusForbidden
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeConflict, common.CodeAlreadyApplied, common.CodeAlreadyFinalized,
		common.CodeNotActive, common.CodeDeadlinePassed, common.CodePreviousRoundEmpty,
		common.CodeNoRounds, common.CodeNoFinalSelection:
		return http.StatusConflict
	case common.CodeRateLimited, common.CodeTooManyAttempts, common.CodeResendLimitReached, common.CodeTooSoon:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
