package common

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeRateLimited  Code = "rate_limited"
	CodeInternal     Code = "internal"

	// application registry
	CodeNotActive       Code = "not_active"
	CodeDeadlinePassed  Code = "deadline_passed"
	CodeAlreadyApplied  Code = "already_applied"
	CodeNotEligible     Code = "not_eligible"
	CodeConsentRequired Code = "consent_required"

	// selection rounds and finalization
	CodeInvalidRound       Code = "invalid_round"
	CodePreviousRoundEmpty Code = "previous_round_empty"
	CodeNotASubsetOfPool   Code = "not_a_subset_of_pool"
	CodeAlreadyFinalized   Code = "already_finalized"
	CodeNoRounds           Code = "no_rounds"
	CodeNoFinalSelection   Code = "no_final_selection"

	// otp
	CodeNoOTPIssued        Code = "no_otp_issued"
	CodeTooManyAttempts    Code = "too_many_attempts"
	CodeOTPExpired         Code = "otp_expired"
	CodeInvalidCode        Code = "invalid_code"
	CodeResendLimitReached Code = "resend_limit_reached"
	CodeTooSoon            Code = "too_soon"
)

// Consent sub-kinds, reported in Details["reason"] of a CodeConsentRequired error.
const (
	ReasonProfileIncomplete = "profile_incomplete"
	ReasonPolicyNotAgreed   = "policy_not_agreed"
	ReasonOTPNotVerified    = "otp_not_verified"
)

type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns e with key set in its details map.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func NewValidationError(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func Is(err error, code Code) bool {
	target, ok := As(err)
	return ok && target.Code == code
}

// Reason returns Details["reason"] of a domain error, or "".
func Reason(err error) string {
	target, ok := As(err)
	if !ok || target.Details == nil {
		return ""
	}
	reason, _ := target.Details["reason"].(string)
	return reason
}
