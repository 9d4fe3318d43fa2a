package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"placement/internal/common"
	"placement/internal/domain/student"
	"placement/internal/observability"
)

const (
	otpCodeLength     = 6
	otpMaxAttempts    = 3
	otpMaxResends     = 3
	otpResendInterval = 30 * time.Second
	defaultOTPTTL     = 2 * time.Minute
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// OTPIssuer owns the verification fields of a profile. Callers serialize
// access per user; every method persists the state it changes.
type OTPIssuer struct {
	students student.Repository
	mailer   Mailer
	logger   *slog.Logger
	ttl      time.Duration
	clock    func() time.Time
	generate func() (string, error)
}

func NewOTPIssuer(students student.Repository, mailer Mailer, logger *slog.Logger, ttl time.Duration) *OTPIssuer {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPIssuer{
		students: students,
		mailer:   mailer,
		logger:   logger,
		ttl:      ttl,
		clock:    func() time.Time { return time.Now().UTC() },
		generate: generateOTP,
	}
}

// Issue replaces any pending code with a fresh one and mails it. A delivery
// failure is logged and the code stays valid.
func (o *OTPIssuer) Issue(ctx context.Context, p *student.Profile) error {
	code, err := o.generate()
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to generate otp", err)
	}
	now := o.clock()
	expires := now.Add(o.ttl)
	v := &p.Verification
	v.OTPCodeHash = hashOTP(code)
	v.OTPExpires = &expires
	v.OTPAttempts = 0
	v.OTPVerified = false
	v.LastOTPSent = &now
	if err := o.students.UpdateVerification(ctx, p.ID, *v); err != nil {
		otpEventsTotal.WithLabelValues("issue", "error").Inc()
		return err
	}
	otpEventsTotal.WithLabelValues("issue", "ok").Inc()

	if o.mailer != nil {
		subject := "Your placement consent verification code"
		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(math.Ceil(o.ttl.Minutes())))
		if err := o.mailer.Send(ctx, p.Email, subject, body); err != nil {
			observability.FromContext(ctx, o.logger).Warn("otp delivery failed",
				slog.String("user_id", p.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Verify checks code against the pending otp. The attempt is counted and
// persisted before the comparison.
func (o *OTPIssuer) Verify(ctx context.Context, p *student.Profile, code string) (err error) {
	defer func() { otpEventsTotal.WithLabelValues("verify", outcome(err)).Inc() }()

	v := &p.Verification
	if !v.Pending() {
		return common.NewError(common.CodeNoOTPIssued, "no otp has been issued", nil)
	}
	if v.OTPAttempts >= otpMaxAttempts {
		return common.NewError(common.CodeTooManyAttempts, "too many attempts, request a new code", nil).
			WithDetail("attempts_remaining", 0)
	}
	now := o.clock()
	if v.OTPExpires == nil || now.After(*v.OTPExpires) {
		return common.NewError(common.CodeOTPExpired, "otp has expired, request a new code", nil)
	}

	v.OTPAttempts++
	if err := o.students.UpdateVerification(ctx, p.ID, *v); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(hashOTP(code)), []byte(v.OTPCodeHash)) != 1 {
		remaining := otpMaxAttempts - v.OTPAttempts
		return common.NewError(common.CodeInvalidCode, "invalid otp", nil).
			WithDetail("attempts_remaining", remaining)
	}

	v.OTPVerified = true
	v.OTPCodeHash = ""
	v.OTPExpires = nil
	v.OTPAttempts = 0
	return o.students.UpdateVerification(ctx, p.ID, *v)
}

// Resend re-issues the code, limited per consent session and throttled.
// Only a recorded consent opens a session to resend within.
func (o *OTPIssuer) Resend(ctx context.Context, p *student.Profile) (err error) {
	defer func() { otpEventsTotal.WithLabelValues("resend", outcome(err)).Inc() }()

	if !p.Consent.HasAgreed {
		return common.NewError(common.CodeConsentRequired, "submit the placement consent first", nil).
			WithDetail("reason", common.ReasonPolicyNotAgreed)
	}
	v := &p.Verification
	if v.OTPVerified {
		return common.NewError(common.CodeConflict, "otp already verified", nil)
	}
	if v.OTPResendCount >= otpMaxResends {
		return common.NewError(common.CodeResendLimitReached, "resend limit reached, submit consent again", nil)
	}
	now := o.clock()
	if v.LastOTPSent != nil {
		if elapsed := now.Sub(*v.LastOTPSent); elapsed < otpResendInterval {
			wait := int(math.Ceil((otpResendInterval - elapsed).Seconds()))
			return common.NewError(common.CodeTooSoon, "otp was sent recently", nil).
				WithDetail("wait_seconds", wait)
		}
	}
	v.OTPResendCount++
	return o.Issue(ctx, p)
}

func generateOTP() (string, error) {
	max := big.NewInt(0).Exp(big.NewInt(10), big.NewInt(otpCodeLength), nil)
	value, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	format := fmt.Sprintf("%%0%dd", otpCodeLength)
	return fmt.Sprintf(format, value.Int64()), nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
