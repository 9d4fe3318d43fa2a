package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"placement/internal/common"
	"placement/internal/domain/analytics"
	"placement/internal/domain/student"
	"placement/internal/observability"
)

// SignatureStore keeps uploaded consent signatures and returns a reference to
// the stored file.
type SignatureStore interface {
	Save(ctx context.Context, owner common.UUID, filename string, content io.Reader) (string, error)
}

// CheckConsent reports the first unmet participation prerequisite as a
// consent_required error whose reason names the failed check.
func CheckConsent(p student.Profile, requireComplete bool, completion ProfileCompletion) error {
	if requireComplete && completion != nil {
		if ok, missing := completion.Check(p); !ok {
			return common.NewError(common.CodeConsentRequired, "complete your profile before applying", nil).
				WithDetail("reason", common.ReasonProfileIncomplete).
				WithDetail("missing_fields", missing)
		}
	}
	if !p.Consent.HasAgreed {
		return common.NewError(common.CodeConsentRequired, "agree to the placement policy before applying", nil).
			WithDetail("reason", common.ReasonPolicyNotAgreed)
	}
	if !p.Verification.OTPVerified {
		return common.NewError(common.CodeConsentRequired, "verify your consent otp before applying", nil).
			WithDetail("reason", common.ReasonOTPNotVerified)
	}
	return nil
}

type ConsentStatus struct {
	ProfileComplete  bool       `json:"profile_complete"`
	MissingFields    []string   `json:"missing_fields"`
	PolicyAgreed     bool       `json:"policy_agreed"`
	AgreedAt         *time.Time `json:"agreed_at,omitempty"`
	OTPVerified      bool       `json:"otp_verified"`
	OTPPending       bool       `json:"otp_pending"`
	OTPExpiresAt     *time.Time `json:"otp_expires_at,omitempty"`
	ResendsRemaining int        `json:"resends_remaining"`
	CanApply         bool       `json:"can_apply"`
}

type ConsentInput struct {
	Agreed        bool
	SignatureName string
	Signature     io.Reader
}

type ConsentService struct {
	students   student.Repository
	otp        *OTPIssuer
	signatures SignatureStore
	completion ProfileCompletion
	analytics  analytics.Repository
	locks      *KeyedLocker
	logger     *slog.Logger
	clock      func() time.Time
}

func NewConsentService(students student.Repository, otp *OTPIssuer, signatures SignatureStore, completion ProfileCompletion, analytics analytics.Repository, locks *KeyedLocker, logger *slog.Logger) *ConsentService {
	if completion == nil {
		completion = RequiredFields{}
	}
	if locks == nil {
		locks = NewKeyedLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentService{
		students:   students,
		otp:        otp,
		signatures: signatures,
		completion: completion,
		analytics:  analytics,
		locks:      locks,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

func userLockKey(id common.UUID) string {
	return "user:" + id.String()
}

// Submit records policy agreement with its signature and starts a new OTP
// session.
func (s *ConsentService) Submit(ctx context.Context, actor Actor, input ConsentInput) (*ConsentStatus, error) {
	fields := map[string]string{}
	if !input.Agreed {
		fields["agreed"] = "placement policy must be accepted"
	}
	if input.Signature == nil {
		fields["signature"] = "signature is required"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid consent", fields)
	}

	unlock := s.locks.Lock(userLockKey(actor.UserID))
	defer unlock()

	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.SignatureName)
	if name == "" {
		name = "signature"
	}
	ref, err := s.signatures.Save(ctx, actor.UserID, name, input.Signature)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	profile.Consent = student.ConsentRecord{HasAgreed: true, AgreedAt: &now, SignatureRef: ref}
	if err := s.students.UpdateConsent(ctx, actor.UserID, profile.Consent); err != nil {
		return nil, err
	}
	profile.Verification.OTPResendCount = 0
	if err := s.otp.Issue(ctx, profile); err != nil {
		return nil, err
	}

	observability.FromContext(ctx, s.logger).Info("placement consent recorded", slog.String("user_id", actor.UserID.String()))
	_ = s.analytics.Create(ctx, analytics.Event{Name: "consent.submitted", UserID: &actor.UserID, Payload: analyticsPayload(ctx, map[string]string{"signature": ref})})
	return s.status(*profile, actor.Role), nil
}

func (s *ConsentService) VerifyOTP(ctx context.Context, actor Actor, code string) (*ConsentStatus, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, common.NewValidationError("invalid otp", map[string]string{"otp": "otp is required"})
	}

	unlock := s.locks.Lock(userLockKey(actor.UserID))
	defer unlock()

	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.otp.Verify(ctx, profile, code); err != nil {
		if common.Is(err, common.CodeInvalidCode) || common.Is(err, common.CodeTooManyAttempts) {
			_ = s.analytics.Create(ctx, analytics.Event{Name: "consent.otp_failed", UserID: &actor.UserID, Payload: analyticsPayload(ctx, nil)})
		}
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "consent.otp_verified", UserID: &actor.UserID, Payload: analyticsPayload(ctx, nil)})
	return s.status(*profile, actor.Role), nil
}

func (s *ConsentService) ResendOTP(ctx context.Context, actor Actor) (*ConsentStatus, error) {
	unlock := s.locks.Lock(userLockKey(actor.UserID))
	defer unlock()

	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.otp.Resend(ctx, profile); err != nil {
		return nil, err
	}
	_ = s.analytics.Create(ctx, analytics.Event{Name: "consent.otp_resent", UserID: &actor.UserID, Payload: analyticsPayload(ctx, nil)})
	return s.status(*profile, actor.Role), nil
}

func (s *ConsentService) Status(ctx context.Context, actor Actor) (*ConsentStatus, error) {
	profile, err := s.students.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.status(*profile, actor.Role), nil
}

// status mirrors the apply gate: only students must have a complete profile.
func (s *ConsentService) status(p student.Profile, role Role) *ConsentStatus {
	complete, missing := s.completion.Check(p)
	if missing == nil {
		missing = []string{}
	}
	remaining := otpMaxResends - p.Verification.OTPResendCount
	if remaining < 0 {
		remaining = 0
	}
	return &ConsentStatus{
		ProfileComplete:  complete,
		MissingFields:    missing,
		PolicyAgreed:     p.Consent.HasAgreed,
		AgreedAt:         p.Consent.AgreedAt,
		OTPVerified:      p.Verification.OTPVerified,
		OTPPending:       p.Verification.Pending(),
		OTPExpiresAt:     p.Verification.OTPExpires,
		ResendsRemaining: remaining,
		CanApply:         CheckConsent(p, role == RoleStudent, s.completion) == nil,
	}
}
