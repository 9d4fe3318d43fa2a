package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"placement/internal/common"
	"placement/internal/domain/student"
)

type consentFixture struct {
	service    *ConsentService
	students   *fakeStudentRepo
	signatures *fakeSignatureStore
	analytics  *fakeAnalyticsRepo
	mailer     *fakeMailer
	now        time.Time
}

func newConsentFixture(t *testing.T, p student.Profile) *consentFixture {
	t.Helper()
	f := &consentFixture{
		students:   newFakeStudentRepo(p),
		signatures: &fakeSignatureStore{},
		analytics:  &fakeAnalyticsRepo{},
		mailer:     &fakeMailer{},
		now:        testNow,
	}
	issuer := NewOTPIssuer(f.students, f.mailer, nil, 2*time.Minute)
	issuer.clock = func() time.Time { return f.now }
	issuer.generate = func() (string, error) { return "654321", nil }
	f.service = NewConsentService(f.students, issuer, f.signatures, nil, f.analytics, nil, nil)
	f.service.clock = func() time.Time { return f.now }
	return f
}

func freshProfile() student.Profile {
	p := readyProfile("s1")
	p.Consent = student.ConsentRecord{}
	p.Verification = student.VerificationStatus{}
	return p
}

func TestCheckConsent(t *testing.T) {
	p := readyProfile("s1")
	if err := CheckConsent(p, true, RequiredFields{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	p.Verification.OTPVerified = false
	if err := CheckConsent(p, true, RequiredFields{}); common.Reason(err) != common.ReasonOTPNotVerified {
		t.Fatalf("expected otp not verified, got %v", err)
	}
	p.Consent.HasAgreed = false
	if err := CheckConsent(p, true, RequiredFields{}); common.Reason(err) != common.ReasonPolicyNotAgreed {
		t.Fatalf("expected policy not agreed, got %v", err)
	}
	p.Name = ""
	if err := CheckConsent(p, true, RequiredFields{}); common.Reason(err) != common.ReasonProfileIncomplete {
		t.Fatalf("expected profile incomplete, got %v", err)
	}
	if err := CheckConsent(p, false, RequiredFields{}); common.Reason(err) != common.ReasonPolicyNotAgreed {
		t.Fatalf("expected completeness skipped, got %v", err)
	}
}

func TestConsentService_SubmitVerifyFlow(t *testing.T) {
	f := newConsentFixture(t, freshProfile())
	ctx := context.Background()
	actor := studentActor("s1")

	status, err := f.service.Submit(ctx, actor, ConsentInput{Agreed: true, SignatureName: "sig.png", Signature: strings.NewReader("PNG")})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !status.PolicyAgreed || status.OTPVerified || !status.OTPPending || status.CanApply {
		t.Fatalf("unexpected status after consent %+v", status)
	}
	stored := f.students.stored("s1")
	if !stored.Consent.HasAgreed || stored.Consent.AgreedAt == nil || stored.Consent.SignatureRef != "signatures/s1/sig.png" {
		t.Fatalf("expected consent recorded, got %+v", stored.Consent)
	}
	if string(f.signatures.saved["s1"]) != "PNG" {
		t.Fatalf("expected signature stored, got %q", f.signatures.saved["s1"])
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("expected otp mail, got %d", len(f.mailer.sent))
	}

	status, err = f.service.VerifyOTP(ctx, actor, " 654321 ")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !status.OTPVerified || !status.CanApply {
		t.Fatalf("expected verified status, got %+v", status)
	}
	names := f.analytics.names()
	if len(names) != 2 || names[0] != "consent.submitted" || names[1] != "consent.otp_verified" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestConsentService_SubmitValidation(t *testing.T) {
	f := newConsentFixture(t, freshProfile())
	_, err := f.service.Submit(context.Background(), studentActor("s1"), ConsentInput{})
	appErr, ok := common.As(err)
	if !ok || appErr.Code != common.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := appErr.Fields["agreed"]; !ok {
		t.Fatalf("expected agreed field error, got %v", appErr.Fields)
	}
	if _, ok := appErr.Fields["signature"]; !ok {
		t.Fatalf("expected signature field error, got %v", appErr.Fields)
	}
}

func TestConsentService_ResubmitResetsResendBudget(t *testing.T) {
	f := newConsentFixture(t, freshProfile())
	ctx := context.Background()
	actor := studentActor("s1")
	submit := func() {
		t.Helper()
		if _, err := f.service.Submit(ctx, actor, ConsentInput{Agreed: true, Signature: strings.NewReader("sig")}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	submit()
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Minute)
		if _, err := f.service.ResendOTP(ctx, actor); err != nil {
			t.Fatalf("resend %d: %v", i+1, err)
		}
	}
	f.now = f.now.Add(time.Minute)
	if _, err := f.service.ResendOTP(ctx, actor); !common.Is(err, common.CodeResendLimitReached) {
		t.Fatalf("expected resend limit, got %v", err)
	}

	submit()
	status, err := f.service.Status(ctx, actor)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.ResendsRemaining != 3 {
		t.Fatalf("expected resend budget reset, got %d", status.ResendsRemaining)
	}
}

func TestConsentService_VerifyRequiresCode(t *testing.T) {
	f := newConsentFixture(t, freshProfile())
	if _, err := f.service.VerifyOTP(context.Background(), studentActor("s1"), "  "); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConsentService_StatusReportsAllFlags(t *testing.T) {
	p := freshProfile()
	p.ResumeURL = ""
	f := newConsentFixture(t, p)
	status, err := f.service.Status(context.Background(), studentActor("s1"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.ProfileComplete || status.PolicyAgreed || status.OTPVerified || status.CanApply {
		t.Fatalf("expected nothing satisfied, got %+v", status)
	}
	if len(status.MissingFields) != 1 || status.MissingFields[0] != "resume_url" {
		t.Fatalf("expected resume_url missing, got %v", status.MissingFields)
	}
}

func TestConsentService_StatusSkipsCompletenessForPR(t *testing.T) {
	p := readyProfile("s1")
	p.ResumeURL = ""
	f := newConsentFixture(t, p)

	pr := Actor{UserID: "s1", Role: RolePR, Department: p.Department}
	status, err := f.service.Status(context.Background(), pr)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.ProfileComplete || !status.CanApply {
		t.Fatalf("expected pr to apply despite incomplete profile, got %+v", status)
	}

	status, err = f.service.Status(context.Background(), studentActor("s1"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.CanApply {
		t.Fatalf("expected student with incomplete profile blocked, got %+v", status)
	}
}
