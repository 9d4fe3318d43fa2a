package student

import (
	"time"

	"placement/internal/common"
)

type PlacementStatus string

const (
	PlacementUnplaced    PlacementStatus = "unplaced"
	PlacementShortlisted PlacementStatus = "shortlisted"
	PlacementPlaced      PlacementStatus = "placed"
)

// Profile is the stored student document. CGPA and CurrentBacklogs keep the
// raw stored text since legacy rows hold numbers, blanks or free text.
type Profile struct {
	ID              common.UUID     `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	RollNumber      string          `json:"roll_number"`
	Phone           string          `json:"phone"`
	Department      string          `json:"department"`
	CGPA            string          `json:"cgpa"`
	CurrentBacklogs string          `json:"current_backlogs"`
	Batch           string          `json:"batch,omitempty"`
	GraduationYear  int             `json:"graduation_year,omitempty"`
	IsPlaced        bool            `json:"is_placed"`
	PlacementStatus PlacementStatus `json:"placement_status"`
	Skills          []string        `json:"skills"`
	ResumeURL       string          `json:"resume_url,omitempty"`

	Consent      ConsentRecord      `json:"placement_policy_consent"`
	Verification VerificationStatus `json:"verification_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConsentRecord struct {
	HasAgreed    bool       `json:"has_agreed"`
	AgreedAt     *time.Time `json:"agreed_at,omitempty"`
	SignatureRef string     `json:"signature,omitempty"`
}

// VerificationStatus holds the pending OTP. OTPCodeHash is a sha256 hex digest.
type VerificationStatus struct {
	OTPCodeHash    string     `json:"-"`
	OTPExpires     *time.Time `json:"otp_expires,omitempty"`
	OTPVerified    bool       `json:"otp_verified"`
	OTPAttempts    int        `json:"otp_attempts"`
	OTPResendCount int        `json:"otp_resend_count"`
	LastOTPSent    *time.Time `json:"last_otp_sent,omitempty"`
}

func (v VerificationStatus) Pending() bool {
	return v.OTPCodeHash != ""
}
