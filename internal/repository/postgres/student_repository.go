package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"placement/internal/common"
	"placement/internal/domain/student"
)

const studentColumns = `id, email, name, roll_number, phone, department, cgpa, current_backlogs, batch, graduation_year,
	is_placed, placement_status, skills, resume_url, consent_has_agreed, consent_agreed_at, consent_signature,
	otp_code_hash, otp_expires_at, otp_verified, otp_attempts, otp_resend_count, otp_last_sent_at, created_at, updated_at`

type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) GetByID(ctx context.Context, id common.UUID) (*student.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	var (
		p                                 student.Profile
		agreedAt, otpExpires, lastOTPSent sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.RollNumber, &p.Phone, &p.Department, &p.CGPA, &p.CurrentBacklogs, &p.Batch, &p.GraduationYear,
		&p.IsPlaced, &p.PlacementStatus, pq.Array(&p.Skills), &p.ResumeURL, &p.Consent.HasAgreed, &agreedAt, &p.Consent.SignatureRef,
		&p.Verification.OTPCodeHash, &otpExpires, &p.Verification.OTPVerified, &p.Verification.OTPAttempts, &p.Verification.OTPResendCount, &lastOTPSent,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "student not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load student", err)
	}
	p.Consent.AgreedAt = timePtr(agreedAt)
	p.Verification.OTPExpires = timePtr(otpExpires)
	p.Verification.LastOTPSent = timePtr(lastOTPSent)
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return &p, nil
}

// Upsert writes the editable profile fields. Consent, verification and
// placement columns of an existing row are left untouched.
func (r *StudentRepository) Upsert(ctx context.Context, p student.Profile) (*student.Profile, error) {
	now := time.Now().UTC()
	if p.PlacementStatus == "" {
		p.PlacementStatus = student.PlacementUnplaced
	}
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO students (id, email, name, roll_number, phone, department, cgpa, current_backlogs, batch,
		graduation_year, skills, resume_url, is_placed, placement_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, roll_number = EXCLUDED.roll_number,
		phone = EXCLUDED.phone, department = EXCLUDED.department, cgpa = EXCLUDED.cgpa, current_backlogs = EXCLUDED.current_backlogs,
		batch = EXCLUDED.batch, graduation_year = EXCLUDED.graduation_year, skills = EXCLUDED.skills, resume_url = EXCLUDED.resume_url,
		updated_at = EXCLUDED.updated_at`,
		p.ID, p.Email, p.Name, p.RollNumber, p.Phone, p.Department, p.CGPA, p.CurrentBacklogs, p.Batch,
		p.GraduationYear, pq.Array(skills), p.ResumeURL, p.IsPlaced, p.PlacementStatus, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.NewError(common.CodeConflict, "roll number already registered", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to save student", err)
	}
	return r.GetByID(ctx, p.ID)
}

func (r *StudentRepository) UpdateConsent(ctx context.Context, id common.UUID, consent student.ConsentRecord) error {
	result, err := r.db.ExecContext(ctx, `UPDATE students SET consent_has_agreed = $1, consent_agreed_at = $2, consent_signature = $3, updated_at = $4
		WHERE id = $5`, consent.HasAgreed, consent.AgreedAt, consent.SignatureRef, time.Now().UTC(), id)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to update consent", err)
	}
	return expectRow(result, "student not found")
}

func (r *StudentRepository) UpdateVerification(ctx context.Context, id common.UUID, status student.VerificationStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE students SET otp_code_hash = $1, otp_expires_at = $2, otp_verified = $3, otp_attempts = $4,
		otp_resend_count = $5, otp_last_sent_at = $6, updated_at = $7 WHERE id = $8`,
		status.OTPCodeHash, status.OTPExpires, status.OTPVerified, status.OTPAttempts, status.OTPResendCount, status.LastOTPSent, time.Now().UTC(), id)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to update verification", err)
	}
	return expectRow(result, "student not found")
}

func expectRow(result sql.Result, notFound string) error {
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return common.NewError(common.CodeNotFound, notFound, sql.ErrNoRows)
	}
	return nil
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
