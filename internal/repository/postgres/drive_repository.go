package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"placement/internal/common"
	"placement/internal/domain/drive"
)

const driveColumns = `id, company_name, job_type, description, ctc, location, drive_date, deadline, drive_time, is_active, unplaced_only,
	min_cgpa, max_backlogs, allowed_departments, allowed_batches, applications, selection_rounds, placed_students,
	placement_state, finalized_at, created_by, department, version, created_at, updated_at`

type DriveRepository struct {
	db *sql.DB
}

func NewDriveRepository(db *sql.DB) *DriveRepository {
	return &DriveRepository{db: db}
}

func (r *DriveRepository) Create(ctx context.Context, d drive.JobDrive) (*drive.JobDrive, error) {
	if d.ID.IsZero() {
		d.ID = common.NewUUID()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Version = 1
	if d.Placement == "" {
		d.Placement = drive.PlacementOpen
	}
	docs, err := encodeDocuments(d)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO job_drives (`+driveColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		d.ID, d.CompanyName, d.JobType, d.Description, d.CTC, d.Location, d.Date, d.Deadline, d.Time, d.IsActive, d.UnplacedOnly,
		d.Eligibility.MinCGPA, d.Eligibility.MaxBacklogs, pq.Array(nonNil(d.Eligibility.AllowedDepartments)), pq.Array(nonNil(d.Eligibility.AllowedBatches)),
		docs.applications, docs.rounds, docs.placed,
		d.Placement, d.FinalizedAt, d.CreatedBy, d.Department, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create job drive", err)
	}
	return &d, nil
}

func (r *DriveRepository) GetByID(ctx context.Context, id common.UUID) (*drive.JobDrive, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+driveColumns+` FROM job_drives WHERE id = $1`, id)
	d, err := scanDrive(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "job drive not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load job drive", err)
	}
	return d, nil
}

// Save writes the whole aggregate if the stored version still equals d.Version
// and returns the drive with the bumped version.
func (r *DriveRepository) Save(ctx context.Context, d drive.JobDrive) (*drive.JobDrive, error) {
	docs, err := encodeDocuments(d)
	if err != nil {
		return nil, err
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `UPDATE job_drives SET company_name = $1, job_type = $2, description = $3, ctc = $4, location = $5,
		drive_date = $6, deadline = $7, drive_time = $8, is_active = $9, unplaced_only = $10, min_cgpa = $11, max_backlogs = $12,
		allowed_departments = $13, allowed_batches = $14, applications = $15, selection_rounds = $16, placed_students = $17,
		placement_state = $18, finalized_at = $19, department = $20, updated_at = $21, version = version + 1
		WHERE id = $22 AND version = $23`,
		d.CompanyName, d.JobType, d.Description, d.CTC, d.Location,
		d.Date, d.Deadline, d.Time, d.IsActive, d.UnplacedOnly, d.Eligibility.MinCGPA, d.Eligibility.MaxBacklogs,
		pq.Array(nonNil(d.Eligibility.AllowedDepartments)), pq.Array(nonNil(d.Eligibility.AllowedBatches)), docs.applications, docs.rounds, docs.placed,
		d.Placement, d.FinalizedAt, d.Department, d.UpdatedAt,
		d.ID, d.Version)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to save job drive", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to save job drive", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM job_drives WHERE id = $1)`, d.ID).Scan(&exists); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to save job drive", err)
		}
		if !exists {
			return nil, common.NewError(common.CodeNotFound, "job drive not found", sql.ErrNoRows)
		}
		return nil, common.NewError(common.CodeConflict, "job drive was modified concurrently", nil)
	}
	d.Version++
	return &d, nil
}

func (r *DriveRepository) ListActive(ctx context.Context, limit, offset int) ([]drive.JobDrive, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+driveColumns+` FROM job_drives WHERE is_active = TRUE
		ORDER BY drive_date ASC, created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list job drives", err)
	}
	defer rows.Close()
	return collectDrives(rows)
}

func (r *DriveRepository) ListByApplicant(ctx context.Context, studentID common.UUID) ([]drive.JobDrive, error) {
	filter, err := json.Marshal([]map[string]string{{"student_id": studentID.String()}})
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to build applicant filter", err)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+driveColumns+` FROM job_drives WHERE applications @> $1::jsonb
		ORDER BY drive_date DESC`, string(filter))
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list applied drives", err)
	}
	defer rows.Close()
	return collectDrives(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrive(row rowScanner) (*drive.JobDrive, error) {
	var (
		d                     drive.JobDrive
		deadline, finalizedAt sql.NullTime
		minCGPA               sql.NullFloat64
		maxBacklogs           sql.NullInt64
		departments, batches  []string
		applications, rounds  []byte
		placed                []byte
	)
	if err := row.Scan(&d.ID, &d.CompanyName, &d.JobType, &d.Description, &d.CTC, &d.Location, &d.Date, &deadline, &d.Time, &d.IsActive, &d.UnplacedOnly,
		&minCGPA, &maxBacklogs, pq.Array(&departments), pq.Array(&batches), &applications, &rounds, &placed,
		&d.Placement, &finalizedAt, &d.CreatedBy, &d.Department, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if deadline.Valid {
		value := deadline.Time
		d.Deadline = &value
	}
	if finalizedAt.Valid {
		value := finalizedAt.Time
		d.FinalizedAt = &value
	}
	if minCGPA.Valid {
		value := minCGPA.Float64
		d.Eligibility.MinCGPA = &value
	}
	if maxBacklogs.Valid {
		value := int(maxBacklogs.Int64)
		d.Eligibility.MaxBacklogs = &value
	}
	d.Eligibility.AllowedDepartments = nonNil(departments)
	d.Eligibility.AllowedBatches = nonNil(batches)
	if err := json.Unmarshal(applications, &d.Applications); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rounds, &d.SelectionRounds); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(placed, &d.PlacedStudents); err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDrives(rows *sql.Rows) ([]drive.JobDrive, error) {
	var items []drive.JobDrive
	for rows.Next() {
		d, err := scanDrive(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan job drive", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to iterate job drives", err)
	}
	return items, nil
}

type driveDocuments struct {
	applications string
	rounds       string
	placed       string
}

func encodeDocuments(d drive.JobDrive) (driveDocuments, error) {
	var docs driveDocuments
	applications := d.Applications
	if applications == nil {
		applications = []drive.Application{}
	}
	rounds := d.SelectionRounds
	if rounds == nil {
		rounds = []drive.SelectionRound{}
	}
	placed := d.PlacedStudents
	if placed == nil {
		placed = []drive.PlacedStudent{}
	}
	for _, item := range []struct {
		dst *string
		src any
	}{
		{&docs.applications, applications},
		{&docs.rounds, rounds},
		{&docs.placed, placed},
	} {
		raw, err := json.Marshal(item.src)
		if err != nil {
			return docs, common.NewError(common.CodeInternal, "failed to encode job drive", err)
		}
		*item.dst = string(raw)
	}
	return docs, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
