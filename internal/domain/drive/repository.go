package drive

import (
	"context"

	"placement/internal/common"
)

// Repository persists drives as whole aggregates. Save fails with a conflict
// when the stored version no longer matches the drive's Version.
type Repository interface {
	Create(ctx context.Context, drive JobDrive) (*JobDrive, error)
	GetByID(ctx context.Context, id common.UUID) (*JobDrive, error)
	Save(ctx context.Context, drive JobDrive) (*JobDrive, error)
	ListActive(ctx context.Context, limit, offset int) ([]JobDrive, error)
	ListByApplicant(ctx context.Context, studentID common.UUID) ([]JobDrive, error)
}
