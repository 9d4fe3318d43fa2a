package student

import (
	"context"

	"placement/internal/common"
)

type Repository interface {
	GetByID(ctx context.Context, id common.UUID) (*Profile, error)
	Upsert(ctx context.Context, profile Profile) (*Profile, error)
	UpdateConsent(ctx context.Context, id common.UUID, consent ConsentRecord) error
	UpdateVerification(ctx context.Context, id common.UUID, status VerificationStatus) error
}
