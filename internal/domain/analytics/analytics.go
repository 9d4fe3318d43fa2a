package analytics

import (
	"context"
	"time"

	"placement/internal/common"
)

// Event is an append-only audit record of a state change.
type Event struct {
	ID        common.UUID       `json:"id"`
	Name      string            `json:"name"`
	UserID    *common.UUID      `json:"user_id,omitempty"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, event Event) error
}
