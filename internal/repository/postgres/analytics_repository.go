package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"placement/internal/common"
	"placement/internal/domain/analytics"
)

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) Create(ctx context.Context, event analytics.Event) error {
	if event.ID.IsZero() {
		event.ID = common.NewUUID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload := event.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to encode analytics payload", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO analytics_events (id, name, user_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Name, event.UserID, string(raw), event.CreatedAt)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to record analytics event", err)
	}
	return nil
}

// CountByName is used by reporting and tests.
func (r *AnalyticsRepository) CountByName(ctx context.Context, name string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analytics_events WHERE name = $1`, name).Scan(&count); err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to count analytics events", err)
	}
	return count, nil
}
