package app

import (
	"context"

	"placement/internal/observability"
)

func analyticsPayload(ctx context.Context, payload map[string]string) map[string]string {
	if payload == nil {
		payload = make(map[string]string)
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		payload["request_id"] = id
	}
	return payload
}
