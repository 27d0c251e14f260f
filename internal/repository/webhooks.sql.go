package repository

import (
	"context"
)

const claimWebhookEvent = `-- name: ClaimWebhookEvent :execrows
INSERT INTO processed_webhook_events (event_id, event_type)
VALUES ($1, $2)
ON CONFLICT (event_id) DO NOTHING
`

type ClaimWebhookEventParams struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

// ClaimWebhookEvent returns 1 when the event id is new and 0 when it has
// already been recorded.
func (q *Queries) ClaimWebhookEvent(ctx context.Context, arg ClaimWebhookEventParams) (int64, error) {
	result, err := q.db.Exec(ctx, claimWebhookEvent, arg.EventID, arg.EventType)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createWebhookError = `-- name: CreateWebhookError :exec
INSERT INTO webhook_errors (event_id, event_type, error_message, payload)
VALUES ($1, $2, $3, $4)
`

type CreateWebhookErrorParams struct {
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	ErrorMessage string `json:"error_message"`
	Payload      []byte `json:"payload"`
}

func (q *Queries) CreateWebhookError(ctx context.Context, arg CreateWebhookErrorParams) error {
	_, err := q.db.Exec(ctx, createWebhookError, arg.EventID, arg.EventType, arg.ErrorMessage, arg.Payload)
	return err
}
