package domain

import (
	"context"
	"database/sql"
	"time"
)

// DeliveryStatus is the lifecycle state of a WebhookDeliveryQueue row.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusInFlight   DeliveryStatus = "in_flight"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusDeadLetter DeliveryStatus = "dead_letter"
)

// DefaultMaxAttempts is the default retry budget for a queued delivery.
const DefaultMaxAttempts = 5

// WebhookDeliveryQueue is one outbound delivery attempt-cycle. URL and
// Secret are a frozen snapshot taken at enqueue time so later edits to
// the owning PartnerWebhook don't mutate in-flight items.
type WebhookDeliveryQueue struct {
	ID                 string
	TenantID           string
	PartnerWebhookID   *string
	URL                string
	Secret             string
	EventType          string
	Payload            MapOfAny
	Status             DeliveryStatus
	AttemptCount       int
	MaxAttempts        int
	NextRetryAt        time.Time
	LastAttemptAt      *time.Time
	LastResponseStatus *int
	LastError          *string
	CreatedAt          time.Time
	ScheduledAt        time.Time
	DeliveredAt        *time.Time
}

// MergePayload composes the outbound body: the stored payload merged
// with the partner's configured custom fields. The stored payload wins
// on key collision, since custom fields are defaults, not overrides.
func (q *WebhookDeliveryQueue) MergePayload(customFields MapOfAny) MapOfAny {
	if len(customFields) == 0 {
		return q.Payload
	}
	merged := make(MapOfAny, len(customFields)+len(q.Payload))
	for k, v := range customFields {
		merged[k] = v
	}
	for k, v := range q.Payload {
		merged[k] = v
	}
	return merged
}

// WebhookDeliveryQueueRepository manages the delivery queue.
type WebhookDeliveryQueueRepository interface {
	// Enqueue inserts new rows. It does not check queue depth: Enqueuer
	// reads CountPending before calling it and counts any overflow.
	Enqueue(ctx context.Context, rows []*WebhookDeliveryQueue) error

	// ClaimDue atomically selects up to limit rows in DeliveryStatusPending
	// whose NextRetryAt has passed, flips them to DeliveryStatusInFlight,
	// and returns them, ordered oldest-due first. No two concurrent
	// callers may claim the same row.
	ClaimDue(ctx context.Context, limit int) ([]*WebhookDeliveryQueue, error)

	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time, responseStatus int) error
	ScheduleRetry(ctx context.Context, id string, attemptCount int, nextRetryAt time.Time, responseStatus *int, lastError string) error
	MarkDeadLetter(ctx context.Context, id string, attemptCount int, responseStatus *int, lastError string) error

	// Tx variants pair the queue-row transition with the audit-log insert
	// in one transaction (§4.5 step 4), so a crash between the two never
	// leaves a delivered/dead-lettered row without its attempt record.
	MarkDeliveredTx(ctx context.Context, tx *sql.Tx, id string, deliveredAt time.Time, responseStatus int) error
	ScheduleRetryTx(ctx context.Context, tx *sql.Tx, id string, attemptCount int, nextRetryAt time.Time, responseStatus *int, lastError string) error
	MarkDeadLetterTx(ctx context.Context, tx *sql.Tx, id string, attemptCount int, responseStatus *int, lastError string) error

	// CountPending returns the number of pending+in_flight rows for a
	// tenant, used for the soft-cap overflow check at enqueue time.
	CountPending(ctx context.Context, tenantID string) (int, error)

	// CountDeadLetter returns the number of dead_letter rows for a
	// tenant, used to drive the operator alert threshold.
	CountDeadLetter(ctx context.Context, tenantID string) (int, error)

	// ReclaimStale transitions rows stuck in_flight past staleAfter back
	// to pending without incrementing attempt_count. Run once at worker
	// startup.
	ReclaimStale(ctx context.Context, staleAfter time.Duration) (int, error)

	List(ctx context.Context, params WebhookDeliveryQueueListParams) (*WebhookDeliveryQueueListResult, error)
}

// WebhookDeliveryQueueListParams filters an admin listing of queue rows.
type WebhookDeliveryQueueListParams struct {
	TenantID  string
	Status    string
	EventType string
	Limit     int
	Cursor    string
}

// Validate applies defaults and rejects malformed query parameters.
func (p *WebhookDeliveryQueueListParams) Validate() error {
	if p.TenantID == "" {
		return NewValidationError("tenant_id is required")
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	switch p.Status {
	case "", string(DeliveryStatusPending), string(DeliveryStatusInFlight),
		string(DeliveryStatusDelivered), string(DeliveryStatusFailed), string(DeliveryStatusDeadLetter):
	default:
		return NewValidationError("invalid status filter")
	}
	return nil
}

// WebhookDeliveryQueueListResult is a page of queue rows.
type WebhookDeliveryQueueListResult struct {
	Deliveries []*WebhookDeliveryQueue
	NextCursor string
	HasMore    bool
}
