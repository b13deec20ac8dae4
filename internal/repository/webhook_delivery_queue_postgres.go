package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Notifuse/notifuse/internal/domain"
)

type webhookDeliveryQueueRepository struct {
	db *sql.DB
}

// NewWebhookDeliveryQueueRepository creates a new PostgreSQL-backed
// WebhookDeliveryQueueRepository.
func NewWebhookDeliveryQueueRepository(db *sql.DB) domain.WebhookDeliveryQueueRepository {
	return &webhookDeliveryQueueRepository{db: db}
}

func (r *webhookDeliveryQueueRepository) Enqueue(ctx context.Context, rows []*domain.WebhookDeliveryQueue) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()

	// Multi-value INSERT, batched to stay well under Postgres' parameter
	// limit; each row uses 13 parameters.
	const batchSize = 500
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		query := `
			INSERT INTO webhook_delivery_queue (
				id, tenant_id, partner_webhook_id, url, secret, event_type, payload,
				status, attempt_count, max_attempts, next_retry_at, created_at, scheduled_at
			) VALUES `
		args := make([]any, 0, len(batch)*13)
		for i, row := range batch {
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
			if row.ScheduledAt.IsZero() {
				row.ScheduledAt = now
			}
			if row.NextRetryAt.IsZero() {
				row.NextRetryAt = now
			}
			if row.Status == "" {
				row.Status = domain.DeliveryStatusPending
			}
			if row.MaxAttempts == 0 {
				row.MaxAttempts = domain.DefaultMaxAttempts
			}
			if row.Payload == nil {
				row.Payload = domain.MapOfAny{}
			}

			offset := i * 13
			if i > 0 {
				query += ","
			}
			query += fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				offset+1, offset+2, offset+3, offset+4, offset+5, offset+6, offset+7,
				offset+8, offset+9, offset+10, offset+11, offset+12, offset+13)

			args = append(args,
				row.ID, row.TenantID, row.PartnerWebhookID, row.URL, row.Secret, row.EventType,
				row.Payload, row.Status, row.AttemptCount, row.MaxAttempts, row.NextRetryAt,
				row.CreatedAt, row.ScheduledAt,
			)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return &domain.StorageError{Op: "WebhookDeliveryQueueRepository.Enqueue", Err: err}
		}
	}

	return nil
}

// ClaimDue implements the atomic claim with SELECT ... FOR UPDATE SKIP
// LOCKED nested in an UPDATE ... FROM, so concurrent workers never
// observe or take the same row.
func (r *webhookDeliveryQueueRepository) ClaimDue(ctx context.Context, limit int) ([]*domain.WebhookDeliveryQueue, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE webhook_delivery_queue AS q
		SET status = $1, last_attempt_at = $2
		FROM (
			SELECT id FROM webhook_delivery_queue
			WHERE status = $3 AND next_retry_at <= $2
			ORDER BY next_retry_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AS claimed
		WHERE q.id = claimed.id
		RETURNING q.id, q.tenant_id, q.partner_webhook_id, q.url, q.secret, q.event_type,
			q.payload, q.status, q.attempt_count, q.max_attempts, q.next_retry_at,
			q.last_attempt_at, q.last_response_status, q.last_error, q.created_at,
			q.scheduled_at, q.delivered_at
	`, domain.DeliveryStatusInFlight, time.Now().UTC(), domain.DeliveryStatusPending, limit)
	if err != nil {
		return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.ClaimDue", Err: err}
	}
	defer rows.Close()

	var claimed []*domain.WebhookDeliveryQueue
	for rows.Next() {
		item, err := scanDeliveryQueueRow(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.ClaimDue", Err: err}
		}
		claimed = append(claimed, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.ClaimDue", Err: err}
	}
	return claimed, nil
}

func (r *webhookDeliveryQueueRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time, responseStatus int) error {
	return markDelivered(ctx, r.db, id, deliveredAt, responseStatus)
}

func (r *webhookDeliveryQueueRepository) MarkDeliveredTx(ctx context.Context, tx *sql.Tx, id string, deliveredAt time.Time, responseStatus int) error {
	return markDelivered(ctx, tx, id, deliveredAt, responseStatus)
}

func markDelivered(ctx context.Context, q dbtx, id string, deliveredAt time.Time, responseStatus int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE webhook_delivery_queue SET
			status = $2, delivered_at = $3, last_response_status = $4
		WHERE id = $1
	`, id, domain.DeliveryStatusDelivered, deliveredAt, responseStatus)
	if err != nil {
		return &domain.StorageError{Op: "WebhookDeliveryQueueRepository.MarkDelivered", Err: err}
	}
	return nil
}

func (r *webhookDeliveryQueueRepository) ScheduleRetry(ctx context.Context, id string, attemptCount int, nextRetryAt time.Time, responseStatus *int, lastError string) error {
	return scheduleRetry(ctx, r.db, id, attemptCount, nextRetryAt, responseStatus, lastError)
}

func (r *webhookDeliveryQueueRepository) ScheduleRetryTx(ctx context.Context, tx *sql.Tx, id string, attemptCount int, nextRetryAt time.Time, responseStatus *int, lastError string) error {
	return scheduleRetry(ctx, tx, id, attemptCount, nextRetryAt, responseStatus, lastError)
}

func scheduleRetry(ctx context.Context, q dbtx, id string, attemptCount int, nextRetryAt time.Time, responseStatus *int, lastError string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE webhook_delivery_queue SET
			status = $2, attempt_count = $3, next_retry_at = $4,
			last_response_status = $5, last_error = $6
		WHERE id = $1
	`, id, domain.DeliveryStatusPending, attemptCount, nextRetryAt, responseStatus, lastError)
	if err != nil {
		return &domain.StorageError{Op: "WebhookDeliveryQueueRepository.ScheduleRetry", Err: err}
	}
	return nil
}

func (r *webhookDeliveryQueueRepository) MarkDeadLetter(ctx context.Context, id string, attemptCount int, responseStatus *int, lastError string) error {
	return markDeadLetter(ctx, r.db, id, attemptCount, responseStatus, lastError)
}

func (r *webhookDeliveryQueueRepository) MarkDeadLetterTx(ctx context.Context, tx *sql.Tx, id string, attemptCount int, responseStatus *int, lastError string) error {
	return markDeadLetter(ctx, tx, id, attemptCount, responseStatus, lastError)
}

func markDeadLetter(ctx context.Context, q dbtx, id string, attemptCount int, responseStatus *int, lastError string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE webhook_delivery_queue SET
			status = $2, attempt_count = $3, last_response_status = $4, last_error = $5
		WHERE id = $1
	`, id, domain.DeliveryStatusDeadLetter, attemptCount, responseStatus, lastError)
	if err != nil {
		return &domain.StorageError{Op: "WebhookDeliveryQueueRepository.MarkDeadLetter", Err: err}
	}
	return nil
}

func (r *webhookDeliveryQueueRepository) CountPending(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM webhook_delivery_queue
		WHERE tenant_id = $1 AND status IN ($2, $3)
	`, tenantID, domain.DeliveryStatusPending, domain.DeliveryStatusInFlight).Scan(&count)
	if err != nil {
		return 0, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.CountPending", Err: err}
	}
	return count, nil
}

func (r *webhookDeliveryQueueRepository) CountDeadLetter(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM webhook_delivery_queue WHERE tenant_id = $1 AND status = $2
	`, tenantID, domain.DeliveryStatusDeadLetter).Scan(&count)
	if err != nil {
		return 0, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.CountDeadLetter", Err: err}
	}
	return count, nil
}

// ReclaimStale recovers rows abandoned by a worker that crashed or was
// killed mid-delivery: anything still in_flight past staleAfter goes
// back to pending with no attempt-count change, since the attempt never
// definitively completed.
func (r *webhookDeliveryQueueRepository) ReclaimStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	result, err := r.db.ExecContext(ctx, `
		UPDATE webhook_delivery_queue SET status = $1, next_retry_at = $2
		WHERE status = $3 AND last_attempt_at < $2
	`, domain.DeliveryStatusPending, cutoff, domain.DeliveryStatusInFlight)
	if err != nil {
		return 0, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.ReclaimStale", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.ReclaimStale", Err: err}
	}
	return int(rows), nil
}

func (r *webhookDeliveryQueueRepository) List(ctx context.Context, params domain.WebhookDeliveryQueueListParams) (*domain.WebhookDeliveryQueueListResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	q := psql.Select(
		"id", "tenant_id", "partner_webhook_id", "url", "secret", "event_type", "payload",
		"status", "attempt_count", "max_attempts", "next_retry_at", "last_attempt_at",
		"last_response_status", "last_error", "created_at", "scheduled_at", "delivered_at",
	).From("webhook_delivery_queue").Where(sq.Eq{"tenant_id": params.TenantID})

	if params.Status != "" {
		q = q.Where(sq.Eq{"status": params.Status})
	}
	if params.EventType != "" {
		q = q.Where(sq.Eq{"event_type": params.EventType})
	}
	if params.Cursor != "" {
		cursorTime, cursorID, err := decodeListCursor(params.Cursor)
		if err != nil {
			return nil, domain.NewValidationError("invalid cursor: " + err.Error())
		}
		q = q.Where(sq.Or{
			sq.Lt{"created_at": cursorTime},
			sq.And{sq.Eq{"created_at": cursorTime}, sq.Lt{"id": cursorID}},
		})
	}

	q = q.OrderBy("created_at DESC", "id DESC").Limit(uint64(params.Limit + 1))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.List", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.List", Err: err}
	}
	defer rows.Close()

	var deliveries []*domain.WebhookDeliveryQueue
	for rows.Next() {
		item, err := scanDeliveryQueueRow(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.List", Err: err}
		}
		deliveries = append(deliveries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "WebhookDeliveryQueueRepository.List", Err: err}
	}

	result := &domain.WebhookDeliveryQueueListResult{Deliveries: deliveries}
	if len(deliveries) > params.Limit {
		result.HasMore = true
		result.Deliveries = deliveries[:params.Limit]
		last := result.Deliveries[len(result.Deliveries)-1]
		result.NextCursor = encodeListCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

func scanDeliveryQueueRow(row rowScanner) (*domain.WebhookDeliveryQueue, error) {
	var item domain.WebhookDeliveryQueue
	var partnerWebhookID sql.NullString
	var lastAttemptAt, deliveredAt sql.NullTime
	var lastResponseStatus sql.NullInt64
	var lastError sql.NullString

	err := row.Scan(
		&item.ID, &item.TenantID, &partnerWebhookID, &item.URL, &item.Secret, &item.EventType,
		&item.Payload, &item.Status, &item.AttemptCount, &item.MaxAttempts, &item.NextRetryAt,
		&lastAttemptAt, &lastResponseStatus, &lastError, &item.CreatedAt, &item.ScheduledAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	if partnerWebhookID.Valid {
		item.PartnerWebhookID = &partnerWebhookID.String
	}
	if lastAttemptAt.Valid {
		item.LastAttemptAt = &lastAttemptAt.Time
	}
	if deliveredAt.Valid {
		item.DeliveredAt = &deliveredAt.Time
	}
	if lastResponseStatus.Valid {
		v := int(lastResponseStatus.Int64)
		item.LastResponseStatus = &v
	}
	if lastError.Valid {
		item.LastError = &lastError.String
	}

	return &item, nil
}
