package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/Notifuse/notifuse/internal/domain"
)

type upstreamCallEventRepository struct {
	db *sql.DB
}

// NewUpstreamCallEventRepository creates a new PostgreSQL-backed
// UpstreamCallEventRepository.
func NewUpstreamCallEventRepository(db *sql.DB) domain.UpstreamCallEventRepository {
	return &upstreamCallEventRepository{db: db}
}

// uniqueViolationCode is the Postgres error code for a unique
// constraint violation (23505), used to detect the idempotency-gate hit
// on the unique event_id index.
const uniqueViolationCode = "23505"

func (r *upstreamCallEventRepository) Insert(ctx context.Context, event *domain.UpstreamCallEvent) error {
	return insertUpstreamCallEvent(ctx, r.db, event)
}

// InsertTx nests the insert in its own savepoint so a unique-constraint
// hit on event_id rolls back only the savepoint, leaving the caller's
// outer transaction (and anything it already did) intact.
func (r *upstreamCallEventRepository) InsertTx(ctx context.Context, tx *sql.Tx, event *domain.UpstreamCallEvent) error {
	return withSavepoint(ctx, tx, "upstream_event_insert", func() error {
		return insertUpstreamCallEvent(ctx, tx, event)
	})
}

func insertUpstreamCallEvent(ctx context.Context, q dbtx, event *domain.UpstreamCallEvent) error {
	event.CreatedAt = time.Now().UTC()
	if event.RawPayload == nil {
		event.RawPayload = domain.MapOfAny{}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO upstream_call_events (
			id, tenant_id, call_log_id, event_id, event_type, room_name, room_sid,
			participant_identity, participant_sid, event_timestamp, raw_payload,
			processed, processed_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		event.ID, event.TenantID, event.CallLogID, event.EventID, event.EventType,
		event.RoomName, event.RoomSID, event.ParticipantIdentity, event.ParticipantSID,
		event.EventTimestamp, event.RawPayload, event.Processed, event.ProcessedAt, event.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return &domain.DuplicateEventError{EventID: event.EventID}
		}
		return &domain.StorageError{Op: "UpstreamCallEventRepository.Insert", Err: err}
	}
	return nil
}

func (r *upstreamCallEventRepository) MarkProcessed(ctx context.Context, tenantID, id string, processedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE upstream_call_events SET processed = TRUE, processed_at = $3
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, processedAt)
	if err != nil {
		return &domain.StorageError{Op: "UpstreamCallEventRepository.MarkProcessed", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "UpstreamCallEventRepository.MarkProcessed", Err: err}
	}
	if rows == 0 {
		return &domain.NotFoundError{Entity: "UpstreamCallEvent", Key: id}
	}
	return nil
}
