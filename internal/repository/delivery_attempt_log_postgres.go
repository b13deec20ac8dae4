package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Notifuse/notifuse/internal/domain"
)

type deliveryAttemptLogRepository struct {
	db *sql.DB
}

// NewDeliveryAttemptLogRepository creates a new PostgreSQL-backed
// DeliveryAttemptLogRepository. Rows are append-only audit records.
func NewDeliveryAttemptLogRepository(db *sql.DB) domain.DeliveryAttemptLogRepository {
	return &deliveryAttemptLogRepository{db: db}
}

func (r *deliveryAttemptLogRepository) Insert(ctx context.Context, log *domain.DeliveryAttemptLog) error {
	return insertDeliveryAttemptLog(ctx, r.db, log)
}

func (r *deliveryAttemptLogRepository) InsertTx(ctx context.Context, tx *sql.Tx, log *domain.DeliveryAttemptLog) error {
	return insertDeliveryAttemptLog(ctx, tx, log)
}

func insertDeliveryAttemptLog(ctx context.Context, q dbtx, log *domain.DeliveryAttemptLog) error {
	if log.AttemptTimestamp.IsZero() {
		log.AttemptTimestamp = time.Now().UTC()
	}
	if log.RequestHeaders == nil {
		log.RequestHeaders = domain.MapOfAny{}
	}
	if log.ResponseHeaders == nil {
		log.ResponseHeaders = domain.MapOfAny{}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO delivery_attempt_logs (
			id, queue_id, tenant_id, attempt_number, attempt_timestamp, target_url,
			request_headers, request_body, response_status, response_headers,
			response_body, response_time_ms, error_message, network_error, success
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		log.ID, log.QueueID, log.TenantID, log.AttemptNumber, log.AttemptTimestamp, log.TargetURL,
		log.RequestHeaders, log.RequestBody, log.ResponseStatus, log.ResponseHeaders,
		log.ResponseBody, log.ResponseTimeMS, log.ErrorMessage, log.NetworkError, log.Success,
	)
	if err != nil {
		return &domain.StorageError{Op: "DeliveryAttemptLogRepository.Insert", Err: err}
	}
	return nil
}

func (r *deliveryAttemptLogRepository) ListByQueueID(ctx context.Context, tenantID, queueID string, limit int) ([]*domain.DeliveryAttemptLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, queue_id, tenant_id, attempt_number, attempt_timestamp, target_url,
			request_headers, request_body, response_status, response_headers,
			response_body, response_time_ms, error_message, network_error, success
		FROM delivery_attempt_logs
		WHERE tenant_id = $1 AND queue_id = $2
		ORDER BY attempt_number ASC
		LIMIT $3
	`, tenantID, queueID, limit)
	if err != nil {
		return nil, &domain.StorageError{Op: "DeliveryAttemptLogRepository.ListByQueueID", Err: err}
	}
	defer rows.Close()

	var logs []*domain.DeliveryAttemptLog
	for rows.Next() {
		var log domain.DeliveryAttemptLog
		var queueID sql.NullString
		var responseStatus, responseTimeMS sql.NullInt64
		var errorMessage sql.NullString

		err := rows.Scan(
			&log.ID, &queueID, &log.TenantID, &log.AttemptNumber, &log.AttemptTimestamp, &log.TargetURL,
			&log.RequestHeaders, &log.RequestBody, &responseStatus, &log.ResponseHeaders,
			&log.ResponseBody, &responseTimeMS, &errorMessage, &log.NetworkError, &log.Success,
		)
		if err != nil {
			return nil, &domain.StorageError{Op: "DeliveryAttemptLogRepository.ListByQueueID", Err: err}
		}

		if queueID.Valid {
			log.QueueID = &queueID.String
		}
		if responseStatus.Valid {
			v := int(responseStatus.Int64)
			log.ResponseStatus = &v
		}
		if responseTimeMS.Valid {
			v := int(responseTimeMS.Int64)
			log.ResponseTimeMS = &v
		}
		if errorMessage.Valid {
			log.ErrorMessage = &errorMessage.String
		}

		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "DeliveryAttemptLogRepository.ListByQueueID", Err: err}
	}
	return logs, nil
}
