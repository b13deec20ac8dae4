package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Notifuse/notifuse/internal/domain"
)

func TestDeliveryAttemptLogRepository_Insert_DefaultsTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO delivery_attempt_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDeliveryAttemptLogRepository(db)
	log := &domain.DeliveryAttemptLog{
		ID:            "log-1",
		TenantID:      "tenant-1",
		AttemptNumber: 1,
		TargetURL:     "https://partner.example.com/hook",
		Success:       true,
	}
	err = repo.Insert(context.Background(), log)
	require.NoError(t, err)
	assert.False(t, log.AttemptTimestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryAttemptLogRepository_ListByQueueID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "queue_id", "tenant_id", "attempt_number", "attempt_timestamp", "target_url",
		"request_headers", "request_body", "response_status", "response_headers",
		"response_body", "response_time_ms", "error_message", "network_error", "success",
	}).AddRow(
		"log-1", "q-1", "tenant-1", 1, now, "https://partner.example.com/hook",
		`{}`, nil, 200, `{}`, nil, 120, nil, false, true,
	)
	mock.ExpectQuery("SELECT (.+) FROM delivery_attempt_logs").
		WithArgs("tenant-1", "q-1", 20).
		WillReturnRows(rows)

	repo := NewDeliveryAttemptLogRepository(db)
	logs, err := repo.ListByQueueID(context.Background(), "tenant-1", "q-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "log-1", logs[0].ID)
	require.NotNil(t, logs[0].ResponseStatus)
	assert.Equal(t, 200, *logs[0].ResponseStatus)
}
