package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Notifuse/notifuse/internal/domain"
)

type downstreamRepository struct {
	db *sql.DB
}

// NewDownstreamRepository creates a new PostgreSQL-backed
// DownstreamRepository. Both methods run their statement inside a
// savepoint nested in the caller's transaction: a campaign feature that
// isn't deployed (undefined_table) or a call with no matching campaign
// row simply no-ops instead of aborting the enclosing commit.
func NewDownstreamRepository(db *sql.DB) domain.DownstreamRepository {
	return &downstreamRepository{db: db}
}

func (r *downstreamRepository) UpdateCampaignCallTx(ctx context.Context, tx *sql.Tx, callLogID string, endedAt time.Time, duration int, outcome domain.CallOutcome) error {
	return withSavepoint(ctx, tx, "downstream_campaign_call", func() error {
		_, err := tx.ExecContext(ctx, `
			UPDATE campaign_calls SET
				completed_at = $2, call_duration_seconds = $3, call_outcome = $4,
				status = 'completed', updated_at = $5
			WHERE call_log_id = $1
		`, callLogID, endedAt, duration, outcome, time.Now().UTC())
		return err
	})
}

func (r *downstreamRepository) UpdateLeadTx(ctx context.Context, tx *sql.Tx, callLogID string, endedAt time.Time, duration int, outcome domain.CallOutcome) error {
	return withSavepoint(ctx, tx, "downstream_lead", func() error {
		_, err := tx.ExecContext(ctx, `
			UPDATE leads SET
				last_called_at = $2, times_called = times_called + 1,
				last_call_status = $3, last_call_duration = $4, updated_at = $5
			WHERE id = (SELECT lead_id FROM campaign_calls WHERE call_log_id = $1 LIMIT 1)
		`, callLogID, endedAt, outcome, duration, time.Now().UTC())
		return err
	})
}
