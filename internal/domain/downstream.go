package domain

import (
	"context"
	"database/sql"
	"time"
)

// DownstreamRepository applies best-effort updates to call-outcome
// consumer tables (campaign_calls, leads) that a given deployment may
// or may not have. A missing table, or simply no matching row, is not
// an error the caller should act on.
type DownstreamRepository interface {
	// UpdateCampaignCallTx marks the campaign_calls row keyed by
	// callLogID (if any) completed with the classified outcome.
	UpdateCampaignCallTx(ctx context.Context, tx *sql.Tx, callLogID string, endedAt time.Time, duration int, outcome CallOutcome) error

	// UpdateLeadTx refreshes the lead reachable through the
	// campaign_calls row keyed by callLogID (if any) with the latest
	// call outcome and a bumped call count.
	UpdateLeadTx(ctx context.Context, tx *sql.Tx, callLogID string, endedAt time.Time, duration int, outcome CallOutcome) error
}
