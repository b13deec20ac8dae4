package domain

import (
	"context"
	"database/sql"
	"time"
)

// CallDirection is the direction of a call relative to the platform.
type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// CallStatus is the lifecycle state of a CallLog.
type CallStatus string

const (
	CallStatusActive CallStatus = "active"
	CallStatusEnded  CallStatus = "ended"
)

// CallOutcome classifies how a call ended. Only populated once a call
// reaches CallStatusEnded.
type CallOutcome string

const (
	CallOutcomeCompleted CallOutcome = "completed"
	CallOutcomeNoAnswer  CallOutcome = "no_answer"
	CallOutcomeBusy      CallOutcome = "busy"
	CallOutcomeFailed    CallOutcome = "failed"
	CallOutcomeVoicemail CallOutcome = "voicemail"
	CallOutcomeUnknown   CallOutcome = "unknown"
)

// CallLog represents a single call handled by the platform. A CallLog is
// created by an external call-setup path in CallStatusActive and
// transitions exactly once to CallStatusEnded with a classified outcome.
type CallLog struct {
	ID              string
	TenantID        string
	AgentID         *string
	RoomName        string
	RoomSID         *string
	Direction       CallDirection
	PhoneNumber     string
	Status          CallStatus
	Outcome         *CallOutcome
	DurationSeconds *int
	StartedAt       time.Time
	EndedAt         *time.Time
	RecordingURL    *string
	Metadata        MapOfAny
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CallLogRepository persists and resolves CallLog rows. Resolution by
// room identity always prefers RoomSID (unique indexed) over RoomName,
// per the dual room-lookup strategy.
type CallLogRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*CallLog, error)
	GetByRoomSID(ctx context.Context, tenantID, roomSID string) (*CallLog, error)
	GetByRoomName(ctx context.Context, tenantID, roomName string) (*CallLog, error)
	Create(ctx context.Context, call *CallLog) error

	// UpdateOutcome transitions a call to CallStatusEnded with the given
	// outcome, duration, recording URL, and metadata merge. It returns
	// *NotFoundError if the row vanished between lookup and update.
	UpdateOutcome(ctx context.Context, tenantID, id string, endedAt time.Time, duration int, outcome CallOutcome, recordingURL *string, metadataMerge MapOfAny) error

	List(ctx context.Context, params CallLogListParams) (*CallLogListResult, error)

	// Tx variants run the same lookup/update inside a caller-managed
	// transaction. The ingestion service resolves call context, updates
	// the outcome, and commits optional downstream updates as one outer
	// transaction (§4.4).
	GetByRoomSIDTx(ctx context.Context, tx *sql.Tx, tenantID, roomSID string) (*CallLog, error)
	GetByRoomNameTx(ctx context.Context, tx *sql.Tx, tenantID, roomName string) (*CallLog, error)
	UpdateOutcomeTx(ctx context.Context, tx *sql.Tx, tenantID, id string, endedAt time.Time, duration int, outcome CallOutcome, recordingURL *string, metadataMerge MapOfAny) error
}

// CallLogListParams filters and paginates an admin listing of call logs.
type CallLogListParams struct {
	TenantID  string
	Status    string
	Outcome   string
	Direction string
	Limit     int
	Cursor    string
}

// Validate applies defaults and rejects malformed query parameters.
func (p *CallLogListParams) Validate() error {
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
	case "", string(CallStatusActive), string(CallStatusEnded):
	default:
		return NewValidationError("invalid status filter")
	}
	return nil
}

// CallLogListResult is a page of CallLog rows plus cursor pagination state.
type CallLogListResult struct {
	Calls      []*CallLog
	NextCursor string
	HasMore    bool
}
