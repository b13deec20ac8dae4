package domain

import (
	"context"
	"database/sql"
	"time"
)

// Processable upstream event types. Anything else is dropped (2xx,
// no DB writes) during ingestion.
const (
	EventTypeParticipantLeft = "participant_left"
	EventTypeRoomFinished    = "room_finished"
	EventTypeEgressEnded     = "egress_ended"
)

// IsProcessableEventType reports whether event type t is handled by the
// ingestion pipeline.
func IsProcessableEventType(t string) bool {
	switch t {
	case EventTypeParticipantLeft, EventTypeRoomFinished, EventTypeEgressEnded:
		return true
	default:
		return false
	}
}

// UpstreamCallEvent records one processed upstream webhook delivery.
// EventID is the idempotency key: the repository enforces a unique
// constraint on event_id and the insert path treats a constraint
// violation as success, not failure.
type UpstreamCallEvent struct {
	ID                  string
	TenantID            string
	CallLogID           *string
	EventID             string
	EventType           string
	RoomName            string
	RoomSID             *string
	ParticipantIdentity *string
	ParticipantSID      *string
	EventTimestamp      time.Time
	RawPayload          MapOfAny
	Processed           bool
	ProcessedAt         *time.Time
	CreatedAt           time.Time
}

// UpstreamCallEventRepository persists ingested events. InsertTx wraps
// its insert in its own savepoint so a unique constraint violation can
// be distinguished and swallowed without poisoning the enclosing
// transaction.
type UpstreamCallEventRepository interface {
	// Insert attempts to record event. It returns *DuplicateEventError
	// when event.EventID already exists (event_id is unique across all
	// tenants).
	Insert(ctx context.Context, event *UpstreamCallEvent) error
	MarkProcessed(ctx context.Context, tenantID, id string, processedAt time.Time) error

	// InsertTx is the variant the ingestion service actually calls: the
	// insert runs inside a savepoint nested in the caller's transaction,
	// so a duplicate event_id rolls back only the savepoint.
	InsertTx(ctx context.Context, tx *sql.Tx, event *UpstreamCallEvent) error
}

// UpstreamWebhookPayload is the raw shape of an upstream call-completed
// webhook, before timestamp normalization and field extraction.
type UpstreamWebhookPayload struct {
	ID          string               `json:"id"`
	EventType   string               `json:"event"`
	CreatedAt   any                  `json:"createdAt"`
	Room        UpstreamRoom         `json:"room"`
	Participant *UpstreamParticipant `json:"participant,omitempty"`
	EgressInfo  *UpstreamEgressInfo  `json:"egressInfo,omitempty"`
}

// UpstreamRoom is the embedded room object of an upstream payload.
type UpstreamRoom struct {
	Name         string `json:"name"`
	SID          string `json:"sid,omitempty"`
	CreationTime any    `json:"creationTime,omitempty"`
}

// UpstreamParticipant is the embedded participant object, present on
// participant_left events.
type UpstreamParticipant struct {
	Identity         string `json:"identity,omitempty"`
	SID              string `json:"sid,omitempty"`
	DisconnectReason string `json:"disconnectReason,omitempty"`
}

// UpstreamEgressInfo carries recording results on egress_ended events.
// Both wire spellings of the download URL field are accepted, since
// upstream's own SDK has shipped both historically.
type UpstreamEgressInfo struct {
	FileResults []UpstreamFileResult `json:"fileResults,omitempty"`
}

// UpstreamFileResult is one recorded file entry within egress info.
type UpstreamFileResult struct {
	DownloadURLSnake string `json:"download_url,omitempty"`
	DownloadURLCamel string `json:"downloadUrl,omitempty"`
}

// DownloadURL returns whichever spelling of the download URL field was
// populated, preferring the snake_case form.
func (f UpstreamFileResult) DownloadURL() string {
	if f.DownloadURLSnake != "" {
		return f.DownloadURLSnake
	}
	return f.DownloadURLCamel
}
