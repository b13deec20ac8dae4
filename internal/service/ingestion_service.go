package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/internal/metrics"
	"github.com/Notifuse/notifuse/internal/signer"
	"github.com/Notifuse/notifuse/pkg/logger"
)

// IngestionOutcome is the caller-facing result of processing one
// upstream webhook delivery. It never exposes storage or downstream
// failures that are internal to the pipeline; those are mapped to a
// plain error the HTTP layer turns into a 500.
type IngestionOutcome struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// IngestionService applies one upstream call-completed webhook to a
// tenant's CallLog, recording the event for idempotency and fanning the
// classified outcome out to every subscribed partner. The event record,
// call log and downstream writes happen inside a single outer
// transaction so a crash midway never leaves the call log updated
// without its matching event record; partner deliveries are enqueued
// after that transaction commits.
type IngestionService struct {
	db            *sql.DB
	callLogs      domain.CallLogRepository
	upstreamEvts  domain.UpstreamCallEventRepository
	downstream    domain.DownstreamRepository
	enqueuer      *Enqueuer
	signingSecret string
	logger        logger.Logger
}

// NewIngestionService creates a new IngestionService.
func NewIngestionService(
	db *sql.DB,
	callLogs domain.CallLogRepository,
	upstreamEvts domain.UpstreamCallEventRepository,
	downstream domain.DownstreamRepository,
	enqueuer *Enqueuer,
	signingSecret string,
	log logger.Logger,
) *IngestionService {
	return &IngestionService{
		db:            db,
		callLogs:      callLogs,
		upstreamEvts:  upstreamEvts,
		downstream:    downstream,
		enqueuer:      enqueuer,
		signingSecret: signingSecret,
		logger:        log,
	}
}

// VerifySignature checks the raw request body against the X-Signature
// header using the upstream (non-timestamped) HMAC scheme. Callers
// should treat a false return as an *domain.AuthFailureError.
func (s *IngestionService) VerifySignature(body []byte, signatureHeader string) bool {
	return signer.VerifyUpstream(body, s.signingSecret, signatureHeader)
}

// Process parses, validates, and applies one upstream webhook body for
// tenantID. The returned error, when non-nil, is always one of the
// domain error kinds so the HTTP layer can map it to a status code with
// errors.As.
func (s *IngestionService) Process(ctx context.Context, tenantID string, body []byte) (*IngestionOutcome, error) {
	var payload domain.UpstreamWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.MalformedInputError{Reason: err.Error()}
	}
	if payload.ID == "" {
		return nil, &domain.MalformedInputError{Field: "id", Reason: "required"}
	}
	if payload.Room.Name == "" {
		return nil, &domain.MalformedInputError{Field: "room.name", Reason: "required"}
	}

	if !domain.IsProcessableEventType(payload.EventType) {
		return &IngestionOutcome{Status: "ignored", Detail: "event type not processed"}, nil
	}

	eventTimestamp, err := parseUpstreamTimestamp(payload.CreatedAt)
	if err != nil {
		return nil, &domain.MalformedInputError{Field: "createdAt", Reason: err.Error()}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.StorageError{Op: "begin ingestion tx", Err: err}
	}
	defer tx.Rollback()

	call, err := s.resolveCallContext(ctx, tx, tenantID, payload)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			s.logger.WithFields(map[string]interface{}{
				"tenant_id": tenantID,
				"room_name": payload.Room.Name,
				"event_id":  payload.ID,
			}).Warn("upstream event references unknown call, dropping")
			return &IngestionOutcome{Status: "ignored", Detail: "no matching call"}, nil
		}
		return nil, &domain.StorageError{Op: "resolve call context", Err: err}
	}

	rawPayload, err := rawPayloadMap(body)
	if err != nil {
		return nil, &domain.MalformedInputError{Reason: err.Error()}
	}

	event := &domain.UpstreamCallEvent{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		CallLogID:      &call.ID,
		EventID:        payload.ID,
		EventType:      payload.EventType,
		RoomName:       payload.Room.Name,
		EventTimestamp: eventTimestamp,
		RawPayload:     rawPayload,
	}
	if payload.Room.SID != "" {
		event.RoomSID = &payload.Room.SID
	}
	if payload.Participant != nil {
		if payload.Participant.Identity != "" {
			event.ParticipantIdentity = &payload.Participant.Identity
		}
		if payload.Participant.SID != "" {
			event.ParticipantSID = &payload.Participant.SID
		}
	}

	if err := s.upstreamEvts.InsertTx(ctx, tx, event); err != nil {
		var dup *domain.DuplicateEventError
		if errors.As(err, &dup) {
			metrics.RecordEventDuplicate()
			if err := tx.Commit(); err != nil {
				return nil, &domain.StorageError{Op: "commit ingestion tx", Err: err}
			}
			return &IngestionOutcome{Status: "already_processed", CallID: call.ID}, nil
		}
		return nil, &domain.StorageError{Op: "insert upstream event", Err: err}
	}

	disconnectReason := ""
	if payload.Participant != nil {
		disconnectReason = payload.Participant.DisconnectReason
	}
	startedAt := call.StartedAt
	if payload.Room.CreationTime != nil {
		if ts, err := parseUpstreamTimestamp(payload.Room.CreationTime); err == nil {
			startedAt = ts
		}
	}
	duration := int(eventTimestamp.Sub(startedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	outcome := classifyOutcome(disconnectReason, duration)

	var recordingURL *string
	if payload.EgressInfo != nil {
		for _, f := range payload.EgressInfo.FileResults {
			if url := f.DownloadURL(); url != "" {
				recordingURL = &url
				break
			}
		}
	}

	metadataMerge := domain.MapOfAny{"last_event_type": payload.EventType}
	if err := s.callLogs.UpdateOutcomeTx(ctx, tx, tenantID, call.ID, eventTimestamp, duration, outcome, recordingURL, metadataMerge); err != nil {
		return nil, &domain.StorageError{Op: "update call outcome", Err: err}
	}

	if err := s.downstream.UpdateCampaignCallTx(ctx, tx, call.ID, eventTimestamp, duration, outcome); err != nil {
		s.logger.WithFields(map[string]interface{}{"call_id": call.ID, "error": err.Error()}).Debug("campaign call update skipped")
	}
	if err := s.downstream.UpdateLeadTx(ctx, tx, call.ID, eventTimestamp, duration, outcome); err != nil {
		s.logger.WithFields(map[string]interface{}{"call_id": call.ID, "error": err.Error()}).Debug("lead update skipped")
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.StorageError{Op: "commit ingestion tx", Err: err}
	}

	metrics.RecordEventIngested(payload.EventType, string(outcome))

	if s.enqueuer != nil {
		eventPayload := domain.MapOfAny{
			"call_id":   call.ID,
			"room_name": call.RoomName,
			"outcome":   string(outcome),
			"duration":  duration,
			"ended_at":  eventTimestamp,
		}
		if recordingURL != nil {
			eventPayload["recording_url"] = *recordingURL
		}
		if _, err := s.enqueuer.EnqueueForAllPartners(ctx, tenantID, "call.completed", eventPayload); err != nil {
			s.logger.WithFields(map[string]interface{}{"call_id": call.ID, "error": err.Error()}).Error("failed to enqueue partner deliveries")
		}
	}

	return &IngestionOutcome{Status: "processed", CallID: call.ID, Outcome: string(outcome)}, nil
}

func (s *IngestionService) resolveCallContext(ctx context.Context, tx *sql.Tx, tenantID string, payload domain.UpstreamWebhookPayload) (*domain.CallLog, error) {
	if payload.Room.SID != "" {
		call, err := s.callLogs.GetByRoomSIDTx(ctx, tx, tenantID, payload.Room.SID)
		var notFound *domain.NotFoundError
		if err == nil || !errors.As(err, &notFound) {
			return call, err
		}
	}
	return s.callLogs.GetByRoomNameTx(ctx, tx, tenantID, payload.Room.Name)
}

func rawPayloadMap(body []byte) (domain.MapOfAny, error) {
	var m domain.MapOfAny
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode raw payload: %w", err)
	}
	return m, nil
}
