package repository

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Notifuse/notifuse/internal/domain"
)

type callLogRepository struct {
	db *sql.DB
}

// NewCallLogRepository creates a new PostgreSQL-backed CallLogRepository
// sharing a single database across tenants, filtering every query on
// tenant_id.
func NewCallLogRepository(db *sql.DB) domain.CallLogRepository {
	return &callLogRepository{db: db}
}

func (r *callLogRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.CallLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, agent_id, room_name, room_sid, direction, phone_number,
			status, outcome, duration_seconds, started_at, ended_at, recording_url,
			metadata, created_at, updated_at
		FROM call_logs WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	call, err := scanCallLog(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "CallLog", Key: id}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "CallLogRepository.GetByID", Err: err}
	}
	return call, nil
}

const selectCallLogColumns = `id, tenant_id, agent_id, room_name, room_sid, direction, phone_number,
	status, outcome, duration_seconds, started_at, ended_at, recording_url,
	metadata, created_at, updated_at`

func (r *callLogRepository) GetByRoomSID(ctx context.Context, tenantID, roomSID string) (*domain.CallLog, error) {
	return getCallLogByRoomSID(ctx, r.db, tenantID, roomSID)
}

func (r *callLogRepository) GetByRoomName(ctx context.Context, tenantID, roomName string) (*domain.CallLog, error) {
	return getCallLogByRoomName(ctx, r.db, tenantID, roomName)
}

func (r *callLogRepository) GetByRoomSIDTx(ctx context.Context, tx *sql.Tx, tenantID, roomSID string) (*domain.CallLog, error) {
	return getCallLogByRoomSID(ctx, tx, tenantID, roomSID)
}

func (r *callLogRepository) GetByRoomNameTx(ctx context.Context, tx *sql.Tx, tenantID, roomName string) (*domain.CallLog, error) {
	return getCallLogByRoomName(ctx, tx, tenantID, roomName)
}

func getCallLogByRoomSID(ctx context.Context, q dbtx, tenantID, roomSID string) (*domain.CallLog, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+selectCallLogColumns+`
		FROM call_logs WHERE tenant_id = $1 AND room_sid = $2
	`, tenantID, roomSID)

	call, err := scanCallLog(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "CallLog", Key: roomSID}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "CallLogRepository.GetByRoomSID", Err: err}
	}
	return call, nil
}

func getCallLogByRoomName(ctx context.Context, q dbtx, tenantID, roomName string) (*domain.CallLog, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+selectCallLogColumns+`
		FROM call_logs WHERE tenant_id = $1 AND room_name = $2
		ORDER BY created_at DESC LIMIT 1
	`, tenantID, roomName)

	call, err := scanCallLog(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "CallLog", Key: roomName}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "CallLogRepository.GetByRoomName", Err: err}
	}
	return call, nil
}

func (r *callLogRepository) Create(ctx context.Context, call *domain.CallLog) error {
	now := time.Now().UTC()
	call.CreatedAt = now
	call.UpdatedAt = now
	if call.Metadata == nil {
		call.Metadata = domain.MapOfAny{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_logs (
			id, tenant_id, agent_id, room_name, room_sid, direction, phone_number,
			status, outcome, duration_seconds, started_at, ended_at, recording_url,
			metadata, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		call.ID, call.TenantID, call.AgentID, call.RoomName, call.RoomSID, call.Direction,
		call.PhoneNumber, call.Status, call.Outcome, call.DurationSeconds, call.StartedAt,
		call.EndedAt, call.RecordingURL, call.Metadata, call.CreatedAt, call.UpdatedAt,
	)
	if err != nil {
		return &domain.StorageError{Op: "CallLogRepository.Create", Err: err}
	}
	return nil
}

// UpdateOutcome transitions a call to ended, merging metadataMerge into the
// existing metadata map rather than replacing it, so classification
// diagnostics accumulate alongside whatever the call-setup path already
// recorded.
func (r *callLogRepository) UpdateOutcome(ctx context.Context, tenantID, id string, endedAt time.Time, duration int, outcome domain.CallOutcome, recordingURL *string, metadataMerge domain.MapOfAny) error {
	return updateCallLogOutcome(ctx, r.db, tenantID, id, endedAt, duration, outcome, recordingURL, metadataMerge)
}

func (r *callLogRepository) UpdateOutcomeTx(ctx context.Context, tx *sql.Tx, tenantID, id string, endedAt time.Time, duration int, outcome domain.CallOutcome, recordingURL *string, metadataMerge domain.MapOfAny) error {
	return updateCallLogOutcome(ctx, tx, tenantID, id, endedAt, duration, outcome, recordingURL, metadataMerge)
}

func updateCallLogOutcome(ctx context.Context, q dbtx, tenantID, id string, endedAt time.Time, duration int, outcome domain.CallOutcome, recordingURL *string, metadataMerge domain.MapOfAny) error {
	result, err := q.ExecContext(ctx, `
		UPDATE call_logs SET
			status = $3,
			ended_at = $4,
			duration_seconds = $5,
			outcome = $6,
			recording_url = COALESCE($7, recording_url),
			metadata = metadata || $8::jsonb,
			updated_at = $9
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, domain.CallStatusEnded, endedAt, duration, outcome, recordingURL, metadataMerge, time.Now().UTC())
	if err != nil {
		return &domain.StorageError{Op: "CallLogRepository.UpdateOutcome", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "CallLogRepository.UpdateOutcome", Err: err}
	}
	if rows == 0 {
		return &domain.NotFoundError{Entity: "CallLog", Key: id}
	}
	return nil
}

func (r *callLogRepository) List(ctx context.Context, params domain.CallLogListParams) (*domain.CallLogListResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	q := psql.Select(
		"id", "tenant_id", "agent_id", "room_name", "room_sid", "direction", "phone_number",
		"status", "outcome", "duration_seconds", "started_at", "ended_at", "recording_url",
		"metadata", "created_at", "updated_at",
	).From("call_logs").Where(sq.Eq{"tenant_id": params.TenantID})

	if params.Status != "" {
		q = q.Where(sq.Eq{"status": params.Status})
	}
	if params.Outcome != "" {
		q = q.Where(sq.Eq{"outcome": params.Outcome})
	}
	if params.Direction != "" {
		q = q.Where(sq.Eq{"direction": params.Direction})
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
		return nil, &domain.StorageError{Op: "CallLogRepository.List", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "CallLogRepository.List", Err: err}
	}
	defer rows.Close()

	var calls []*domain.CallLog
	for rows.Next() {
		call, err := scanCallLog(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "CallLogRepository.List", Err: err}
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "CallLogRepository.List", Err: err}
	}

	result := &domain.CallLogListResult{Calls: calls}
	if len(calls) > params.Limit {
		result.HasMore = true
		result.Calls = calls[:params.Limit]
		last := result.Calls[len(result.Calls)-1]
		result.NextCursor = encodeListCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallLog(row rowScanner) (*domain.CallLog, error) {
	var call domain.CallLog
	var agentID, roomSID, recordingURL sql.NullString
	var outcome sql.NullString
	var durationSeconds sql.NullInt64
	var endedAt sql.NullTime

	err := row.Scan(
		&call.ID, &call.TenantID, &agentID, &call.RoomName, &roomSID, &call.Direction,
		&call.PhoneNumber, &call.Status, &outcome, &durationSeconds, &call.StartedAt,
		&endedAt, &recordingURL, &call.Metadata, &call.CreatedAt, &call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if agentID.Valid {
		call.AgentID = &agentID.String
	}
	if roomSID.Valid {
		call.RoomSID = &roomSID.String
	}
	if recordingURL.Valid {
		call.RecordingURL = &recordingURL.String
	}
	if outcome.Valid {
		o := domain.CallOutcome(outcome.String)
		call.Outcome = &o
	}
	if durationSeconds.Valid {
		d := int(durationSeconds.Int64)
		call.DurationSeconds = &d
	}
	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}

	return &call, nil
}

// encodeListCursor/decodeListCursor implement the compound
// timestamp~id cursor shared by every keyset-paginated list query in
// this package.
func encodeListCursor(t time.Time, id string) string {
	raw := fmt.Sprintf("%s~%s", t.Format(time.RFC3339Nano), id)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func decodeListCursor(cursor string) (time.Time, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(decoded), "~", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("expected timestamp~id format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}
