package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Notifuse/notifuse/internal/deadletter"
	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/internal/metrics"
	"github.com/Notifuse/notifuse/internal/retry"
	"github.com/Notifuse/notifuse/internal/signer"
	"github.com/Notifuse/notifuse/pkg/logger"
)

// maxAuditResponseBytes bounds how much of a partner's response body
// the worker reads before discarding the rest of the stream.
const maxAuditResponseBytes = 1024

// WebhookDeliveryWorker claims due rows from the delivery queue and
// dispatches them to partner endpoints, applying the retry and
// dead-letter policies and recording one audit row per physical
// attempt.
type WebhookDeliveryWorker struct {
	db              *sql.DB
	queueRepo       domain.WebhookDeliveryQueueRepository
	auditRepo       domain.DeliveryAttemptLogRepository
	logger          logger.Logger
	httpClient      *http.Client
	retryPolicy     retry.Policy
	deadLetterAlert deadletter.Policy
	identity        string

	pollInterval            time.Duration
	batchSize               int
	maxConcurrentDeliveries int
	staleAfter              time.Duration
}

// WorkerConfig tunes a WebhookDeliveryWorker; zero values fall back to
// spec defaults.
type WorkerConfig struct {
	PollInterval            time.Duration
	BatchSize               int
	MaxConcurrentDeliveries int
	HTTPTimeout             time.Duration
	StaleAfter              time.Duration
	RetryPolicy             retry.Policy
	DeadLetterAlertPolicy   deadletter.Policy
}

// NewWebhookDeliveryWorker creates a new WebhookDeliveryWorker. identity
// is a stable per-process string (host+pid+startup-uuid) used in log
// fields. The startup reaper does not use it: ReclaimStale returns every
// stale in_flight row to pending, whichever worker claimed it.
func NewWebhookDeliveryWorker(
	queueRepo domain.WebhookDeliveryQueueRepository,
	auditRepo domain.DeliveryAttemptLogRepository,
	db *sql.DB,
	log logger.Logger,
	identity string,
	cfg WorkerConfig,
) *WebhookDeliveryWorker {
	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	maxConcurrent := cfg.MaxConcurrentDeliveries
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 2 * httpTimeout
	}
	retryPolicy := cfg.RetryPolicy
	if retryPolicy.MaxAttempts == 0 {
		retryPolicy = retry.NewPolicy()
	}
	deadLetterAlert := cfg.DeadLetterAlertPolicy
	if deadLetterAlert.Threshold == 0 {
		deadLetterAlert = deadletter.NewPolicy()
	}

	return &WebhookDeliveryWorker{
		db:        db,
		queueRepo: queueRepo,
		auditRepo: auditRepo,
		logger:    log,
		httpClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		},
		retryPolicy:             retryPolicy,
		deadLetterAlert:         deadLetterAlert,
		identity:                identity,
		pollInterval:            pollInterval,
		batchSize:               batchSize,
		maxConcurrentDeliveries: maxConcurrent,
		staleAfter:              staleAfter,
	}
}

// Start polls the queue until ctx is cancelled. On cancellation it
// stops claiming new rows; the caller is responsible for waiting out a
// grace period for in-flight deliveries before the process exits.
func (w *WebhookDeliveryWorker) Start(ctx context.Context) {
	w.logger.WithFields(map[string]interface{}{
		"identity":        w.identity,
		"retry_schedule":  retry.Schedule(w.retryPolicy.MaxAttempts),
		"retry_window_s":  retry.TotalRetryWindow(w.retryPolicy.MaxAttempts).Seconds(),
		"max_concurrency": w.maxConcurrentDeliveries,
	}).Info("webhook delivery worker starting")

	if n, err := w.queueRepo.ReclaimStale(ctx, w.staleAfter); err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to reclaim stale in-flight rows at startup")
	} else if n > 0 {
		w.logger.WithField("count", n).Warn("reclaimed stale in-flight rows at startup")
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook delivery worker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce claims one batch and dispatches it, bounding the number of
// concurrent outbound HTTP calls to maxConcurrentDeliveries.
func (w *WebhookDeliveryWorker) runOnce(ctx context.Context) {
	rows, err := w.queueRepo.ClaimDue(ctx, w.batchSize)
	if err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to claim due deliveries")
		return
	}
	if len(rows) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrentDeliveries)

	var active atomic.Int64
	for _, row := range rows {
		row := row
		g.Go(func() error {
			n := active.Add(1)
			metrics.UpdateActiveWorkers(float64(n))
			defer func() {
				metrics.UpdateActiveWorkers(float64(active.Add(-1)))
			}()
			w.deliver(gctx, row)
			return nil
		})
	}
	_ = g.Wait()
}

// deliver dispatches one claimed row and applies its outcome. Errors
// from the underlying repositories are logged, not returned, so one
// row's storage failure never aborts the rest of the batch.
func (w *WebhookDeliveryWorker) deliver(ctx context.Context, row *domain.WebhookDeliveryQueue) {
	attemptNumber := row.AttemptCount + 1
	start := time.Now()

	status, responseBody, respHeaders, reqHeaders, sendErr := w.send(ctx, row, attemptNumber)
	latency := time.Since(start)

	success := sendErr == nil && status >= 200 && status < 300
	metrics.RecordRetryAttempt(attemptNumber)

	auditLog := &domain.DeliveryAttemptLog{
		ID:               uuid.NewString(),
		QueueID:          &row.ID,
		TenantID:         row.TenantID,
		AttemptNumber:    attemptNumber,
		AttemptTimestamp: start,
		TargetURL:        row.URL,
		RequestHeaders:   headersToMap(reqHeaders),
		ResponseHeaders:  headersToMap(respHeaders),
		ResponseTimeMS:   intPtr(int(latency.Milliseconds())),
		Success:          success,
	}
	if responseBody != "" {
		auditLog.ResponseBody = domain.NullableJSON{Data: domain.TruncateAuditBody(responseBody)}
	}
	if status != 0 {
		auditLog.ResponseStatus = &status
	}

	var errMsg string
	if sendErr != nil {
		errMsg = sendErr.Error()
		msg := errMsg
		auditLog.ErrorMessage = &msg
		auditLog.NetworkError = !isPermanentURLError(sendErr)
	} else if !success {
		errMsg = fmt.Sprintf("partner responded HTTP %d", status)
	}

	if success {
		metrics.RecordWebhookDelivered(row.EventType)
		metrics.DeliveryLatencySeconds.WithLabelValues(partnerLabel(row)).Observe(latency.Seconds())
		w.finishDelivered(ctx, row, auditLog, status)
		return
	}

	nonRetryableURL := sendErr != nil && isPermanentURLError(sendErr)
	nonRetryableStatus := sendErr == nil && !retry.IsRetryableStatus(status)

	if nonRetryableURL || nonRetryableStatus {
		w.finishDeadLetter(ctx, row, auditLog, attemptNumber, statusPtrOrNil(status), errMsg)
		return
	}

	decision := w.retryPolicy.Evaluate(attemptNumber, status, time.Now())
	if !decision.Retry {
		w.finishDeadLetter(ctx, row, auditLog, attemptNumber, statusPtrOrNil(status), errMsg)
		return
	}
	w.finishRetry(ctx, row, auditLog, attemptNumber, decision.NextRetryAt, statusPtrOrNil(status), errMsg)
}

// send performs the HTTP POST. A non-nil error with status 0 means a
// network-level failure (DNS, connection refused, TLS, timeout); a
// *url.Error wrapping an invalid URL is checked by the caller via
// isPermanentURLError to route straight to dead_letter.
func (w *WebhookDeliveryWorker) send(ctx context.Context, row *domain.WebhookDeliveryQueue, attemptNumber int) (int, string, http.Header, http.Header, error) {
	body := row.Payload
	payloadBytes, err := json.Marshal(body)
	if err != nil {
		return 0, "", nil, nil, fmt.Errorf("marshal payload: %w", err)
	}

	timestamp := time.Now().Unix()
	headers, err := signer.Headers(body, row.Secret, timestamp)
	if err != nil {
		return 0, "", nil, nil, fmt.Errorf("sign payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, row.URL, bytes.NewReader(payloadBytes))
	if err != nil {
		return 0, "", nil, nil, err
	}
	reqHeader := make(http.Header, len(headers))
	for k, v := range headers {
		req.Header.Set(k, v)
		reqHeader.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, reqHeader, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxAuditResponseBytes))
	return resp.StatusCode, string(bodyBytes), resp.Header, reqHeader, nil
}

func (w *WebhookDeliveryWorker) finishDelivered(ctx context.Context, row *domain.WebhookDeliveryQueue, auditLog *domain.DeliveryAttemptLog, status int) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to begin delivered tx")
		return
	}
	defer tx.Rollback()

	if err := w.queueRepo.MarkDeliveredTx(ctx, tx, row.ID, time.Now().UTC(), status); err != nil {
		w.logger.WithFields(map[string]interface{}{"delivery_id": row.ID, "error": err.Error()}).Error("failed to mark delivered")
		return
	}
	if err := w.auditRepo.InsertTx(ctx, tx, auditLog); err != nil {
		w.logger.WithFields(map[string]interface{}{"delivery_id": row.ID, "error": err.Error()}).Error("failed to insert audit row")
		return
	}
	if err := tx.Commit(); err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to commit delivered tx")
	}
}

func (w *WebhookDeliveryWorker) finishRetry(ctx context.Context, row *domain.WebhookDeliveryQueue, auditLog *domain.DeliveryAttemptLog, attemptNumber int, nextRetryAt time.Time, status *int, errMsg string) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to begin retry tx")
		return
	}
	defer tx.Rollback()

	if err := w.queueRepo.ScheduleRetryTx(ctx, tx, row.ID, attemptNumber, nextRetryAt, status, errMsg); err != nil {
		w.logger.WithFields(map[string]interface{}{"delivery_id": row.ID, "error": err.Error()}).Error("failed to schedule retry")
		return
	}
	if err := w.auditRepo.InsertTx(ctx, tx, auditLog); err != nil {
		w.logger.WithFields(map[string]interface{}{"delivery_id": row.ID, "error": err.Error()}).Error("failed to insert audit row")
		return
	}
	if err := tx.Commit(); err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to commit retry tx")
		return
	}

	statusCode := 0
	if status != nil {
		statusCode = *status
	}
	metrics.RecordWebhookFailed(row.EventType, fmt.Sprintf("%d", statusCode))
}

func (w *WebhookDeliveryWorker) finishDeadLetter(ctx context.Context, row *domain.WebhookDeliveryQueue, auditLog *domain.DeliveryAttemptLog, attemptNumber int, status *int, errMsg string) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to begin dead-letter tx")
		return
	}
	defer tx.Rollback()

	if err := w.queueRepo.MarkDeadLetterTx(ctx, tx, row.ID, attemptNumber, status, errMsg); err != nil {
		w.logger.WithFields(map[string]interface{}{"delivery_id": row.ID, "error": err.Error()}).Error("failed to mark dead letter")
		return
	}
	if err := w.auditRepo.InsertTx(ctx, tx, auditLog); err != nil {
		w.logger.WithFields(map[string]interface{}{"delivery_id": row.ID, "error": err.Error()}).Error("failed to insert audit row")
		return
	}
	if err := tx.Commit(); err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to commit dead-letter tx")
		return
	}

	metrics.RecordWebhookDeadLetter()

	count, err := w.queueRepo.CountDeadLetter(ctx, row.TenantID)
	if err != nil {
		w.logger.WithField("error", err.Error()).Error("failed to count dead-letter rows for alert check")
		return
	}
	if w.deadLetterAlert.ShouldAlert(count) {
		w.logger.WithFields(map[string]interface{}{
			"tenant_id": row.TenantID,
			"count":     count,
		}).Error(w.deadLetterAlert.AlertMessage(count, row.TenantID))
	}
}

func isPermanentURLError(err error) bool {
	var urlErr *url.Error
	if ok := asURLError(err, &urlErr); ok {
		return urlErr.Op == "parse"
	}
	return false
}

func asURLError(err error, target **url.Error) bool {
	for err != nil {
		if ue, ok := err.(*url.Error); ok {
			*target = ue
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func statusPtrOrNil(status int) *int {
	if status == 0 {
		return nil
	}
	return &status
}

func intPtr(v int) *int {
	return &v
}

func partnerLabel(row *domain.WebhookDeliveryQueue) string {
	if row.PartnerWebhookID != nil {
		return *row.PartnerWebhookID
	}
	return "unknown"
}

func headersToMap(h http.Header) domain.MapOfAny {
	if len(h) == 0 {
		return nil
	}
	m := make(domain.MapOfAny, len(h))
	for k, v := range h {
		if len(v) == 1 {
			m[k] = v[0]
		} else {
			m[k] = v
		}
	}
	return m
}
