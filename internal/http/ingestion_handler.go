package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/internal/service"
	"github.com/Notifuse/notifuse/pkg/logger"
	"github.com/Notifuse/notifuse/pkg/ratelimiter"
)

const maxIngestBodyBytes = 1 << 20 // 1MB

// IngestionProcessor is the subset of *service.IngestionService this
// handler depends on, letting handler tests supply a fake without a
// database.
type IngestionProcessor interface {
	VerifySignature(body []byte, signatureHeader string) bool
	Process(ctx context.Context, tenantID string, body []byte) (*service.IngestionOutcome, error)
}

// IngestionHandler exposes the upstream call-completed webhook endpoint.
type IngestionHandler struct {
	service     IngestionProcessor
	rateLimiter *ratelimiter.RateLimiter
	logger      logger.Logger
}

// NewIngestionHandler creates a new IngestionHandler. rl may be nil to
// disable rate limiting (used in tests).
func NewIngestionHandler(svc IngestionProcessor, rl *ratelimiter.RateLimiter, log logger.Logger) *IngestionHandler {
	return &IngestionHandler{service: svc, rateLimiter: rl, logger: log}
}

// ServeHTTP handles POST /webhooks/call_completed. Tenant identity comes
// from the X-Tenant-ID header: this service sits behind a per-tenant
// upstream integration, not a public multi-tenant signup flow, so a
// static header is enough to route without a lookup table.
func (h *IngestionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		WriteJSONError(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	if h.rateLimiter != nil {
		decision := h.rateLimiter.Allow("ingest", tenantID)
		setRateLimitHeaders(w, decision)
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
			WriteJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBodyBytes))
	if err != nil {
		WriteJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Signature")
	if signature == "" || !h.service.VerifySignature(body, signature) {
		WriteJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	outcome, err := h.service.Process(r.Context(), tenantID, body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// setRateLimitHeaders surfaces the limiter's decision on every response,
// success or rejection, per the rate-limit exposure requirement.
func setRateLimitHeaders(w http.ResponseWriter, decision ratelimiter.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(decision.Limit)))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(decision.Remaining)))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.ResetAfter).Unix(), 10))
}

func (h *IngestionHandler) writeError(w http.ResponseWriter, err error) {
	var authErr *domain.AuthFailureError
	var malformedErr *domain.MalformedInputError
	var storageErr *domain.StorageError

	switch {
	case errors.As(err, &authErr):
		WriteJSONError(w, err.Error(), http.StatusUnauthorized)
	case errors.As(err, &malformedErr):
		WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &storageErr):
		h.logger.WithField("error", err.Error()).Error("storage failure processing webhook")
		WriteJSONError(w, "internal error", http.StatusInternalServerError)
	default:
		h.logger.WithField("error", err.Error()).Error("unexpected error processing webhook")
		WriteJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
