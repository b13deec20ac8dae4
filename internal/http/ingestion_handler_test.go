package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Notifuse/notifuse/internal/domain"
	"github.com/Notifuse/notifuse/internal/service"
	"github.com/Notifuse/notifuse/pkg/logger"
	"github.com/Notifuse/notifuse/pkg/ratelimiter"
)

type fakeIngestionProcessor struct {
	verifyResult bool
	outcome      *service.IngestionOutcome
	err          error
}

func (f *fakeIngestionProcessor) VerifySignature(body []byte, signatureHeader string) bool {
	return f.verifyResult
}

func (f *fakeIngestionProcessor) Process(ctx context.Context, tenantID string, body []byte) (*service.IngestionOutcome, error) {
	return f.outcome, f.err
}

func TestIngestionHandler_MissingTenantHeader(t *testing.T) {
	h := NewIngestionHandler(&fakeIngestionProcessor{}, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader("{}"))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionHandler_InvalidSignature(t *testing.T) {
	h := NewIngestionHandler(&fakeIngestionProcessor{verifyResult: false}, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader("{}"))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "bad")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestionHandler_MissingSignatureHeader(t *testing.T) {
	h := NewIngestionHandler(&fakeIngestionProcessor{verifyResult: true}, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader("{}"))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestionHandler_Success(t *testing.T) {
	proc := &fakeIngestionProcessor{
		verifyResult: true,
		outcome:      &service.IngestionOutcome{Status: "processed", CallID: "call-1", Outcome: "completed"},
	}
	h := NewIngestionHandler(proc, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader(`{"call_id":"call-1"}`))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\"status\":\"processed\"")
}

func TestIngestionHandler_AuthFailureMapsTo401(t *testing.T) {
	proc := &fakeIngestionProcessor{
		verifyResult: true,
		err:          &domain.AuthFailureError{Reason: "stale timestamp"},
	}
	h := NewIngestionHandler(proc, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader("{}"))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestionHandler_MalformedInputMapsTo400(t *testing.T) {
	proc := &fakeIngestionProcessor{
		verifyResult: true,
		err:          &domain.MalformedInputError{Field: "call_id", Reason: "required"},
	}
	h := NewIngestionHandler(proc, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader("{}"))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionHandler_StorageErrorMapsTo500(t *testing.T) {
	proc := &fakeIngestionProcessor{
		verifyResult: true,
		err:          &domain.StorageError{Op: "insert", Err: context.DeadlineExceeded},
	}
	h := NewIngestionHandler(proc, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader("{}"))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIngestionHandler_SetsRateLimitHeadersOnSuccess(t *testing.T) {
	proc := &fakeIngestionProcessor{
		verifyResult: true,
		outcome:      &service.IngestionOutcome{Status: "processed"},
	}
	rl := ratelimiter.New()
	defer rl.Stop()
	rl.SetPolicy("ingest", ratelimiter.BucketPolicy{Capacity: 10, Rate: 10.0 / 60})

	h := NewIngestionHandler(proc, rl, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader(`{}`))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestIngestionHandler_SetsRateLimitHeadersOnRejection(t *testing.T) {
	proc := &fakeIngestionProcessor{verifyResult: true}
	rl := ratelimiter.New()
	defer rl.Stop()
	rl.SetPolicy("ingest", ratelimiter.BucketPolicy{Capacity: 1, Rate: 1.0 / 3600})

	h := NewIngestionHandler(proc, rl, logger.NewTestLogger(t))

	// Exhaust the single token.
	first := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader(`{}`))
	first.Header.Set("X-Tenant-ID", "tenant-1")
	first.Header.Set("X-Signature", "good")
	h.ServeHTTP(httptest.NewRecorder(), first)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/call_completed", strings.NewReader(`{}`))
	req.Header.Set("X-Tenant-ID", "tenant-1")
	req.Header.Set("X-Signature", "good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestIngestionHandler_RejectsNonPost(t *testing.T) {
	h := NewIngestionHandler(&fakeIngestionProcessor{}, nil, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/webhooks/call_completed", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
