package signer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_Deterministic(t *testing.T) {
	payload := map[string]any{"event": "call.completed", "call_id": "c1"}

	sig1, err := Sign(payload, "secret", 1730000000)
	require.NoError(t, err)
	sig2, err := Sign(payload, "secret", 1730000000)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64) // hex-encoded sha256
}

func TestSign_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1}
	b := map[string]any{"a": 1, "b": 2}

	sigA, err := Sign(a, "secret", 100)
	require.NoError(t, err)
	sigB, err := Sign(b, "secret", 100)
	require.NoError(t, err)

	assert.Equal(t, sigA, sigB)
}

func TestVerify_RoundTrip(t *testing.T) {
	s := New()
	payload := map[string]any{"event": "call.completed"}
	now := time.Unix(1730000000, 0)

	sig, err := Sign(payload, "secret", now.Unix())
	require.NoError(t, err)

	assert.True(t, s.Verify(payload, "secret", sig, now.Unix(), now))
}

func TestVerify_RejectsMutatedPayload(t *testing.T) {
	s := New()
	now := time.Unix(1730000000, 0)
	sig, err := Sign(map[string]any{"event": "a"}, "secret", now.Unix())
	require.NoError(t, err)

	assert.False(t, s.Verify(map[string]any{"event": "b"}, "secret", sig, now.Unix(), now))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	s := New()
	now := time.Unix(1730000000, 0)
	payload := map[string]any{"event": "a"}
	sig, err := Sign(payload, "secret", now.Unix())
	require.NoError(t, err)

	assert.False(t, s.Verify(payload, "other-secret", sig, now.Unix(), now))
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	s := New()
	now := time.Unix(1730000000, 0)
	payload := map[string]any{"event": "a"}
	sig, err := Sign(payload, "secret", now.Unix())
	require.NoError(t, err)

	tampered := "f" + sig[1:]
	assert.False(t, s.Verify(payload, "secret", tampered, now.Unix(), now))
}

func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	s := &Signer{Tolerance: 300 * time.Second}
	now := time.Unix(1730000000, 0)
	payload := map[string]any{"event": "a"}
	ts := now.Add(-301 * time.Second).Unix()
	sig, err := Sign(payload, "secret", ts)
	require.NoError(t, err)

	assert.False(t, s.Verify(payload, "secret", sig, ts, now))
}

func TestVerify_AcceptsTimestampAtToleranceBoundary(t *testing.T) {
	s := &Signer{Tolerance: 300 * time.Second}
	now := time.Unix(1730000000, 0)
	payload := map[string]any{"event": "a"}
	ts := now.Add(-300 * time.Second).Unix()
	sig, err := Sign(payload, "secret", ts)
	require.NoError(t, err)

	assert.True(t, s.Verify(payload, "secret", sig, ts, now))
}

func TestVerify_FutureTimestampWithinToleranceAccepted(t *testing.T) {
	s := &Signer{Tolerance: 300 * time.Second}
	now := time.Unix(1730000000, 0)
	payload := map[string]any{"event": "a"}
	ts := now.Add(100 * time.Second).Unix()
	sig, err := Sign(payload, "secret", ts)
	require.NoError(t, err)

	assert.True(t, s.Verify(payload, "secret", sig, ts, now))
}

func TestHeaders(t *testing.T) {
	headers, err := Headers(map[string]any{"event": "a"}, "secret", 1730000000)
	require.NoError(t, err)

	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Equal(t, UserAgent, headers["User-Agent"])
	assert.Equal(t, "1730000000", headers[TimestampHeader])
	assert.Len(t, headers[SignatureHeader], 64)
}

func TestVerifyUpstream(t *testing.T) {
	body := []byte(`{"id":"evt_1","event":"participant_left"}`)

	// VerifyUpstream signs the raw body directly, independent of Sign's
	// timestamp-prefixed canonical scheme.
	valid := VerifyUpstream(body, "upstream-secret", hexHMAC("upstream-secret", string(body)))
	assert.True(t, valid)
	assert.False(t, VerifyUpstream(body, "upstream-secret", "deadbeef"))
}
