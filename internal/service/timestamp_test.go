package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpstreamTimestamp_Number(t *testing.T) {
	ts, err := parseUpstreamTimestamp(float64(1730000000))
	require.NoError(t, err)
	assert.Equal(t, int64(1730000000), ts.Unix())
}

func TestParseUpstreamTimestamp_NumericString(t *testing.T) {
	ts, err := parseUpstreamTimestamp("1730000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1730000000), ts.Unix())
}

func TestParseUpstreamTimestamp_RFC3339WithZ(t *testing.T) {
	ts, err := parseUpstreamTimestamp("2025-10-29T12:34:56Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 10, 29, 12, 34, 56, 0, time.UTC), ts)
}

func TestParseUpstreamTimestamp_RFC3339WithOffset(t *testing.T) {
	ts, err := parseUpstreamTimestamp("2025-10-29T12:34:56+02:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1761734096), ts.Unix())
}

func TestParseUpstreamTimestamp_Missing(t *testing.T) {
	_, err := parseUpstreamTimestamp(nil)
	assert.Error(t, err)
}

func TestParseUpstreamTimestamp_Garbage(t *testing.T) {
	_, err := parseUpstreamTimestamp("not-a-timestamp")
	assert.Error(t, err)
}
