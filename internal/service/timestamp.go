package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseUpstreamTimestamp normalizes the three shapes upstream sends for
// a timestamp field: a JSON number (unix seconds, int or float), a
// numeric string, or an RFC3339/ISO8601 string (with or without a
// trailing "Z").
func parseUpstreamTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is missing")
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case string:
		return parseUpstreamTimestampString(t)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseUpstreamTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	if unixSeconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unixSeconds, 0).UTC(), nil
	}
	if unixFloat, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(int64(unixFloat), 0).UTC(), nil
	}

	normalized := strings.Replace(s, "Z", "+00:00", 1)
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05-07:00"} {
		if ts, err := time.Parse(layout, normalized); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
