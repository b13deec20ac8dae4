package domain

import (
	"fmt"
)

// AuthFailureError covers a bad HMAC signature, a stale timestamp, or a
// missing signing secret on an inbound request.
type AuthFailureError struct {
	Reason string
}

func (e *AuthFailureError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// MalformedInputError covers unparseable JSON or a missing required
// field on an inbound payload.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

// NotFoundError covers a missing CallLog, PartnerWebhook, or similar
// lookup miss.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// DuplicateEventError signals an idempotency hit on event_id. It is not
// an error the caller should see as a failure — callers translate it to
// a 200 "already processed" response.
type DuplicateEventError struct {
	EventID string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("event already processed: %s", e.EventID)
}

// TransientDownstreamError covers network errors, timeouts, and
// retryable partner HTTP statuses (408, 429, 5xx) during delivery.
type TransientDownstreamError struct {
	StatusCode int
	Err        error
}

func (e *TransientDownstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient downstream failure (status=%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient downstream failure (status=%d)", e.StatusCode)
}

func (e *TransientDownstreamError) Unwrap() error {
	return e.Err
}

// PermanentDownstreamError covers non-retryable partner HTTP statuses
// and unparseable delivery URLs.
type PermanentDownstreamError struct {
	StatusCode int
	Reason     string
}

func (e *PermanentDownstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent downstream failure (status=%d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("permanent downstream failure: %s", e.Reason)
}

// StorageError covers database connectivity or constraint failures not
// covered by the idempotency path.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExhaustedError signals a delivery reached dead_letter after
// exhausting its retry budget.
type ExhaustedError struct {
	QueueID      string
	AttemptCount int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("delivery %s exhausted after %d attempts", e.QueueID, e.AttemptCount)
}

// ValidationError represents an error that occurs due to invalid input
// or parameters in query-building/list-params code.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error with the given message.
func NewValidationError(message string) error {
	return ValidationError{Message: message}
}
