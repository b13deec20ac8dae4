package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAuthFailureError_Error(t *testing.T) {
	err := &AuthFailureError{Reason: "stale timestamp"}
	expected := "authentication failed: stale timestamp"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestMalformedInputError_Error(t *testing.T) {
	err := &MalformedInputError{Field: "room.name", Reason: "missing"}
	expected := "malformed input: room.name: missing"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}

	err2 := &MalformedInputError{Reason: "invalid JSON"}
	expected2 := "malformed input: invalid JSON"
	if err2.Error() != expected2 {
		t.Errorf("Expected error message '%s', got '%s'", expected2, err2.Error())
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &NotFoundError{Entity: "CallLog", Key: "sip-123"}
	expected := "CallLog not found: sip-123"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestDuplicateEventError_Error(t *testing.T) {
	err := &DuplicateEventError{EventID: "evt_1"}
	expected := "event already processed: evt_1"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestTransientDownstreamError_Unwrap(t *testing.T) {
	underlyingErr := fmt.Errorf("connection reset")
	err := &TransientDownstreamError{StatusCode: 503, Err: underlyingErr}

	expected := "transient downstream failure (status=503): connection reset"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}

	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() failed to find the wrapped error")
	}

	noErr := &TransientDownstreamError{StatusCode: 0}
	expectedNoErr := "transient downstream failure (status=0)"
	if noErr.Error() != expectedNoErr {
		t.Errorf("Expected error message '%s', got '%s'", expectedNoErr, noErr.Error())
	}
}

func TestPermanentDownstreamError_Error(t *testing.T) {
	err := &PermanentDownstreamError{StatusCode: 404, Reason: "endpoint gone"}
	expected := "permanent downstream failure (status=404): endpoint gone"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}

	err2 := &PermanentDownstreamError{Reason: "unparseable URL"}
	expected2 := "permanent downstream failure: unparseable URL"
	if err2.Error() != expected2 {
		t.Errorf("Expected error message '%s', got '%s'", expected2, err2.Error())
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	underlyingErr := fmt.Errorf("connection refused")
	err := &StorageError{Op: "insert call_log", Err: underlyingErr}

	expected := "storage error during insert call_log: connection refused"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}

	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() failed to find the wrapped error")
	}
}

func TestExhaustedError_Error(t *testing.T) {
	err := &ExhaustedError{QueueID: "q1", AttemptCount: 5}
	expected := "delivery q1 exhausted after 5 attempts"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("event_type is required")
	expected := "validation error: event_type is required"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorTypeAssertion(t *testing.T) {
	var err error = &NotFoundError{Entity: "CallLog", Key: "123"}

	if _, ok := err.(*NotFoundError); !ok {
		t.Error("Type assertion for NotFoundError failed")
	}

	err = &DuplicateEventError{EventID: "evt_1"}

	if _, ok := err.(*DuplicateEventError); !ok {
		t.Error("Type assertion for DuplicateEventError failed")
	}

	if _, ok := err.(*NotFoundError); ok {
		t.Error("Type assertion incorrectly succeeded for wrong error type")
	}
}

func TestErrorKinds_AreDistinguishableViaErrorsAs(t *testing.T) {
	var err error = &NotFoundError{Entity: "CallLog", Key: "x"}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Error("expected errors.As to match *NotFoundError")
	}

	var authFailure *AuthFailureError
	if errors.As(err, &authFailure) {
		t.Error("did not expect errors.As to match *AuthFailureError")
	}
}
