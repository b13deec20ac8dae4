package service

import (
	"strings"

	"github.com/Notifuse/notifuse/internal/domain"
)

// classifyOutcome ranks a participant's stated disconnect reason above
// call duration, and duration above a bare default. A disconnect
// reason of "BUSY" at any duration means busy even if the call ran
// long enough to otherwise look completed.
func classifyOutcome(disconnectReason string, durationSeconds int) domain.CallOutcome {
	reason := strings.ToLower(disconnectReason)

	switch {
	case strings.Contains(reason, "busy"):
		return domain.CallOutcomeBusy
	case strings.Contains(reason, "no_answer"), strings.Contains(reason, "no answer"):
		return domain.CallOutcomeNoAnswer
	case strings.Contains(reason, "failed"), strings.Contains(reason, "error"):
		return domain.CallOutcomeFailed
	}

	switch {
	case durationSeconds < 3:
		return domain.CallOutcomeFailed
	case durationSeconds < 10:
		return domain.CallOutcomeNoAnswer
	default:
		return domain.CallOutcomeCompleted
	}
}
