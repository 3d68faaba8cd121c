package telegram

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a delivery failure.
type ErrorKind string

const (
	KindNetworkUnavailable   ErrorKind = "NETWORK_UNAVAILABLE"
	KindTimedOut             ErrorKind = "TIMED_OUT"
	KindRequestRejected      ErrorKind = "REQUEST_REJECTED"
	KindRecipientUnreachable ErrorKind = "RECIPIENT_UNREACHABLE"
	KindUnknown              ErrorKind = "UNKNOWN"
)

// ReasonChatNotFound marks a rejected request whose destination does not
// exist (wrong channel ID, or the bot was never added to the chat).
const ReasonChatNotFound = "chat not found"

// DeliveryError wraps a transport error with its classification.
type DeliveryError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("delivery failed (%s: %s): %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Kind returns the classification of err, or KindUnknown for errors that did
// not come out of a delivery attempt.
func Kind(err error) ErrorKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsTerminal reports whether further sends to the same destination are
// futile. Callers record terminal failures as if delivered, so the loops
// stop retrying a dead destination.
func IsTerminal(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) {
		return false
	}
	if de.Kind == KindRecipientUnreachable {
		return true
	}
	return de.Kind == KindRequestRejected && de.Reason == ReasonChatNotFound
}
