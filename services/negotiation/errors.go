package negotiation

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for the negotiation taxonomy. Terminal outcomes are always
// distinguishable by code so the caller can render an appropriate message.
const (
	CodeInputIncomplete       = "inputIncomplete"
	CodeUnresolvedParticipant = "unresolvedParticipant"
	CodeInvalidAttendee       = "invalidAttendee"
	CodeNoAvailability        = "noAvailability"
	CodeCollaboratorTransient = "collaboratorTransient"
	CodeRoundsExhausted       = "roundsExhausted"
	CodeBookingFailed         = "bookingFailed"
	CodeConcurrentMod         = "concurrentModification"
)

type NegotiationError struct {
	Code    string
	Message string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewNegotiationError(code, msg string) error {
	return &NegotiationError{Code: code, Message: msg}
}

// ErrCalendarUnavailable marks a transient calendar backend failure,
// retryable with backoff.
var ErrCalendarUnavailable = errors.New("calendar backend unavailable")

// InvalidAttendeeError is terminal for the named attendee; the session stays
// active awaiting correction.
type InvalidAttendeeError struct {
	Attendee string
}

func (e *InvalidAttendeeError) Error() string {
	return fmt.Sprintf("invalid attendee: %s", e.Attendee)
}

// UnresolvedParticipantError reports mentions the directory could not map to
// calendar identities.
type UnresolvedParticipantError struct {
	Mentions []string
}

func (e *UnresolvedParticipantError) Error() string {
	return fmt.Sprintf("unresolved participants: %s", strings.Join(e.Mentions, ", "))
}
