package models

import "time"

// SessionState is the lifecycle state of a negotiation session.
type SessionState string

const (
	StateCollecting       SessionState = "collecting"
	StateAwaitingResponse SessionState = "awaitingResponse"
	StateBooking          SessionState = "booking"
	StateBooked           SessionState = "booked"
	StateEscalated        SessionState = "escalated"
	StateCancelled        SessionState = "cancelled"
)

// IsTerminal reports whether no further events may mutate the session.
func (s SessionState) IsTerminal() bool {
	return s == StateBooked || s == StateEscalated || s == StateCancelled
}

// OutcomeKind classifies terminal outcomes so callers can render distinct
// user-facing messages.
type OutcomeKind string

const (
	OutcomeBooked          OutcomeKind = "booked"
	OutcomeRoundsExhausted OutcomeKind = "roundsExhausted"
	OutcomeBookingFailed   OutcomeKind = "bookingFailed"
	OutcomeCancelled       OutcomeKind = "cancelled"
)

// SessionOutcome is the terminal result of a negotiation.
type SessionOutcome struct {
	Kind    OutcomeKind `json:"kind" bson:"kind"`
	EventID string      `json:"eventId,omitempty" bson:"eventId,omitempty"`
	Slot    *Interval   `json:"slot,omitempty" bson:"slot,omitempty"`
	Reason  string      `json:"reason,omitempty" bson:"reason,omitempty"`
}

// PastAttempt records one rejected proposal round for audit and explanations.
type PastAttempt struct {
	Round              int         `json:"round" bson:"round"`
	RejectedCandidates []Candidate `json:"rejectedCandidates" bson:"rejectedCandidates"`
	RejectionReason    string      `json:"rejectionReason" bson:"rejectionReason"`
}

// NegotiationSession is the aggregate root for one scheduling request,
// keyed by conversation thread. It is mutated only by the negotiation
// engine and persisted through the session store before every suspend.
type NegotiationSession struct {
	ThreadID             string          `json:"threadId" bson:"threadId"`
	Requester            string          `json:"requester" bson:"requester"`
	RequiredParticipants []string        `json:"requiredParticipants" bson:"requiredParticipants"`
	OptionalParticipants []string        `json:"optionalParticipants,omitempty" bson:"optionalParticipants,omitempty"`
	MeetingTitle         string          `json:"meetingTitle" bson:"meetingTitle"`
	DurationMinutes      int             `json:"durationMinutes" bson:"durationMinutes"`
	SearchWindow         Interval        `json:"searchWindow" bson:"searchWindow"`
	State                SessionState    `json:"state" bson:"state"`
	Candidates           []Candidate     `json:"candidates" bson:"candidates"`
	NoPerfectMatch       bool            `json:"noPerfectMatch" bson:"noPerfectMatch"`
	Round                int             `json:"round" bson:"round"`
	PastAttempts         []PastAttempt   `json:"pastAttempts" bson:"pastAttempts"`
	OverlapConsent       []string        `json:"overlapConsent" bson:"overlapConsent"`
	Outcome              *SessionOutcome `json:"outcome,omitempty" bson:"outcome,omitempty"`

	// PendingCandidateIndex is the candidate being booked, persisted before
	// the calendar call so a crashed booking step can resume with the same
	// idempotency key.
	PendingCandidateIndex int `json:"pendingCandidateIndex" bson:"pendingCandidateIndex"`

	// BookedEventID caches the collaborator event ID so a replayed confirm
	// returns the original booking.
	BookedEventID string `json:"bookedEventId,omitempty" bson:"bookedEventId,omitempty"`

	// Version backs the session store's compare-and-swap.
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// MissingFields lists the slot-filling fields still required before the
// session can leave Collecting.
func (s *NegotiationSession) MissingFields() []string {
	var missing []string
	if s.MeetingTitle == "" {
		missing = append(missing, "title")
	}
	if s.DurationMinutes <= 0 {
		missing = append(missing, "duration")
	}
	if len(s.RequiredParticipants) == 0 {
		missing = append(missing, "participants")
	}
	if s.SearchWindow.IsZero() {
		missing = append(missing, "timeframe")
	}
	return missing
}

// HasConsent reports whether the participant agreed to be double-booked.
func (s *NegotiationSession) HasConsent(participant string) bool {
	for _, p := range s.OverlapConsent {
		if p == participant {
			return true
		}
	}
	return false
}

// GrantConsent adds the participant to the overlap-consent set. Consent is
// monotonic for the life of the session.
func (s *NegotiationSession) GrantConsent(participant string) {
	if participant == "" || s.HasConsent(participant) {
		return
	}
	s.OverlapConsent = append(s.OverlapConsent, participant)
}

// AddRequiredParticipant appends a participant if not already present.
func (s *NegotiationSession) AddRequiredParticipant(participant string) bool {
	for _, p := range s.RequiredParticipants {
		if p == participant {
			return false
		}
	}
	s.RequiredParticipants = append(s.RequiredParticipants, participant)
	return true
}
