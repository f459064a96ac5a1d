package models

import "time"

// InboundEventType distinguishes the events the negotiation engine consumes.
type InboundEventType string

const (
	EventNewRequest InboundEventType = "newRequest"
	EventReply      InboundEventType = "reply"
	EventCancel     InboundEventType = "cancel"
)

// InboundEvent is one deduplicated message delivered to the engine. Delivery
// is at-least-once; EventID is the dedup key.
type InboundEvent struct {
	EventID    string           `json:"eventId"`
	Type       InboundEventType `json:"type"`
	ThreadID   string           `json:"threadId"`
	AuthorID   string           `json:"authorId"`
	Text       string           `json:"text"`
	ReceivedAt time.Time        `json:"receivedAt"`
}

// ReplyIntent is the extractor's classification of a human reply.
type ReplyIntent string

const (
	IntentConfirm   ReplyIntent = "confirm"
	IntentReject    ReplyIntent = "reject"
	IntentCancel    ReplyIntent = "cancel"
	IntentAmbiguous ReplyIntent = "ambiguous"
)

// RequestDetails is the typed output of extracting a scheduling request.
// Zero values mean the field was not present in the utterance.
type RequestDetails struct {
	MeetingTitle     string           `json:"meetingTitle"`
	DurationMinutes  int              `json:"durationMinutes"`
	ParticipantNames []string         `json:"participantNames"`
	SearchWindow     Interval         `json:"searchWindow"`
	Rules            []ConstraintRule `json:"rules"`
}

// ConstraintRule pairs an extracted rule with its hard/soft classification.
type ConstraintRule struct {
	Kind ConstraintKind `json:"kind"`
	Rule TimeWindowRule `json:"rule"`
}

// ReplyInterpretation is the typed output of interpreting a reply against the
// currently proposed candidates.
type ReplyInterpretation struct {
	Intent ReplyIntent `json:"intent"`
	// CandidateIndex is the zero-based confirmed option. Only meaningful for
	// IntentConfirm.
	CandidateIndex int `json:"candidateIndex"`
	// NewRules carries constraints supplied alongside a rejection.
	NewRules []ConstraintRule `json:"newRules"`
	// ParticipantsToAdd lists mentions of people to add to the invite.
	ParticipantsToAdd []string `json:"participantsToAdd"`
	// ConsentFor names participants the reply explicitly allowed to be
	// double-booked.
	ConsentFor []string `json:"consentFor"`
	// Reason is the extractor's summary of a rejection, kept for audit.
	Reason string `json:"reason"`
}

// Participant is a resolved identity: a display handle plus calendar email.
type Participant struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
