package negotiation

import (
	"context"

	"meetsync/models"
)

// Engine is the boundary the core exposes to its caller: one inbound event in,
// either a terminal outcome or a suspension out.
type Engine interface {
	HandleInboundEvent(ctx context.Context, ev models.InboundEvent) (*StepResult, error)
}

// StepResult reports what one processing step did. Suspended means the
// session committed its state and now waits on a human reply; no resource is
// held while waiting.
type StepResult struct {
	Suspended bool                   `json:"suspended"`
	State     models.SessionState    `json:"state"`
	Outcome   *models.SessionOutcome `json:"outcome,omitempty"`
}

// Messenger posts messages into the conversation thread.
type Messenger interface {
	// PostOptions presents ranked candidates for confirmation.
	PostOptions(ctx context.Context, threadID string, candidates []models.Candidate, noPerfectMatch bool) (string, error)
	// PostMessage posts a plain threaded message.
	PostMessage(ctx context.Context, threadID, text string) (string, error)
}

// Directory resolves participant mentions to calendar identities. It returns
// an UnresolvedParticipantError when any mention cannot be mapped.
type Directory interface {
	ResolveParticipants(ctx context.Context, mentions []string, channelContext string) ([]models.Participant, error)
}

// BookEventRequest describes the final booking handed to the calendar
// backend. IdempotencyKey makes the insert safe to retry.
type BookEventRequest struct {
	Title          string          `json:"title"`
	Attendees      []string        `json:"attendees"`
	Slot           models.Interval `json:"slot"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// Calendar is the calendar backend collaborator.
type Calendar interface {
	// GetAvailability returns per-participant busy intervals for the range.
	GetAvailability(ctx context.Context, participants []string, queried models.Interval) ([]models.AvailabilityWindow, error)
	// BookEvent creates the event, returning its ID. A repeated call with the
	// same idempotency key returns the original event ID.
	BookEvent(ctx context.Context, req BookEventRequest) (string, error)
}

// Extractor is the intent/slot-extraction collaborator. The core consumes
// only its typed output and never parses free text itself.
type Extractor interface {
	ExtractRequest(ctx context.Context, threadID string, ev models.InboundEvent) (*models.RequestDetails, error)
	InterpretReply(ctx context.Context, threadID string, ev models.InboundEvent, candidates []models.Candidate) (*models.ReplyInterpretation, error)
}
