package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	archiveRepo "meetsync/database/repository/archive"
	sessionRepo "meetsync/database/repository/session"
	"meetsync/models"
	"meetsync/services/constraints"
	"meetsync/services/scheduling"
	"meetsync/utils"

	"go.uber.org/zap"
)

const (
	defaultMaxRounds   = 3
	casRetryLimit      = 3
	transientAttempts  = 3 // initial call + 2 retries
	defaultRetryDelay  = 500 * time.Millisecond
	defaultCallTimeout = 10 * time.Second
)

// DefaultNegotiationEngine drives the per-thread negotiation lifecycle. It
// holds no session state of its own: every step loads the session, mutates a
// transient view, and commits through the session store before any externally
// visible side effect.
type DefaultNegotiationEngine struct {
	Sessions    sessionRepo.SessionRepository
	Archive     archiveRepo.ArchiveRepository
	Constraints constraints.Engine
	Generator   *scheduling.Generator
	Messenger   Messenger
	Directory   Directory
	Calendar    Calendar
	Extractor   Extractor

	MaxRounds   int
	RetryDelay  time.Duration
	CallTimeout time.Duration
}

func (e *DefaultNegotiationEngine) maxRounds() int {
	if e.MaxRounds <= 0 {
		return defaultMaxRounds
	}
	return e.MaxRounds
}

func (e *DefaultNegotiationEngine) retryDelay() time.Duration {
	if e.RetryDelay <= 0 {
		return defaultRetryDelay
	}
	return e.RetryDelay
}

func (e *DefaultNegotiationEngine) callTimeout() time.Duration {
	if e.CallTimeout <= 0 {
		return defaultCallTimeout
	}
	return e.CallTimeout
}

// HandleInboundEvent processes one deduplicated event for a thread. A
// compare-and-swap conflict means another step committed first; the step is
// re-evaluated against the fresh state rather than overwriting it.
func (e *DefaultNegotiationEngine) HandleInboundEvent(ctx context.Context, ev models.InboundEvent) (*StepResult, error) {
	logger := utils.GetLogger()

	var lastErr error
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		sess, err := e.Sessions.LoadOrCreate(ctx, ev.ThreadID, func() *models.NegotiationSession {
			return &models.NegotiationSession{
				ThreadID: ev.ThreadID,
				State:    models.StateCollecting,
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load session for thread %s: %w", ev.ThreadID, err)
		}

		res, err := e.step(ctx, sess, ev)
		if errors.Is(err, sessionRepo.ErrVersionConflict) {
			logger.Info("concurrent modification, re-evaluating step",
				zap.String("threadID", ev.ThreadID), zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		}
		return res, err
	}
	return nil, NewNegotiationError(CodeConcurrentMod,
		fmt.Sprintf("step for thread %s kept conflicting: %v", ev.ThreadID, lastErr))
}

// step routes the event through the current session state.
func (e *DefaultNegotiationEngine) step(ctx context.Context, sess *models.NegotiationSession, ev models.InboundEvent) (*StepResult, error) {
	logger := utils.GetLogger()

	// Late or duplicate events against a finished negotiation are answered
	// from the stored outcome, never re-entering the machine.
	if sess.State.IsTerminal() {
		logger.Info("event for terminal session discarded",
			zap.String("threadID", sess.ThreadID), zap.String("state", string(sess.State)))
		return &StepResult{State: sess.State, Outcome: sess.Outcome}, nil
	}

	if ev.Type == models.EventCancel || isCancelText(ev.Text) {
		return e.cancel(ctx, sess)
	}

	switch sess.State {
	case models.StateCollecting:
		return e.collect(ctx, sess, ev)
	case models.StateAwaitingResponse:
		return e.interpret(ctx, sess, ev)
	case models.StateBooking:
		// A crash between the booking commit and the calendar call lands
		// here; resume with the persisted candidate and the same key.
		return e.book(ctx, sess, sess.PendingCandidateIndex)
	default:
		return nil, fmt.Errorf("session %s in unexpected state %s", sess.ThreadID, sess.State)
	}
}

// collect accumulates slot-filling details until the session can propose.
func (e *DefaultNegotiationEngine) collect(ctx context.Context, sess *models.NegotiationSession, ev models.InboundEvent) (*StepResult, error) {
	details, err := e.extractRequest(ctx, sess.ThreadID, ev)
	if err != nil {
		return nil, err
	}

	if sess.MeetingTitle == "" {
		sess.MeetingTitle = details.MeetingTitle
	}
	if sess.DurationMinutes <= 0 {
		sess.DurationMinutes = details.DurationMinutes
	}
	if sess.SearchWindow.IsZero() {
		sess.SearchWindow = details.SearchWindow
	}

	mentions := append([]string{ev.AuthorID}, details.ParticipantNames...)
	resolved, err := e.Directory.ResolveParticipants(ctx, mentions, sess.ThreadID)
	var unresolved *UnresolvedParticipantError
	if err != nil && !errors.As(err, &unresolved) {
		return nil, NewNegotiationError(CodeCollaboratorTransient, err.Error())
	}
	for _, p := range resolved {
		sess.AddRequiredParticipant(p.Email)
		if p.ID == ev.AuthorID && sess.Requester == "" {
			sess.Requester = p.Email
		}
	}

	// Constraints stated in the request are persisted for the requester
	// before candidates are generated.
	owner := sess.Requester
	if owner == "" {
		owner = ev.AuthorID
	}
	for _, rule := range details.Rules {
		if _, err := e.Constraints.AddConstraint(ctx, owner, rule.Kind, rule.Rule); err != nil {
			utils.GetLogger().Warn("failed to persist constraint",
				zap.String("owner", owner), zap.Error(err))
		}
	}

	if unresolved != nil {
		if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
			return nil, err
		}
		e.post(ctx, sess.ThreadID, unresolvedPrompt(unresolved.Mentions))
		return &StepResult{Suspended: true, State: sess.State}, nil
	}

	if missing := sess.MissingFields(); len(missing) > 0 {
		if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
			return nil, err
		}
		e.post(ctx, sess.ThreadID, missingFieldsPrompt(missing))
		return &StepResult{Suspended: true, State: sess.State}, nil
	}

	return e.propose(ctx, sess)
}

// propose runs one generation pass, commits the candidates, presents them,
// and suspends.
func (e *DefaultNegotiationEngine) propose(ctx context.Context, sess *models.NegotiationSession) (*StepResult, error) {
	set, err := e.Constraints.ActiveSet(ctx, sess.RequiredParticipants)
	if err != nil {
		return nil, NewNegotiationError(CodeCollaboratorTransient, err.Error())
	}

	windows, err := e.getAvailability(ctx, sess.RequiredParticipants, sess.SearchWindow)
	if err != nil {
		return nil, NewNegotiationError(CodeCollaboratorTransient,
			fmt.Sprintf("availability lookup failed: %v", err))
	}

	optional := make(map[string]bool, len(sess.OptionalParticipants))
	for _, p := range sess.OptionalParticipants {
		optional[p] = true
	}

	result := e.Generator.Generate(scheduling.GenerateInput{
		SearchWindow:    sess.SearchWindow,
		DurationMinutes: sess.DurationMinutes,
		Windows:         windows,
		Required:        sess.RequiredParticipants,
		Optional:        optional,
		OverlapConsent:  sess.OverlapConsent,
		Constraints:     set,
	})

	sess.Candidates = result.Candidates
	sess.NoPerfectMatch = result.NoPerfectMatch
	sess.Round++
	sess.State = models.StateAwaitingResponse
	if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
		return nil, err
	}

	utils.GetLogger().Info("proposed candidates",
		zap.String("threadID", sess.ThreadID),
		zap.Int("round", sess.Round),
		zap.Int("candidates", len(sess.Candidates)),
		zap.Bool("noPerfectMatch", sess.NoPerfectMatch))

	if len(sess.Candidates) == 0 {
		// Distinct no-availability message; the session stays open for new
		// constraints or a new timeframe.
		e.post(ctx, sess.ThreadID, noAvailabilityMessage)
	} else if _, err := e.Messenger.PostOptions(ctx, sess.ThreadID, sess.Candidates, sess.NoPerfectMatch); err != nil {
		utils.GetLogger().Error("failed to post options",
			zap.String("threadID", sess.ThreadID), zap.Error(err))
	}
	return &StepResult{Suspended: true, State: sess.State}, nil
}

// interpret classifies a human reply and routes it.
func (e *DefaultNegotiationEngine) interpret(ctx context.Context, sess *models.NegotiationSession, ev models.InboundEvent) (*StepResult, error) {
	interp, err := e.interpretReply(ctx, sess.ThreadID, ev, sess.Candidates)
	if err != nil {
		return nil, err
	}

	// Overlap consent is recorded before routing and never revoked for the
	// life of the session.
	for _, p := range interp.ConsentFor {
		sess.GrantConsent(p)
	}

	if interp.Intent == models.IntentCancel {
		return e.cancel(ctx, sess)
	}

	addedParticipants := false
	if len(interp.ParticipantsToAdd) > 0 {
		resolved, err := e.Directory.ResolveParticipants(ctx, interp.ParticipantsToAdd, sess.ThreadID)
		var unresolved *UnresolvedParticipantError
		if err != nil && !errors.As(err, &unresolved) {
			return nil, NewNegotiationError(CodeCollaboratorTransient, err.Error())
		}
		for _, p := range resolved {
			if sess.AddRequiredParticipant(p.Email) {
				addedParticipants = true
			}
		}
		if unresolved != nil {
			if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
				return nil, err
			}
			e.post(ctx, sess.ThreadID, unresolvedPrompt(unresolved.Mentions))
			return &StepResult{Suspended: true, State: sess.State}, nil
		}
	}

	// New participants invalidate the proposed options even alongside a
	// confirmation; re-propose with the grown invite list.
	if interp.Intent == models.IntentConfirm && !addedParticipants {
		if interp.CandidateIndex < 0 || interp.CandidateIndex >= len(sess.Candidates) {
			return e.clarify(ctx, sess)
		}
		return e.book(ctx, sess, interp.CandidateIndex)
	}

	if interp.Intent == models.IntentReject || addedParticipants {
		return e.refine(ctx, sess, ev, interp)
	}

	return e.clarify(ctx, sess)
}

// clarify asks for a more specific reply. Clarification does not consume a
// round.
func (e *DefaultNegotiationEngine) clarify(ctx context.Context, sess *models.NegotiationSession) (*StepResult, error) {
	if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
		return nil, err
	}
	e.post(ctx, sess.ThreadID, clarificationMessage)
	return &StepResult{Suspended: true, State: sess.State}, nil
}

// refine records the rejection, merges new constraints, and either re-enters
// proposing or escalates when the round budget is spent.
func (e *DefaultNegotiationEngine) refine(ctx context.Context, sess *models.NegotiationSession, ev models.InboundEvent, interp *models.ReplyInterpretation) (*StepResult, error) {
	sess.PastAttempts = append(sess.PastAttempts, models.PastAttempt{
		Round:              sess.Round,
		RejectedCandidates: sess.Candidates,
		RejectionReason:    interp.Reason,
	})

	if sess.Round >= e.maxRounds() {
		// Escalate irrespective of remaining candidate quality; the
		// generator is not called again.
		return e.finalize(ctx, sess, models.StateEscalated, models.SessionOutcome{
			Kind:   models.OutcomeRoundsExhausted,
			Reason: "unable to find a suitable time",
		}, roundsExhaustedMessage)
	}

	owner := ev.AuthorID
	if resolved, err := e.Directory.ResolveParticipants(ctx, []string{ev.AuthorID}, sess.ThreadID); err == nil && len(resolved) > 0 {
		owner = resolved[0].Email
	}
	for _, rule := range interp.NewRules {
		if _, err := e.Constraints.AddConstraint(ctx, owner, rule.Kind, rule.Rule); err != nil {
			utils.GetLogger().Warn("failed to persist constraint",
				zap.String("owner", owner), zap.Error(err))
		}
	}

	return e.propose(ctx, sess)
}

// book commits the booking intent, then invokes the calendar collaborator
// exactly once per idempotency key.
func (e *DefaultNegotiationEngine) book(ctx context.Context, sess *models.NegotiationSession, candidateIndex int) (*StepResult, error) {
	if candidateIndex < 0 || candidateIndex >= len(sess.Candidates) {
		return nil, fmt.Errorf("session %s booking index %d out of range", sess.ThreadID, candidateIndex)
	}
	candidate := sess.Candidates[candidateIndex]

	if sess.State != models.StateBooking {
		sess.State = models.StateBooking
		sess.PendingCandidateIndex = candidateIndex
		if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
			return nil, err
		}
	}

	eventID := sess.BookedEventID
	if eventID == "" {
		key := fmt.Sprintf("%s:%d:%d", sess.ThreadID, sess.Round, candidateIndex)
		var err error
		eventID, err = e.bookWithRetry(ctx, BookEventRequest{
			Title:          sess.MeetingTitle,
			Attendees:      sess.RequiredParticipants,
			Slot:           candidate.Slot,
			Description:    "Scheduled via meetsync",
			IdempotencyKey: key,
		})

		var invalid *InvalidAttendeeError
		if errors.As(err, &invalid) {
			// Terminal for that attendee only; surface it and keep the
			// session active awaiting correction.
			sess.State = models.StateAwaitingResponse
			if casErr := e.Sessions.CompareAndSwap(ctx, sess); casErr != nil {
				return nil, casErr
			}
			e.post(ctx, sess.ThreadID, invalidAttendeePrompt(invalid.Attendee))
			return &StepResult{Suspended: true, State: sess.State}, nil
		}
		if err != nil {
			return e.finalize(ctx, sess, models.StateEscalated, models.SessionOutcome{
				Kind:   models.OutcomeBookingFailed,
				Reason: fmt.Sprintf("booking failed after retries: %v", err),
			}, bookingFailedMessage)
		}
	}

	sess.BookedEventID = eventID
	slot := candidate.Slot
	return e.finalize(ctx, sess, models.StateBooked, models.SessionOutcome{
		Kind:    models.OutcomeBooked,
		EventID: eventID,
		Slot:    &slot,
	}, bookedMessage(sess.MeetingTitle, slot))
}

// cancel terminates the session from any non-terminal state. Side effects
// already issued are not undone.
func (e *DefaultNegotiationEngine) cancel(ctx context.Context, sess *models.NegotiationSession) (*StepResult, error) {
	return e.finalize(ctx, sess, models.StateCancelled, models.SessionOutcome{
		Kind: models.OutcomeCancelled,
	}, cancelledMessage)
}

// finalize commits the terminal transition, archives the session, and only
// then notifies the thread.
func (e *DefaultNegotiationEngine) finalize(ctx context.Context, sess *models.NegotiationSession, state models.SessionState, outcome models.SessionOutcome, message string) (*StepResult, error) {
	logger := utils.GetLogger()

	sess.State = state
	sess.Outcome = &outcome
	if err := e.Sessions.CompareAndSwap(ctx, sess); err != nil {
		return nil, err
	}
	if err := e.Sessions.MarkTerminal(ctx, sess.ThreadID); err != nil {
		logger.Error("failed to mark session terminal",
			zap.String("threadID", sess.ThreadID), zap.Error(err))
	}
	if e.Archive != nil {
		if err := e.Archive.Save(ctx, sess); err != nil {
			logger.Error("failed to archive session",
				zap.String("threadID", sess.ThreadID), zap.Error(err))
		}
	}

	e.post(ctx, sess.ThreadID, message)

	logger.Info("session finished",
		zap.String("threadID", sess.ThreadID),
		zap.String("outcome", string(outcome.Kind)))
	return &StepResult{State: state, Outcome: &outcome}, nil
}

// post sends a threaded message, logging rather than failing the step: the
// state is already committed and delivery is at-least-once end to end.
func (e *DefaultNegotiationEngine) post(ctx context.Context, threadID, text string) {
	if _, err := e.Messenger.PostMessage(ctx, threadID, text); err != nil {
		utils.GetLogger().Error("failed to post message",
			zap.String("threadID", threadID), zap.Error(err))
	}
}

func (e *DefaultNegotiationEngine) extractRequest(ctx context.Context, threadID string, ev models.InboundEvent) (*models.RequestDetails, error) {
	var details *models.RequestDetails
	err := e.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		details, err = e.Extractor.ExtractRequest(callCtx, threadID, ev)
		return err
	})
	if err != nil {
		return nil, NewNegotiationError(CodeCollaboratorTransient,
			fmt.Sprintf("extraction failed: %v", err))
	}
	return details, nil
}

func (e *DefaultNegotiationEngine) interpretReply(ctx context.Context, threadID string, ev models.InboundEvent, candidates []models.Candidate) (*models.ReplyInterpretation, error) {
	var interp *models.ReplyInterpretation
	err := e.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		interp, err = e.Extractor.InterpretReply(callCtx, threadID, ev, candidates)
		return err
	})
	if err != nil {
		return nil, NewNegotiationError(CodeCollaboratorTransient,
			fmt.Sprintf("interpretation failed: %v", err))
	}
	return interp, nil
}

func (e *DefaultNegotiationEngine) getAvailability(ctx context.Context, participants []string, queried models.Interval) ([]models.AvailabilityWindow, error) {
	var windows []models.AvailabilityWindow
	err := e.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		windows, err = e.Calendar.GetAvailability(callCtx, participants, queried)
		return err
	})
	return windows, err
}

func (e *DefaultNegotiationEngine) bookWithRetry(ctx context.Context, req BookEventRequest) (string, error) {
	var eventID string
	err := e.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		eventID, err = e.Calendar.BookEvent(callCtx, req)
		if err != nil {
			var invalid *InvalidAttendeeError
			if errors.As(err, &invalid) {
				// Not transient; do not retry.
				return backoffStop{err}
			}
		}
		return err
	})
	return eventID, err
}

// backoffStop wraps an error that must not be retried.
type backoffStop struct{ error }

func (b backoffStop) Unwrap() error { return b.error }

// withRetry runs fn with a bounded per-call timeout and up to two retries
// with exponential backoff.
func (e *DefaultNegotiationEngine) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= transientAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout())
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		var stop backoffStop
		if errors.As(err, &stop) {
			return stop.error
		}
		if attempt < transientAttempts {
			select {
			case <-time.After(time.Duration(attempt) * e.retryDelay()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func isCancelText(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	return trimmed == "cancel" || trimmed == "end"
}
