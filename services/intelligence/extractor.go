package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meetsync/models"
	"meetsync/utils"

	"go.uber.org/zap"
)

// ContextStore is the conversation-history dependency of the extractor.
type ContextStore interface {
	Get(ctx context.Context, threadID string) (*models.ThreadContext, error)
	Set(ctx context.Context, threadID string, tc *models.ThreadContext) error
}

// ExtractorService turns free-form thread messages into the typed requests
// and reply interpretations the negotiation engine consumes. The engine never
// sees raw text.
type ExtractorService struct {
	Generator TextGenerator
	Context   ContextStore
	Timezone  *time.Location
	Now       func() time.Time
}

func NewExtractorService(generator TextGenerator, store ContextStore, tz *time.Location) *ExtractorService {
	return &ExtractorService{
		Generator: generator,
		Context:   store,
		Timezone:  tz,
		Now:       time.Now,
	}
}

func (s *ExtractorService) location() *time.Location {
	if s.Timezone != nil {
		return s.Timezone
	}
	return time.UTC
}

const requestSchema = `Respond with ONLY a JSON object, no prose and no code fences:
{
  "title": "meeting title or empty string",
  "durationMinutes": 0,
  "participants": ["mentions exactly as written, e.g. @alice"],
  "windowStart": "RFC3339 start of the timeframe to search, or empty",
  "windowEnd": "RFC3339 end of the timeframe to search, or empty",
  "rules": [{"kind": "hard|soft", "type": "allowedDays|deniedDays|allowedTimeOfDay|preferredTimeOfDay",
             "days": ["Monday"], "startTime": "09:00", "endTime": "17:00"}]
}
Omit fields the message does not state; never invent values. "must"/"can't" phrasing is hard, "prefer"/"ideally" is soft.`

const replySchema = `Respond with ONLY a JSON object, no prose and no code fences:
{
  "intent": "confirm|reject|cancel|ambiguous",
  "option": 0,
  "newRules": [{"kind": "hard|soft", "type": "allowedDays|deniedDays|allowedTimeOfDay|preferredTimeOfDay",
                "days": ["Monday"], "startTime": "09:00", "endTime": "17:00"}],
  "addParticipants": ["@mention"],
  "consentFor": ["participant who may be double-booked"],
  "reason": "one-line summary of a rejection"
}
"option" is the 1-based confirmed option, 0 if none. A reply that both agrees and asks for
more people still lists them in addParticipants. Classify as ambiguous when unsure.`

// ExtractRequest parses a scheduling request, using the thread transcript and
// the current date so relative phrases like "next week" resolve correctly.
func (s *ExtractorService) ExtractRequest(ctx context.Context, threadID string, ev models.InboundEvent) (*models.RequestDetails, error) {
	tc := s.loadContext(ctx, threadID)
	tc.Append(ev.AuthorID, ev.Text, ev.ReceivedAt)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You extract meeting-scheduling details from a chat thread.\n")
	fmt.Fprintf(&prompt, "Current datetime: %s\n\n", s.Now().In(s.location()).Format(time.RFC3339))
	writeTranscript(&prompt, tc)
	fmt.Fprintf(&prompt, "\nLatest message: %s\n\n%s", ev.Text, requestSchema)

	raw, err := s.Generator.GenerateContent(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	details, err := decodeRequest(raw, s.location())
	if err != nil {
		return nil, err
	}

	s.saveContext(ctx, threadID, tc)
	return details, nil
}

// InterpretReply classifies a reply against the currently proposed options.
func (s *ExtractorService) InterpretReply(ctx context.Context, threadID string, ev models.InboundEvent, candidates []models.Candidate) (*models.ReplyInterpretation, error) {
	tc := s.loadContext(ctx, threadID)
	tc.Append(ev.AuthorID, ev.Text, ev.ReceivedAt)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You classify a reply to proposed meeting times.\n")
	fmt.Fprintf(&prompt, "Current datetime: %s\n\n", s.Now().In(s.location()).Format(time.RFC3339))
	fmt.Fprintf(&prompt, "Proposed options:\n")
	for i, c := range candidates {
		fmt.Fprintf(&prompt, "%d) %s to %s\n", i+1,
			c.Slot.Start.In(s.location()).Format(time.RFC3339),
			c.Slot.End.In(s.location()).Format(time.RFC3339))
	}
	writeTranscript(&prompt, tc)
	fmt.Fprintf(&prompt, "\nReply: %s\n\n%s", ev.Text, replySchema)

	raw, err := s.Generator.GenerateContent(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("interpretation call failed: %w", err)
	}

	interp, err := decodeReply(raw)
	if err != nil {
		return nil, err
	}

	s.saveContext(ctx, threadID, tc)
	return interp, nil
}

func (s *ExtractorService) loadContext(ctx context.Context, threadID string) *models.ThreadContext {
	if s.Context == nil {
		return &models.ThreadContext{}
	}
	tc, err := s.Context.Get(ctx, threadID)
	if err != nil {
		utils.GetLogger().Warn("failed to load thread context",
			zap.String("threadID", threadID), zap.Error(err))
		return &models.ThreadContext{}
	}
	return tc
}

func (s *ExtractorService) saveContext(ctx context.Context, threadID string, tc *models.ThreadContext) {
	if s.Context == nil {
		return
	}
	if err := s.Context.Set(ctx, threadID, tc); err != nil {
		utils.GetLogger().Warn("failed to save thread context",
			zap.String("threadID", threadID), zap.Error(err))
	}
}

func writeTranscript(w *strings.Builder, tc *models.ThreadContext) {
	if len(tc.Transcript) == 0 {
		return
	}
	fmt.Fprintf(w, "Thread so far:\n")
	for _, e := range tc.Transcript {
		fmt.Fprintf(w, "[%s] %s\n", e.AuthorID, e.Text)
	}
}

type rulePayload struct {
	Kind      string   `json:"kind"`
	Type      string   `json:"type"`
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

type requestPayload struct {
	Title           string        `json:"title"`
	DurationMinutes int           `json:"durationMinutes"`
	Participants    []string      `json:"participants"`
	WindowStart     string        `json:"windowStart"`
	WindowEnd       string        `json:"windowEnd"`
	Rules           []rulePayload `json:"rules"`
}

type replyPayload struct {
	Intent          string        `json:"intent"`
	Option          int           `json:"option"`
	NewRules        []rulePayload `json:"newRules"`
	AddParticipants []string      `json:"addParticipants"`
	ConsentFor      []string      `json:"consentFor"`
	Reason          string        `json:"reason"`
}

func decodeRequest(raw string, loc *time.Location) (*models.RequestDetails, error) {
	var payload requestPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}

	details := &models.RequestDetails{
		MeetingTitle:     strings.TrimSpace(payload.Title),
		DurationMinutes:  payload.DurationMinutes,
		ParticipantNames: payload.Participants,
	}

	if payload.WindowStart != "" && payload.WindowEnd != "" {
		start, err := time.ParseInLocation(time.RFC3339, payload.WindowStart, loc)
		if err != nil {
			return nil, fmt.Errorf("bad windowStart %q: %w", payload.WindowStart, err)
		}
		end, err := time.ParseInLocation(time.RFC3339, payload.WindowEnd, loc)
		if err != nil {
			return nil, fmt.Errorf("bad windowEnd %q: %w", payload.WindowEnd, err)
		}
		details.SearchWindow = models.Interval{Start: start, End: end}
	}

	rules, err := decodeRules(payload.Rules)
	if err != nil {
		return nil, err
	}
	details.Rules = rules
	return details, nil
}

func decodeReply(raw string) (*models.ReplyInterpretation, error) {
	var payload replyPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed interpretation output: %w", err)
	}

	var intent models.ReplyIntent
	switch strings.ToLower(payload.Intent) {
	case "confirm":
		intent = models.IntentConfirm
	case "reject":
		intent = models.IntentReject
	case "cancel":
		intent = models.IntentCancel
	default:
		intent = models.IntentAmbiguous
	}

	rules, err := decodeRules(payload.NewRules)
	if err != nil {
		return nil, err
	}

	return &models.ReplyInterpretation{
		Intent:            intent,
		CandidateIndex:    payload.Option - 1,
		NewRules:          rules,
		ParticipantsToAdd: payload.AddParticipants,
		ConsentFor:        payload.ConsentFor,
		Reason:            payload.Reason,
	}, nil
}

func decodeRules(payloads []rulePayload) ([]models.ConstraintRule, error) {
	var rules []models.ConstraintRule
	for _, p := range payloads {
		rule, err := decodeRule(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func decodeRule(p rulePayload) (models.ConstraintRule, error) {
	var out models.ConstraintRule

	switch strings.ToLower(p.Kind) {
	case "hard":
		out.Kind = models.ConstraintHard
	case "soft":
		out.Kind = models.ConstraintSoft
	default:
		return out, fmt.Errorf("unknown rule kind %q", p.Kind)
	}

	switch p.Type {
	case "allowedDays":
		out.Rule.Type = models.RuleAllowedDays
	case "deniedDays":
		out.Rule.Type = models.RuleDeniedDays
	case "allowedTimeOfDay":
		out.Rule.Type = models.RuleAllowedTimeOfDay
	case "preferredTimeOfDay":
		out.Rule.Type = models.RulePreferredTimeOfDay
	default:
		return out, fmt.Errorf("unknown rule type %q", p.Type)
	}

	days, err := parseWeekdays(p.Days)
	if err != nil {
		return out, err
	}
	out.Rule.Days = days

	if p.StartTime != "" || p.EndTime != "" {
		start, err := parseClock(p.StartTime)
		if err != nil {
			return out, err
		}
		end, err := parseClock(p.EndTime)
		if err != nil {
			return out, err
		}
		out.Rule.StartMinute = start
		out.Rule.EndMinute = end
	}
	return out, nil
}

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, n := range names {
		d, ok := weekdayByName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		days = append(days, d)
	}
	return days, nil
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	return h*60 + m, nil
}

// stripFences removes markdown code fences models sometimes wrap JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
