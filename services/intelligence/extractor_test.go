package ai

import (
	"context"
	"testing"
	"time"

	"meetsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	response string
	prompts  []string
}

func (g *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, nil
}

type memoryContextStore struct {
	data map[string]*models.ThreadContext
}

func newMemoryContextStore() *memoryContextStore {
	return &memoryContextStore{data: map[string]*models.ThreadContext{}}
}

func (s *memoryContextStore) Get(_ context.Context, threadID string) (*models.ThreadContext, error) {
	if tc, ok := s.data[threadID]; ok {
		copied := *tc
		return &copied, nil
	}
	return &models.ThreadContext{}, nil
}

func (s *memoryContextStore) Set(_ context.Context, threadID string, tc *models.ThreadContext) error {
	copied := *tc
	s.data[threadID] = &copied
	return nil
}

func TestDecodeRequest(t *testing.T) {
	raw := "```json\n" + `{
		"title": "Project Sync",
		"durationMinutes": 45,
		"participants": ["@alice", "@bob"],
		"windowStart": "2026-09-07T09:00:00Z",
		"windowEnd": "2026-09-11T17:00:00Z",
		"rules": [
			{"kind": "hard", "type": "deniedDays", "days": ["Wednesday"]},
			{"kind": "soft", "type": "preferredTimeOfDay", "startTime": "13:00", "endTime": "17:00"}
		]
	}` + "\n```"

	details, err := decodeRequest(raw, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Project Sync", details.MeetingTitle)
	assert.Equal(t, 45, details.DurationMinutes)
	assert.Equal(t, []string{"@alice", "@bob"}, details.ParticipantNames)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), details.SearchWindow.Start)

	require.Len(t, details.Rules, 2)
	assert.Equal(t, models.ConstraintHard, details.Rules[0].Kind)
	assert.Equal(t, models.RuleDeniedDays, details.Rules[0].Rule.Type)
	assert.Equal(t, []time.Weekday{time.Wednesday}, details.Rules[0].Rule.Days)
	assert.Equal(t, models.ConstraintSoft, details.Rules[1].Kind)
	assert.Equal(t, 13*60, details.Rules[1].Rule.StartMinute)
	assert.Equal(t, 17*60, details.Rules[1].Rule.EndMinute)
}

func TestDecodeRequestPartial(t *testing.T) {
	details, err := decodeRequest(`{"title": "1:1", "participants": ["@alice"]}`, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "1:1", details.MeetingTitle)
	assert.Zero(t, details.DurationMinutes)
	assert.True(t, details.SearchWindow.IsZero())
	assert.Empty(t, details.Rules)
}

func TestDecodeRequestRejectsGarbage(t *testing.T) {
	_, err := decodeRequest("I could not parse that, sorry!", time.UTC)
	assert.Error(t, err)

	_, err = decodeRequest(`{"rules": [{"kind": "hard", "type": "lunar"}]}`, time.UTC)
	assert.Error(t, err)
}

func TestDecodeReply(t *testing.T) {
	interp, err := decodeReply(`{
		"intent": "confirm",
		"option": 2,
		"addParticipants": ["@carol"],
		"consentFor": ["bob@example.com"]
	}`)
	require.NoError(t, err)
	assert.Equal(t, models.IntentConfirm, interp.Intent)
	assert.Equal(t, 1, interp.CandidateIndex)
	assert.Equal(t, []string{"@carol"}, interp.ParticipantsToAdd)
	assert.Equal(t, []string{"bob@example.com"}, interp.ConsentFor)
}

func TestDecodeReplyUnknownIntentIsAmbiguous(t *testing.T) {
	interp, err := decodeReply(`{"intent": "shrug"}`)
	require.NoError(t, err)
	assert.Equal(t, models.IntentAmbiguous, interp.Intent)
	assert.Equal(t, -1, interp.CandidateIndex)
}

func TestParseClock(t *testing.T) {
	for input, want := range map[string]int{
		"00:00": 0,
		"09:30": 570,
		"23:59": 23*60 + 59,
	} {
		got, err := parseClock(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, bad := range []string{"", "24:00", "9", "12:60", "noon"} {
		_, err := parseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractRequestCarriesDatetimeAndTranscript(t *testing.T) {
	gen := &stubGenerator{response: `{"title": "Sync"}`}
	store := newMemoryContextStore()
	svc := NewExtractorService(gen, store, time.UTC)
	svc.Now = func() time.Time {
		return time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC)
	}

	ev := models.InboundEvent{AuthorID: "U1", Text: "set up a sync next Monday", ReceivedAt: svc.Now()}
	_, err := svc.ExtractRequest(context.Background(), "T1", ev)
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "2026-09-04T10:00:00Z")
	assert.Contains(t, gen.prompts[0], "set up a sync next Monday")

	// A second turn sees the first in the transcript.
	gen.response = `{"intent": "ambiguous"}`
	reply := models.InboundEvent{AuthorID: "U1", Text: "make it 30 minutes"}
	_, err = svc.InterpretReply(context.Background(), "T1", reply, nil)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "set up a sync next Monday")
	assert.Contains(t, gen.prompts[1], "make it 30 minutes")
}
