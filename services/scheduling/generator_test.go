package scheduling

import (
	"testing"
	"time"

	"meetsync/models"
	"meetsync/services/constraints"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullyFree(participants ...string) []models.AvailabilityWindow {
	queried := iv(9, 0, 17, 0)
	windows := make([]models.AvailabilityWindow, 0, len(participants))
	for _, p := range participants {
		windows = append(windows, models.AvailabilityWindow{
			Participant: p, HasData: true, QueriedRange: queried,
		})
	}
	return windows
}

func TestGenerateTopThreeByScore(t *testing.T) {
	gen := &Generator{}
	in := GenerateInput{
		SearchWindow:    iv(9, 0, 17, 0),
		DurationMinutes: 60,
		Windows:         fullyFree("alice", "bob"),
		Required:        []string{"alice", "bob"},
		Constraints: constraints.Set{
			"alice": {
				{Owner: "alice", Kind: models.ConstraintSoft,
					Rule: models.TimeWindowRule{Type: models.RulePreferredTimeOfDay, StartMinute: 9 * 60, EndMinute: 11 * 60}},
			},
		},
	}

	res := gen.Generate(in)
	require.Len(t, res.Candidates, 3)
	assert.False(t, res.NoPerfectMatch)

	// Morning slots inside alice's preference win; ties break earliest first.
	assert.Equal(t, at(9, 0), res.Candidates[0].Slot.Start)
	assert.Equal(t, at(9, 15), res.Candidates[1].Slot.Start)
	assert.Equal(t, at(9, 30), res.Candidates[2].Slot.Start)
	for _, c := range res.Candidates {
		assert.Equal(t, 60*time.Minute, c.Slot.Duration())
		assert.NotEmpty(t, c.Explanations)
	}
}

func TestGenerateGridAlignment(t *testing.T) {
	gen := &Generator{GridMinutes: 30}
	queried := iv(9, 10, 12, 0)
	in := GenerateInput{
		SearchWindow:    queried,
		DurationMinutes: 30,
		Windows: []models.AvailabilityWindow{
			{Participant: "alice", HasData: true, QueriedRange: queried},
		},
		Required:    []string{"alice"},
		Constraints: constraints.Set{},
	}

	res := gen.Generate(in)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, at(9, 30), res.Candidates[0].Slot.Start,
		"first slot aligns to the 30-minute grid after the window opens")
}

func TestGenerateHardConstraintFilters(t *testing.T) {
	gen := &Generator{}
	in := GenerateInput{
		SearchWindow:    iv(9, 0, 17, 0),
		DurationMinutes: 60,
		Windows:         fullyFree("alice"),
		Required:        []string{"alice"},
		Constraints: constraints.Set{
			"alice": {
				{Owner: "alice", Kind: models.ConstraintHard,
					Rule: models.TimeWindowRule{Type: models.RuleAllowedTimeOfDay, StartMinute: 14 * 60, EndMinute: 16 * 60}},
			},
		},
	}

	res := gen.Generate(in)
	assert.False(t, res.NoPerfectMatch)
	require.NotEmpty(t, res.Candidates)
	for _, c := range res.Candidates {
		startMin := c.Slot.Start.Hour()*60 + c.Slot.Start.Minute()
		assert.GreaterOrEqual(t, startMin, 14*60)
		assert.LessOrEqual(t, startMin+60, 16*60)
	}
}

func TestGenerateFallbackAnnotatesViolations(t *testing.T) {
	// The queried day is a Monday and the only participant denies Mondays:
	// zero strict candidates, so the compromise pass must surface Monday
	// slots annotated with the violated rule.
	gen := &Generator{}
	in := GenerateInput{
		SearchWindow:    iv(9, 0, 12, 0),
		DurationMinutes: 60,
		Windows:         fullyFree("alice"),
		Required:        []string{"alice"},
		Constraints: constraints.Set{
			"alice": {
				{Owner: "alice", Kind: models.ConstraintHard,
					Rule: models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Monday}}},
			},
		},
	}

	res := gen.Generate(in)
	assert.True(t, res.NoPerfectMatch)
	require.NotEmpty(t, res.Candidates)
	assert.Contains(t, res.Candidates[0].Explanations, "violates: not on Monday (alice)")
}

func TestGenerateOverlapConsentBypassesBusyAndHardRules(t *testing.T) {
	queried := iv(9, 0, 11, 0)
	gen := &Generator{}
	in := GenerateInput{
		SearchWindow:    queried,
		DurationMinutes: 60,
		Windows: []models.AvailabilityWindow{
			{Participant: "alice", HasData: true, QueriedRange: queried},
			// bob is busy the whole window and denies Mondays.
			{Participant: "bob", HasData: true, QueriedRange: queried,
				Busy: []models.Interval{queried}},
		},
		Required: []string{"alice", "bob"},
		Constraints: constraints.Set{
			"bob": {
				{Owner: "bob", Kind: models.ConstraintHard,
					Rule: models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Monday}}},
			},
		},
	}

	res := gen.Generate(in)
	assert.Empty(t, res.Candidates, "without consent bob's busy window blocks everything")
	assert.True(t, res.NoPerfectMatch)

	in.OverlapConsent = []string{"bob"}
	res = gen.Generate(in)
	assert.False(t, res.NoPerfectMatch)
	require.NotEmpty(t, res.Candidates, "consent removes bob's busy time and hard rules from filtering")
	assert.Equal(t, at(9, 0), res.Candidates[0].Slot.Start)
}

func TestGenerateNoCandidatesWhenNothingFree(t *testing.T) {
	queried := iv(9, 0, 10, 0)
	gen := &Generator{}
	in := GenerateInput{
		SearchWindow:    queried,
		DurationMinutes: 60,
		Windows: []models.AvailabilityWindow{
			{Participant: "alice", HasData: true, QueriedRange: queried,
				Busy: []models.Interval{queried}},
		},
		Required:    []string{"alice"},
		Constraints: constraints.Set{},
	}

	res := gen.Generate(in)
	assert.Empty(t, res.Candidates)
	assert.True(t, res.NoPerfectMatch)
}

func TestGenerateDurationTooLongForFreeIntervals(t *testing.T) {
	queried := iv(9, 0, 17, 0)
	gen := &Generator{}
	in := GenerateInput{
		SearchWindow:    queried,
		DurationMinutes: 120,
		Windows: []models.AvailabilityWindow{
			// Only 60-minute gaps are free.
			{Participant: "alice", HasData: true, QueriedRange: queried,
				Busy: []models.Interval{iv(10, 0, 16, 0)}},
		},
		Required:    []string{"alice"},
		Constraints: constraints.Set{},
	}

	res := gen.Generate(in)
	assert.Empty(t, res.Candidates, "no free interval can hold a 120-minute slot")
}
