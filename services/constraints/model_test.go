package constraints

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConstraintRepo struct {
	records []models.Constraint
	failing bool
}

func (f *fakeConstraintRepo) Append(_ context.Context, c *models.Constraint) error {
	if f.failing {
		return errors.New("store down")
	}
	f.records = append(f.records, *c)
	return nil
}

func (f *fakeConstraintRepo) ListByOwner(_ context.Context, owner string) ([]models.Constraint, error) {
	if f.failing {
		return nil, errors.New("store down")
	}
	var out []models.Constraint
	for _, c := range f.records {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConstraintRepo) Delete(_ context.Context, owner, constraintID string) error {
	if f.failing {
		return errors.New("store down")
	}
	kept := f.records[:0]
	for _, c := range f.records {
		if c.Owner == owner && c.ID == constraintID {
			continue
		}
		kept = append(kept, c)
	}
	f.records = kept
	return nil
}

func slotOn(day time.Time, startHour, durMinutes int) models.Interval {
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, time.UTC)
	return models.Interval{Start: start, End: start.Add(time.Duration(durMinutes) * time.Minute)}
}

// Monday 2026-09-07.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func TestListActiveNewestWinsPerType(t *testing.T) {
	repo := &fakeConstraintRepo{}
	engine := &DefaultConstraintEngine{Repo: repo}
	ctx := context.Background()

	base := time.Now()
	repo.records = []models.Constraint{
		{ID: "c1", Owner: "alice", Kind: models.ConstraintHard,
			Rule:      models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Wednesday}},
			CreatedAt: base},
		{ID: "c2", Owner: "alice", Kind: models.ConstraintHard,
			Rule:      models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Friday}},
			CreatedAt: base.Add(time.Minute)},
		{ID: "c3", Owner: "alice", Kind: models.ConstraintSoft,
			Rule:      models.TimeWindowRule{Type: models.RulePreferredTimeOfDay, StartMinute: 9 * 60, EndMinute: 12 * 60},
			CreatedAt: base},
	}

	active, err := engine.ListActive(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "c2", active[0].ID, "newer hard denied-days rule supersedes the older one")
	assert.Equal(t, "c3", active[1].ID)

	// History is preserved: the superseded record is still stored.
	all, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAddConstraintAppends(t *testing.T) {
	repo := &fakeConstraintRepo{}
	engine := &DefaultConstraintEngine{Repo: repo}
	ctx := context.Background()

	id1, err := engine.AddConstraint(ctx, "bob", models.ConstraintHard,
		models.TimeWindowRule{Type: models.RuleAllowedTimeOfDay, StartMinute: 8 * 60, EndMinute: 18 * 60})
	require.NoError(t, err)
	id2, err := engine.AddConstraint(ctx, "bob", models.ConstraintHard,
		models.TimeWindowRule{Type: models.RuleAllowedTimeOfDay, StartMinute: 10 * 60, EndMinute: 16 * 60})
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Len(t, repo.records, 2, "addConstraint always appends")
}

func TestRemoveConstraintReactivatesSuperseded(t *testing.T) {
	repo := &fakeConstraintRepo{}
	engine := &DefaultConstraintEngine{Repo: repo}
	ctx := context.Background()

	base := time.Now()
	repo.records = []models.Constraint{
		{ID: "c1", Owner: "alice", Kind: models.ConstraintHard,
			Rule:      models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Wednesday}},
			CreatedAt: base},
		{ID: "c2", Owner: "alice", Kind: models.ConstraintHard,
			Rule:      models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Friday}},
			CreatedAt: base.Add(time.Minute)},
	}

	require.NoError(t, engine.RemoveConstraint(ctx, "alice", "c2"))

	active, err := engine.ListActive(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "c1", active[0].ID)
}

func TestActiveSetDegradesOnStoreOutage(t *testing.T) {
	repo := &fakeConstraintRepo{failing: true}
	engine := &DefaultConstraintEngine{Repo: repo}

	set, err := engine.ActiveSet(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err, "memory-store outage must not fail the session")
	assert.Empty(t, set["alice"])
	assert.Empty(t, set["bob"])
}

func TestFilterHardConstraints(t *testing.T) {
	set := Set{
		"alice": {
			{Owner: "alice", Kind: models.ConstraintHard,
				Rule: models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Monday}}},
		},
		"bob": {
			{Owner: "bob", Kind: models.ConstraintSoft,
				Rule: models.TimeWindowRule{Type: models.RulePreferredTimeOfDay, StartMinute: 9 * 60, EndMinute: 12 * 60}},
		},
	}

	slot := slotOn(monday, 10, 60)
	assert.False(t, set.Filter(slot, []string{"alice", "bob"}), "alice's hard rule excludes Mondays")
	assert.True(t, set.Filter(slot, []string{"bob"}), "soft preferences never exclude")

	tuesday := slotOn(monday.AddDate(0, 0, 1), 10, 60)
	assert.True(t, set.Filter(tuesday, []string{"alice", "bob"}))
}

func TestScoreNeutralAndNormalized(t *testing.T) {
	set := Set{
		"alice": {
			{Owner: "alice", Kind: models.ConstraintSoft,
				Rule: models.TimeWindowRule{Type: models.RulePreferredTimeOfDay, StartMinute: 9 * 60, EndMinute: 12 * 60}},
		},
		"bob": nil,
	}

	morning := slotOn(monday, 9, 60)
	afternoon := slotOn(monday, 14, 60)

	// alice matched (1.0) + bob neutral (0.5) averaged.
	assert.InDelta(t, 0.75, set.Score(morning, []string{"alice", "bob"}), 1e-9)
	// alice unmatched (0.0) + bob neutral (0.5) averaged.
	assert.InDelta(t, 0.25, set.Score(afternoon, []string{"alice", "bob"}), 1e-9)

	score := set.Score(morning, []string{"alice", "bob"})
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestEvaluateProducesExplanations(t *testing.T) {
	set := Set{
		"alice": {
			{Owner: "alice", Kind: models.ConstraintHard,
				Rule: models.TimeWindowRule{Type: models.RuleDeniedDays, Days: []time.Weekday{time.Wednesday}}},
		},
	}

	wednesday := slotOn(monday.AddDate(0, 0, 2), 10, 60)
	failed := set.FailedHard(wednesday, []string{"alice"})
	require.Len(t, failed, 1)
	assert.Equal(t, "violates: not on Wednesday (alice)", failed[0].Describe())
}
