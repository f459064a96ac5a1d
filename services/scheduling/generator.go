package scheduling

import (
	"sort"
	"time"

	"meetsync/models"
	"meetsync/services/constraints"
)

const (
	DefaultGridMinutes   = 15
	DefaultMaxCandidates = 3
)

// Generator enumerates and ranks candidate meeting slots. It is pure: all
// calendar and constraint data arrives in the input.
type Generator struct {
	GridMinutes   int
	MaxCandidates int
}

// GenerateInput carries everything one generation pass needs.
type GenerateInput struct {
	SearchWindow    models.Interval
	DurationMinutes int
	// Windows holds per-participant availability for every required
	// participant.
	Windows []models.AvailabilityWindow
	// Required lists the participants whose hard constraints and busy time
	// bind the result.
	Required []string
	// Optional marks participants whose missing calendar data is tolerated.
	Optional map[string]bool
	// OverlapConsent lists participants who agreed to be double-booked; their
	// busy time and hard constraints are excluded from filtering.
	OverlapConsent []string
	Constraints    constraints.Set
}

// GenerateResult is a ranked set of candidates. NoPerfectMatch is set when
// the strict pass produced nothing and the candidates are best-compromise
// slots annotated with the hard rules they violate.
type GenerateResult struct {
	Candidates     []models.Candidate
	NoPerfectMatch bool
}

func (g *Generator) grid() time.Duration {
	m := g.GridMinutes
	if m <= 0 {
		m = DefaultGridMinutes
	}
	return time.Duration(m) * time.Minute
}

func (g *Generator) limit() int {
	if g.MaxCandidates <= 0 {
		return DefaultMaxCandidates
	}
	return g.MaxCandidates
}

// Generate runs the strict pass and, when it yields nothing, the relaxed
// compromise pass.
func (g *Generator) Generate(in GenerateInput) GenerateResult {
	binding := withoutConsented(in.Required, in.OverlapConsent)

	// Consented participants may be double-booked, so their busy time is
	// dropped from the joint intersection.
	var bindingWindows []models.AvailabilityWindow
	consented := make(map[string]bool, len(in.OverlapConsent))
	for _, p := range in.OverlapConsent {
		consented[p] = true
	}
	for _, w := range in.Windows {
		if consented[w.Participant] {
			continue
		}
		bindingWindows = append(bindingWindows, w)
	}

	joint := JointlyFree(in.SearchWindow, bindingWindows, in.Optional)
	slots := g.enumerate(joint, in.DurationMinutes)

	var strict []models.Candidate
	for _, slot := range slots {
		if !in.Constraints.Filter(slot, binding) {
			continue
		}
		strict = append(strict, models.Candidate{
			Slot:         slot,
			Score:        in.Constraints.Score(slot, in.Required),
			Explanations: describeChecks(in.Constraints.Evaluate(slot, in.Required)),
		})
	}
	if len(strict) > 0 {
		rankByScore(strict)
		return GenerateResult{Candidates: top(strict, g.limit())}
	}

	// Relaxed pass: surface jointly-free slots even when hard constraints
	// exclude them, ranked by how few rules would need relaxing.
	type scored struct {
		cand       models.Candidate
		violations int
	}
	compromise := make([]scored, 0, len(slots))
	for _, slot := range slots {
		failed := in.Constraints.FailedHard(slot, binding)
		explanations := make([]string, 0, len(failed)+1)
		for _, check := range failed {
			explanations = append(explanations, check.Describe())
		}
		explanations = append(explanations, describeSatisfied(in.Constraints.Evaluate(slot, in.Required))...)
		compromise = append(compromise, scored{
			cand: models.Candidate{
				Slot:         slot,
				Score:        0,
				Explanations: explanations,
			},
			violations: len(failed),
		})
	}
	sort.SliceStable(compromise, func(i, j int) bool {
		if compromise[i].violations != compromise[j].violations {
			return compromise[i].violations < compromise[j].violations
		}
		return compromise[i].cand.Slot.Start.Before(compromise[j].cand.Slot.Start)
	})
	ranked := make([]models.Candidate, 0, len(compromise))
	for _, s := range compromise {
		ranked = append(ranked, s.cand)
	}
	return GenerateResult{
		Candidates:     top(ranked, g.limit()),
		NoPerfectMatch: true,
	}
}

// enumerate yields every grid-aligned slot of the requested duration that
// fits entirely inside a jointly-free interval.
func (g *Generator) enumerate(joint []models.Interval, durationMinutes int) []models.Interval {
	if durationMinutes <= 0 {
		return nil
	}
	dur := time.Duration(durationMinutes) * time.Minute
	step := g.grid()

	var slots []models.Interval
	for _, free := range joint {
		start := free.Start.Truncate(step)
		if start.Before(free.Start) {
			start = start.Add(step)
		}
		for ; !start.Add(dur).After(free.End); start = start.Add(step) {
			slots = append(slots, models.Interval{Start: start, End: start.Add(dur)})
		}
	}
	return slots
}

func rankByScore(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Slot.Start.Before(candidates[j].Slot.Start)
	})
}

func top(candidates []models.Candidate, n int) []models.Candidate {
	if len(candidates) <= n {
		return candidates
	}
	return candidates[:n]
}

func withoutConsented(required, consent []string) []string {
	consented := make(map[string]bool, len(consent))
	for _, p := range consent {
		consented[p] = true
	}
	out := make([]string, 0, len(required))
	for _, p := range required {
		if !consented[p] {
			out = append(out, p)
		}
	}
	return out
}

func describeChecks(checks []constraints.RuleCheck) []string {
	out := make([]string, 0, len(checks))
	for _, c := range checks {
		out = append(out, c.Describe())
	}
	return out
}

func describeSatisfied(checks []constraints.RuleCheck) []string {
	var out []string
	for _, c := range checks {
		if c.Satisfied {
			out = append(out, c.Describe())
		}
	}
	return out
}
