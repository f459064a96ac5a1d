package constraints

import (
	"fmt"

	"meetsync/models"
)

// Set is the active constraint view per owner, the read-only input to
// candidate filtering and scoring.
type Set map[string][]models.Constraint

// RuleCheck is the evaluation of one active rule against a slot.
type RuleCheck struct {
	Owner     string
	Kind      models.ConstraintKind
	Rule      models.TimeWindowRule
	Satisfied bool
}

// Describe renders the check in presentation-ready terms.
func (c RuleCheck) Describe() string {
	verdict := "fits"
	if !c.Satisfied {
		verdict = "violates"
	}
	return fmt.Sprintf("%s: %s (%s)", verdict, c.Rule.Describe(), c.Owner)
}

// Filter reports whether the slot passes every hard constraint of every
// listed participant. Soft preferences never exclude.
func (s Set) Filter(slot models.Interval, participants []string) bool {
	for _, p := range participants {
		for _, c := range s[p] {
			if c.Kind != models.ConstraintHard {
				continue
			}
			if !c.Rule.Matches(slot) {
				return false
			}
		}
	}
	return true
}

// Score returns the soft-preference match in [0,1]: the mean over
// participants of each participant's fraction of matched soft rules. A
// participant with no soft preferences contributes a neutral 0.5.
func (s Set) Score(slot models.Interval, participants []string) float64 {
	if len(participants) == 0 {
		return 0.5
	}
	total := 0.0
	for _, p := range participants {
		var soft []models.Constraint
		for _, c := range s[p] {
			if c.Kind == models.ConstraintSoft {
				soft = append(soft, c)
			}
		}
		if len(soft) == 0 {
			total += 0.5
			continue
		}
		matched := 0
		for _, c := range soft {
			if c.Rule.Matches(slot) {
				matched++
			}
		}
		total += float64(matched) / float64(len(soft))
	}
	return total / float64(len(participants))
}

// Evaluate checks every active rule of every listed participant against the
// slot, in stable order, for building explanations.
func (s Set) Evaluate(slot models.Interval, participants []string) []RuleCheck {
	var checks []RuleCheck
	for _, p := range participants {
		for _, c := range s[p] {
			checks = append(checks, RuleCheck{
				Owner:     p,
				Kind:      c.Kind,
				Rule:      c.Rule,
				Satisfied: c.Rule.Matches(slot),
			})
		}
	}
	return checks
}

// FailedHard returns the hard-rule checks the slot violates.
func (s Set) FailedHard(slot models.Interval, participants []string) []RuleCheck {
	var failed []RuleCheck
	for _, check := range s.Evaluate(slot, participants) {
		if check.Kind == models.ConstraintHard && !check.Satisfied {
			failed = append(failed, check)
		}
	}
	return failed
}
