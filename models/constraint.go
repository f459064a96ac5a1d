package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConstraintKind distinguishes exclusionary rules from ranking-only preferences.
type ConstraintKind string

const (
	ConstraintHard ConstraintKind = "hard"
	ConstraintSoft ConstraintKind = "soft"
)

// RuleType identifies the shape of a TimeWindowRule.
type RuleType string

const (
	RuleAllowedDays        RuleType = "allowedDaysOfWeek"
	RuleDeniedDays         RuleType = "deniedDaysOfWeek"
	RuleAllowedTimeOfDay   RuleType = "allowedTimeOfDay"
	RulePreferredTimeOfDay RuleType = "preferredTimeOfDay"
)

// TimeWindowRule is a typed scheduling rule. Days are used by the day-of-week
// variants; StartMinute/EndMinute (minutes from midnight) by the time-of-day
// variants.
type TimeWindowRule struct {
	Type        RuleType       `json:"type" bson:"type"`
	Days        []time.Weekday `json:"days,omitempty" bson:"days,omitempty"`
	StartMinute int            `json:"startMinute,omitempty" bson:"startMinute,omitempty"`
	EndMinute   int            `json:"endMinute,omitempty" bson:"endMinute,omitempty"`
}

// Constraint attaches a rule to its owner. Constraints are append-only;
// superseded rules stay in history for explanations.
type Constraint struct {
	ID        string         `json:"id" bson:"id"`
	Owner     string         `json:"owner" bson:"owner"`
	Kind      ConstraintKind `json:"kind" bson:"kind"`
	Rule      TimeWindowRule `json:"rule" bson:"rule"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}

// Matches reports whether the slot satisfies the rule. A slot satisfies a
// day-of-week rule based on its start day, and a time-of-day rule when it lies
// entirely inside the window.
func (r TimeWindowRule) Matches(slot Interval) bool {
	switch r.Type {
	case RuleAllowedDays:
		return containsDay(r.Days, slot.Start.Weekday())
	case RuleDeniedDays:
		return !containsDay(r.Days, slot.Start.Weekday())
	case RuleAllowedTimeOfDay, RulePreferredTimeOfDay:
		startMin := slot.Start.Hour()*60 + slot.Start.Minute()
		endMin := startMin + int(slot.Duration().Minutes())
		return startMin >= r.StartMinute && endMin <= r.EndMinute
	}
	return true
}

// Describe renders the rule in terms the presentation layer can show verbatim.
func (r TimeWindowRule) Describe() string {
	switch r.Type {
	case RuleAllowedDays:
		return "only on " + dayNames(r.Days)
	case RuleDeniedDays:
		return "not on " + dayNames(r.Days)
	case RuleAllowedTimeOfDay:
		return fmt.Sprintf("between %s and %s", minuteClock(r.StartMinute), minuteClock(r.EndMinute))
	case RulePreferredTimeOfDay:
		return fmt.Sprintf("preferably between %s and %s", minuteClock(r.StartMinute), minuteClock(r.EndMinute))
	}
	return string(r.Type)
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}

func dayNames(days []time.Weekday) string {
	sorted := make([]time.Weekday, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	names := make([]string, 0, len(sorted))
	for _, d := range sorted {
		names = append(names, d.String())
	}
	return strings.Join(names, ", ")
}

func minuteClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
