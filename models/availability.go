package models

import "time"

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsZero reports whether the interval is unset.
func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

// Contains reports whether other lies entirely within i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps reports whether the two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// AvailabilityWindow carries one participant's busy intervals for a queried
// range. Busy intervals are non-overlapping and sorted ascending, all within
// QueriedRange.
type AvailabilityWindow struct {
	Participant  string     `json:"participant"`
	Busy         []Interval `json:"busy"`
	QueriedRange Interval   `json:"queriedRange"`
	// HasData is false when the calendar backend returned nothing for this
	// participant; they are treated as fully busy unless optional.
	HasData bool `json:"hasData"`
}
