package scheduling

import (
	"sort"

	"meetsync/models"
)

// MergeBusy normalizes raw busy intervals: sorted ascending, with overlapping
// or adjacent intervals merged.
func MergeBusy(busy []models.Interval) []models.Interval {
	if len(busy) == 0 {
		return nil
	}
	sorted := make([]models.Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []models.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// FreeWithin complements the busy intervals inside the queried range. Busy
// intervals must already be merged and sorted; portions outside the range are
// clipped.
func FreeWithin(queried models.Interval, busy []models.Interval) []models.Interval {
	var free []models.Interval
	cursor := queried.Start
	for _, iv := range busy {
		if !iv.End.After(queried.Start) || !iv.Start.Before(queried.End) {
			continue
		}
		start := iv.Start
		if start.Before(queried.Start) {
			start = queried.Start
		}
		if cursor.Before(start) {
			free = append(free, models.Interval{Start: cursor, End: start})
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if cursor.Before(queried.End) {
		free = append(free, models.Interval{Start: cursor, End: queried.End})
	}
	return free
}

// intersect returns the pairwise intersection of two sorted free-interval
// sequences.
func intersect(a, b []models.Interval) []models.Interval {
	var out []models.Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := a[i].Start
		if b[j].Start.After(start) {
			start = b[j].Start
		}
		end := a[i].End
		if b[j].End.Before(end) {
			end = b[j].End
		}
		if start.Before(end) {
			out = append(out, models.Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// JointlyFree intersects per-participant free time across all listed windows
// within the queried range. A participant with no calendar data is treated as
// fully busy (fail-closed) unless named in optional.
func JointlyFree(queried models.Interval, windows []models.AvailabilityWindow, optional map[string]bool) []models.Interval {
	joint := []models.Interval{queried}
	for _, w := range windows {
		if !w.HasData {
			if optional[w.Participant] {
				continue
			}
			return nil
		}
		free := FreeWithin(queried, MergeBusy(w.Busy))
		joint = intersect(joint, free)
		if len(joint) == 0 {
			return nil
		}
	}
	return joint
}
