package scheduling

import (
	"testing"
	"time"

	"meetsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func iv(startHour, startMin, endHour, endMin int) models.Interval {
	return models.Interval{Start: at(startHour, startMin), End: at(endHour, endMin)}
}

func TestMergeBusy(t *testing.T) {
	tests := []struct {
		name string
		in   []models.Interval
		want []models.Interval
	}{
		{
			name: "overlapping intervals merge",
			in:   []models.Interval{iv(9, 0, 10, 30), iv(10, 0, 11, 0)},
			want: []models.Interval{iv(9, 0, 11, 0)},
		},
		{
			name: "adjacent intervals merge",
			in:   []models.Interval{iv(9, 0, 10, 0), iv(10, 0, 11, 0)},
			want: []models.Interval{iv(9, 0, 11, 0)},
		},
		{
			name: "unsorted input is sorted",
			in:   []models.Interval{iv(13, 0, 14, 0), iv(9, 0, 10, 0)},
			want: []models.Interval{iv(9, 0, 10, 0), iv(13, 0, 14, 0)},
		},
		{
			name: "empty input",
			in:   nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeBusy(tt.in))
		})
	}
}

func TestFreeWithin(t *testing.T) {
	queried := iv(9, 0, 17, 0)

	free := FreeWithin(queried, []models.Interval{iv(10, 0, 11, 0), iv(13, 0, 14, 30)})
	assert.Equal(t, []models.Interval{
		iv(9, 0, 10, 0),
		iv(11, 0, 13, 0),
		iv(14, 30, 17, 0),
	}, free)

	// Fully busy.
	assert.Empty(t, FreeWithin(queried, []models.Interval{iv(8, 0, 18, 0)}))

	// Fully free.
	assert.Equal(t, []models.Interval{queried}, FreeWithin(queried, nil))

	// Busy interval straddling the range start is clipped.
	free = FreeWithin(queried, []models.Interval{iv(8, 0, 9, 30)})
	assert.Equal(t, []models.Interval{iv(9, 30, 17, 0)}, free)
}

func TestJointlyFree(t *testing.T) {
	queried := iv(9, 0, 17, 0)
	windows := []models.AvailabilityWindow{
		{Participant: "alice@example.com", HasData: true,
			Busy: []models.Interval{iv(9, 0, 10, 0)}, QueriedRange: queried},
		{Participant: "bob@example.com", HasData: true,
			Busy: []models.Interval{iv(12, 0, 13, 0)}, QueriedRange: queried},
	}

	joint := JointlyFree(queried, windows, nil)
	assert.Equal(t, []models.Interval{
		iv(10, 0, 12, 0),
		iv(13, 0, 17, 0),
	}, joint)
}

func TestJointlyFreeMissingCalendarFailsClosed(t *testing.T) {
	queried := iv(9, 0, 17, 0)
	windows := []models.AvailabilityWindow{
		{Participant: "alice@example.com", HasData: true, QueriedRange: queried},
		{Participant: "ghost@example.com", HasData: false, QueriedRange: queried},
	}

	assert.Nil(t, JointlyFree(queried, windows, nil),
		"a participant without calendar data is fully busy")

	joint := JointlyFree(queried, windows, map[string]bool{"ghost@example.com": true})
	require.Len(t, joint, 1, "optional participants without data are skipped")
	assert.Equal(t, queried, joint[0])
}
