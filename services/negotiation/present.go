package negotiation

import (
	"fmt"
	"strings"

	"meetsync/models"
)

const (
	clarificationMessage = "I'm sorry, I didn't quite understand your response. " +
		"Could you please confirm one of the options, provide a new constraint " +
		"(e.g., 'I need an afternoon slot'), or reply with 'cancel' to stop?"

	cancelledMessage = "Okay, I'm cancelling this scheduling request. " +
		"Feel free to start a new one anytime."

	roundsExhaustedMessage = "I wasn't able to find a time that works after several attempts. " +
		"I'm stopping here - you may want to coordinate directly or start over with a wider timeframe."

	noAvailabilityMessage = "I couldn't find any time that works for everyone in the requested timeframe, " +
		"even allowing for compromises. Feel free to adjust your timeframe or constraints."

	bookingFailedMessage = "I found a time everyone agreed on, but the calendar booking kept failing. " +
		"Please try confirming again later or book it manually."
)

func missingFieldsPrompt(missing []string) string {
	return fmt.Sprintf("I still need the following before I can propose times: %s. "+
		"Please reply in this thread with the missing details.", strings.Join(missing, ", "))
}

func unresolvedPrompt(mentions []string) string {
	return fmt.Sprintf("I couldn't identify %s. Please reply with their email addresses "+
		"(comma-separated) so I can include them.", strings.Join(mentions, ", "))
}

func invalidAttendeePrompt(attendee string) string {
	return fmt.Sprintf("The calendar rejected %s as an attendee. "+
		"Please check the address and reply with a correction.", attendee)
}

func bookedMessage(title string, slot models.Interval) string {
	return fmt.Sprintf("Booked \"%s\" for %s. Invites are on their way.",
		title, formatSlot(slot))
}

// FormatOptions renders candidates as a numbered, human-readable message the
// messaging layer can post verbatim.
func FormatOptions(candidates []models.Candidate, noPerfectMatch bool) string {
	if len(candidates) == 0 {
		return noAvailabilityMessage
	}

	var header string
	switch {
	case noPerfectMatch:
		header = "I couldn't find a slot that satisfies everything, but here are the closest compromises:"
	case len(candidates) == 1:
		header = "I found a suitable time slot:"
	default:
		header = "Here are a few options I found:"
	}

	lines := []string{header, ""}
	for i, c := range candidates {
		lines = append(lines, fmt.Sprintf("%d) %s", i+1, formatSlot(c.Slot)))
		for _, expl := range c.Explanations {
			lines = append(lines, "   - "+expl)
		}
	}
	lines = append(lines, "")

	if len(candidates) == 1 {
		lines = append(lines, "Please reply with just 'yes' to confirm or 'no' to decline. "+
			"You can also add participants (e.g., 'add @user') or constraints (e.g., 'afternoon only').")
	} else {
		lines = append(lines, "Please reply in this thread to confirm (e.g., 'Option 1 is good') "+
			"or suggest changes (e.g., 'afternoon only', '30 mins', 'add @user to the meeting').")
	}
	return strings.Join(lines, "\n")
}

func formatSlot(slot models.Interval) string {
	return fmt.Sprintf("%s %s-%s",
		slot.Start.Format("Mon 2006-01-02"),
		slot.Start.Format("15:04"),
		slot.End.Format("15:04"))
}
