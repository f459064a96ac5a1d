package models

import "time"

// TranscriptEntry is one conversational turn kept for extraction context.
type TranscriptEntry struct {
	AuthorID string    `json:"authorId"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// ThreadContext is the rolling conversation history for one thread, fed back
// into the extractor so follow-up replies are interpreted against what was
// already said.
type ThreadContext struct {
	Transcript []TranscriptEntry `json:"transcript"`
}

const maxTranscriptEntries = 20

// Append adds a turn, keeping only the most recent entries.
func (c *ThreadContext) Append(authorID, text string, at time.Time) {
	c.Transcript = append(c.Transcript, TranscriptEntry{
		AuthorID: authorID,
		Text:     text,
		At:       at,
	})
	if len(c.Transcript) > maxTranscriptEntries {
		c.Transcript = c.Transcript[len(c.Transcript)-maxTranscriptEntries:]
	}
}
