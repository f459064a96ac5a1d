package models

// Candidate is a proposable meeting slot with its ranking score and the
// human-readable reasons behind it.
type Candidate struct {
	Slot         Interval `json:"slot" bson:"slot"`
	Score        float64  `json:"score" bson:"score"`
	Explanations []string `json:"explanations" bson:"explanations"`
}
