package models

import "time"

// InsightsCollection caches analysis results, keyed by a digest of the
// journal text. The text itself is stored and compared on read.
const InsightsCollection = "insights"

// Insight is the structured reflection produced for a journal entry.
type Insight struct {
	Mood     string   `json:"mood"     bson:"mood"`
	Triggers []string `json:"triggers" bson:"triggers"`
	Insight  string   `json:"insight"  bson:"insight"`
	ProTip   string   `json:"pro_tip"  bson:"pro_tip"`
	Headline string   `json:"headline" bson:"headline"`
}

// InsightRecord is a cached Insight with the exact text it was made for.
type InsightRecord struct {
	Text      string    `json:"text"      bson:"text"`
	Insight   Insight   `json:"insight"   bson:"insight"`
	Provider  string    `json:"provider"  bson:"provider"`
	Model     string    `json:"model"     bson:"model"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
