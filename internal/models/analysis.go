package models

import (
	"time"

	"github.com/listing-trust/internal/types"
)

// FilterOutcome is the verdict of one analysis filter for one run
type FilterOutcome struct {
	FilterID string                 `json:"filterId"`
	Status   types.FilterStatus     `json:"status"`
	Score    float64                `json:"score"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// TrustScore is the aggregated 0-100 score. Partial is set when at least one
// filter was skipped.
type TrustScore struct {
	Score   int  `json:"score"`
	Partial bool `json:"partial"`
}

// AnalysisResult is what AnalyzeListing returns to callers
type AnalysisResult struct {
	ListingID string           `json:"listingId,omitempty"`
	Trust     TrustScore       `json:"trust"`
	Outcomes  []*FilterOutcome `json:"outcomes"`
}

// AnalysisEvent is one analyzed listing as recorded in the analytics store
type AnalysisEvent struct {
	EventID    string    `json:"eventId" ch:"event_id"`
	ListingID  string    `json:"listingId" ch:"listing_id"`
	Make       string    `json:"make" ch:"make"`
	Model      string    `json:"model" ch:"model"`
	Year       int32     `json:"year" ch:"year"`
	Country    string    `json:"country" ch:"country"`
	Score      uint8     `json:"score" ch:"score"`
	Partial    bool      `json:"partial" ch:"partial"`
	Statuses   []string  `json:"statuses" ch:"statuses"` // "L1:pass", ...
	AnalyzedAt time.Time `json:"analyzedAt" ch:"analyzed_at"`
}
