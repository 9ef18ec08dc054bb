package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DailySummary holds the authoritative aggregated activity for one
// participant on one calendar date. At most one row exists per
// (date, participant); re-synchronizing replaces the payload wholesale.
type DailySummary struct {
	Date          string
	ParticipantID uuid.UUID
	Timezone      string
	Payload       json.RawMessage
	LastUpdated   time.Time
}

// SummaryPayload mirrors the upstream summary API response shape. Only the
// category totals participate in aggregation; the raw payload is stored
// untouched.
type SummaryPayload struct {
	Categories []SummaryCategory `json:"categories"`
}

// SummaryCategory is one upstream activity category with its total seconds.
type SummaryCategory struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// TotalSeconds sums all category totals in a raw summary payload. A missing
// or malformed payload counts as zero rather than failing aggregation.
func TotalSeconds(payload json.RawMessage) float64 {
	if len(payload) == 0 {
		return 0
	}
	var parsed SummaryPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return 0
	}
	var total float64
	for _, c := range parsed.Categories {
		total += c.Total
	}
	return total
}
