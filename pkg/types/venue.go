package types

import "time"

// HistoryPoint is one element of the venue's prices-history response.
type HistoryPoint struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

// Time returns the point's timestamp as a time.Time in UTC.
func (p HistoryPoint) Time() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}

// HistoryResponse wraps the venue's price history payload.
type HistoryResponse struct {
	History []HistoryPoint `json:"history"`
}

// ClosedMarket is one entry of the venue's closed-market listing: the final
// outcome names and prices of a market that stopped trading.
type ClosedMarket struct {
	ConditionID   string   `json:"conditionId"`
	Question      string   `json:"question"`
	Slug          string   `json:"slug"`
	Closed        bool     `json:"closed"`
	Outcomes      []string `json:"-"`
	OutcomePrices []string `json:"-"`

	// The venue encodes both lists as JSON-in-a-string.
	RawOutcomes      string `json:"outcomes"`
	RawOutcomePrices string `json:"outcomePrices"`
}

// WinnerThreshold is the final price above which an outcome is treated as
// the market's winner.
const WinnerThreshold = 0.95
