package types

import (
	"strconv"

	json "github.com/goccy/go-json"
)

// Feed event types sent by the venue websocket.
const (
	EventTypeLastTradePrice = "last_trade_price"
	EventTypePriceChange    = "price_change"
)

// FeedMessage is one element of the message array the venue pushes on the
// market channel. A last_trade_price message carries AssetID and Price
// directly; a price_change message carries a batch of PriceChange entries.
type FeedMessage struct {
	EventType    string        `json:"event_type"`
	AssetID      string        `json:"asset_id"`
	Market       string        `json:"market"`
	Price        string        `json:"price"`
	Timestamp    int64         `json:"-"` // parsed from string via UnmarshalJSON
	PriceChanges []PriceChange `json:"price_changes,omitempty"`
}

// UnmarshalJSON handles the venue's string-encoded timestamp.
func (m *FeedMessage) UnmarshalJSON(data []byte) error {
	type Alias FeedMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		ts, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		m.Timestamp = ts
	}

	return nil
}

// PriceChange is a single entry of a price_change batch. The venue sends
// either a direct Price or a BestBid/BestAsk pair (sometimes both).
type PriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price,omitempty"`
	BestBid string `json:"best_bid,omitempty"`
	BestAsk string `json:"best_ask,omitempty"`
}

// ParsePrice converts a venue price string into a float64.
// Empty strings yield ok=false rather than an error.
func ParsePrice(s string) (price float64, ok bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SubscribeMessage is the initial market-channel subscription, enumerating
// the token ids to receive last_trade_price and price_change events for.
type SubscribeMessage struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// SubscriptionOp is the dynamic subscribe/unsubscribe message sent on an
// already-established connection.
type SubscriptionOp struct {
	AssetIDs  []string `json:"assets_ids"`
	Operation string   `json:"operation"`
}
