package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event type discriminators.
const (
	EventTypeBinary        = "BINARY"
	EventTypeMultiple      = "MULTIPLE"
	EventTypeGroupedBinary = "GROUPED_BINARY"
)

// Event statuses. Transitions are one-way: ACTIVE → CLOSED → RESOLVED.
const (
	EventStatusActive   = "ACTIVE"
	EventStatusClosed   = "CLOSED"
	EventStatusResolved = "RESOLVED"
)

// Hedge position statuses.
const (
	HedgeStatusPending = "pending"
	HedgeStatusHedged  = "hedged"
	HedgeStatusFailed  = "failed"
)

// Event is an internal market priced by the LMSR model.
type Event struct {
	ID             string
	Type           string
	Status         string
	LiquidityB     float64
	QYes           float64 // binary events only
	QNo            float64 // binary events only
	ResolutionDate time.Time
	ResolvedAt     *time.Time
	Result         string
}

// Outcome is one tradable outcome of an Event.
type Outcome struct {
	ID              string
	EventID         string
	Name            string
	Probability     float64
	ExternalTokenID string // empty for legacy binary outcomes
}

// MarketMapping links an internal event to an external venue market.
// Created on admin approval; deactivated exactly once, at settlement.
type MarketMapping struct {
	ID               string
	ExternalMarketID string
	EventID          string
	YesTokenID       string
	NoTokenID        string
	OutcomeTokens    []OutcomeToken
	Active           bool
}

// OutcomeToken links an internal outcome to an external venue token.
type OutcomeToken struct {
	OutcomeID       string
	ExternalTokenID string
	Name            string
}

// ActiveMapping is a mapping joined to its ACTIVE event and outcomes,
// as returned by ListActiveMappings.
type ActiveMapping struct {
	Mapping  MarketMapping
	Event    Event
	Outcomes []Outcome
}

// OddsHistoryPoint is one bucketed history row. Unique on
// (event id, outcome id, bucket time); same-bucket writes overwrite.
type OddsHistoryPoint struct {
	EventID         string
	OutcomeID       string
	BucketTime      time.Time
	Price           float64 // raw venue price
	Probability     float64 // normalized to [0,1]
	ExternalTokenID string
	Source          string
}

// History point sources.
const (
	SourceStream   = "stream"
	SourceBackfill = "backfill"
)

// HedgePosition is an offsetting order placed at the venue by an external
// collaborator. Finalized only by the reconciliation loop.
type HedgePosition struct {
	ID              string
	Status          string
	ExternalOrderID string
	CreatedAt       time.Time
	FailureReason   string
}

// Balance is a user's holding of a token, optionally scoped to an event
// outcome (a position). Mutated solely by settlement.
type Balance struct {
	ID        string
	UserID    string
	Token     string
	EventID   string
	OutcomeID string
	Amount    decimal.Decimal
}

// StableToken is the token winning positions are paid out in.
const StableToken = "USDC"
