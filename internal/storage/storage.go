package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors surfaced by Store implementations.
var (
	// ErrAlreadyResolved is returned by Settle when the event is RESOLVED.
	// Callers treat it as an expected no-op.
	ErrAlreadyResolved = errors.New("event already resolved")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence boundary for market state, history, hedges, and
// balances. Every mutating call is a single atomic statement (or, for
// Settle, a single transaction) keyed by its target, so the unsynchronized
// loops sharing a Store cannot corrupt each other's state.
type Store interface {
	// ListActiveMappings returns active mappings joined to their ACTIVE,
	// externally-sourced events and outcomes. This is the ingestion view;
	// CLOSED events are excluded from the subscribable token set.
	ListActiveMappings(ctx context.Context) ([]ActiveMapping, error)

	// ListSettleableMappings returns active mappings whose events are
	// ACTIVE or CLOSED. Settlement uses this listing so events closed by
	// the expiry pass stay visible until the venue confirms the winner.
	ListSettleableMappings(ctx context.Context) ([]ActiveMapping, error)

	// GetEvent fetches one event by id.
	GetEvent(ctx context.Context, eventID string) (*Event, error)

	// UpdateOutcomeProbability writes an outcome's current probability.
	UpdateOutcomeProbability(ctx context.Context, outcomeID string, probability float64) error

	// UpdateEventQuantities writes the LMSR share quantities of a binary event.
	UpdateEventQuantities(ctx context.Context, eventID string, qYes, qNo float64) error

	// UpsertOddsHistoryPoint writes one bucketed history row,
	// overwriting any existing row in the same bucket (last-write-wins).
	UpsertOddsHistoryPoint(ctx context.Context, point *OddsHistoryPoint) error

	// InsertOddsHistoryBatch inserts many history rows, skipping buckets
	// that already have a row.
	InsertOddsHistoryBatch(ctx context.Context, points []OddsHistoryPoint) (inserted int, err error)

	// CloseExpiredEvents moves ACTIVE externally-sourced events past their
	// resolution date to CLOSED and returns how many were closed.
	CloseExpiredEvents(ctx context.Context, now time.Time) (int, error)

	// ListPendingHedges returns hedge positions pending since before cutoff.
	ListPendingHedges(ctx context.Context, cutoff time.Time) ([]HedgePosition, error)

	// FinalizeHedge moves a pending hedge position to hedged or failed.
	FinalizeHedge(ctx context.Context, hedgeID, status, reason string) error

	// Settle pays out a resolved event in a single transaction: winning
	// positive balances are credited (minus fee) to the holder's stable
	// balance and zeroed, every other balance on the event is zeroed, and
	// the event is marked RESOLVED. Settling an already-RESOLVED event
	// returns ErrAlreadyResolved with zero side effects.
	Settle(ctx context.Context, eventID, winningOutcomeID string, feeRate float64) error

	// DeactivateMapping marks a mapping inactive so no loop touches its
	// market again.
	DeactivateMapping(ctx context.Context, mappingID string) error

	// Close closes the underlying connection.
	Close() error
}
