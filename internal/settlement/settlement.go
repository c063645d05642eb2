// Package settlement detects externally-resolved markets and pays them
// out. Detection polls the venue's closed-market listing; payout is a
// single idempotent storage transaction.
package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/oddsync/odds-engine/internal/storage"
	"github.com/oddsync/odds-engine/internal/venue"
	"github.com/oddsync/odds-engine/pkg/types"
	"go.uber.org/zap"
)

// VenueClient is the slice of the venue API the detector needs.
type VenueClient interface {
	FetchClosedMarkets(ctx context.Context, conditionIDs []string) ([]types.ClosedMarket, error)
}

var _ VenueClient = (*venue.Client)(nil)

// Service polls for closed markets and settles their events.
type Service struct {
	store   storage.Store
	venue   VenueClient
	feeRate float64
	logger  *zap.Logger
}

// Config holds settlement configuration.
type Config struct {
	Store   storage.Store
	Venue   VenueClient
	FeeRate float64
	Logger  *zap.Logger
}

// New creates a settlement service.
func New(cfg Config) *Service {
	return &Service{
		store:   cfg.Store,
		venue:   cfg.Venue,
		feeRate: cfg.FeeRate,
		logger:  cfg.Logger,
	}
}

// Sync runs one detection pass over all active mappings, including those
// whose events the expiry pass already moved to CLOSED. Per-mapping
// failures are logged and the pass continues; only "already resolved" is
// an expected no-op.
func (s *Service) Sync(ctx context.Context) error {
	mappings, err := s.store.ListSettleableMappings(ctx)
	if err != nil {
		return err
	}

	for i := range mappings {
		am := &mappings[i]

		closed, err := s.venue.FetchClosedMarkets(ctx, []string{am.Mapping.ExternalMarketID})
		if err != nil {
			s.logger.Warn("closed-market-fetch-failed",
				zap.String("external-market-id", am.Mapping.ExternalMarketID),
				zap.Error(err))
			continue
		}
		if len(closed) == 0 {
			continue
		}

		winner := s.inferWinner(am, closed)
		if winner == nil {
			// No outcome crossed the winner threshold or the title match
			// failed. Left for manual resolution rather than guessing.
			s.logger.Error("winner-inference-failed",
				zap.String("event-id", am.Event.ID),
				zap.String("external-market-id", am.Mapping.ExternalMarketID))
			InferenceFailuresTotal.Inc()
			continue
		}

		s.settleMapping(ctx, am, winner)
	}

	return nil
}

// settleMapping pays out one event and deactivates its mapping.
func (s *Service) settleMapping(ctx context.Context, am *storage.ActiveMapping, winner *storage.Outcome) {
	err := s.store.Settle(ctx, am.Event.ID, winner.ID, s.feeRate)
	if errors.Is(err, storage.ErrAlreadyResolved) {
		// Expected when a prior pass settled but crashed before
		// deactivating the mapping; fall through and deactivate now.
		s.logger.Info("event-already-resolved",
			zap.String("event-id", am.Event.ID))
	} else if err != nil {
		s.logger.Error("settlement-failed",
			zap.String("event-id", am.Event.ID),
			zap.String("winning-outcome-id", winner.ID),
			zap.Error(err))
		SettlementFailuresTotal.Inc()
		return
	} else {
		s.logger.Info("event-settled",
			zap.String("event-id", am.Event.ID),
			zap.String("winning-outcome", winner.Name))
		EventsSettledTotal.Inc()
	}

	err = s.store.DeactivateMapping(ctx, am.Mapping.ID)
	if err != nil {
		s.logger.Error("mapping-deactivate-failed",
			zap.String("mapping-id", am.Mapping.ID),
			zap.Error(err))
	}
}

// inferWinner picks the winning internal outcome from the venue's final
// prices. Binary events use the market's own 0.95-rule winner; grouped and
// multi-outcome events use the sub-market whose yes price crossed 0.95,
// title-matched case-insensitively to an internal outcome.
func (s *Service) inferWinner(am *storage.ActiveMapping, closed []types.ClosedMarket) *storage.Outcome {
	if am.Event.Type == storage.EventTypeBinary {
		return s.inferBinaryWinner(am, closed)
	}
	return s.inferGroupedWinner(am, closed)
}

func (s *Service) inferBinaryWinner(am *storage.ActiveMapping, closed []types.ClosedMarket) *storage.Outcome {
	for _, m := range closed {
		if !m.Closed {
			continue
		}
		for i, name := range m.Outcomes {
			if i >= len(m.OutcomePrices) {
				break
			}
			price, ok := types.ParsePrice(m.OutcomePrices[i])
			if !ok || price < types.WinnerThreshold {
				continue
			}
			for j := range am.Outcomes {
				if strings.EqualFold(am.Outcomes[j].Name, name) {
					return &am.Outcomes[j]
				}
			}
		}
	}
	return nil
}

func (s *Service) inferGroupedWinner(am *storage.ActiveMapping, closed []types.ClosedMarket) *storage.Outcome {
	for _, m := range closed {
		if !m.Closed {
			continue
		}
		if yesPrice(&m) < types.WinnerThreshold {
			continue
		}
		// The winning sub-market's title names the outcome.
		for j := range am.Outcomes {
			if containsFold(m.Question, am.Outcomes[j].Name) {
				return &am.Outcomes[j]
			}
		}
	}
	return nil
}

// yesPrice returns the final price of a market's Yes outcome, 0 if absent.
func yesPrice(m *types.ClosedMarket) float64 {
	for i, name := range m.Outcomes {
		if i >= len(m.OutcomePrices) {
			break
		}
		if strings.EqualFold(name, "Yes") {
			price, ok := types.ParsePrice(m.OutcomePrices[i])
			if ok {
				return price
			}
		}
	}
	return 0
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
