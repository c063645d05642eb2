package marketstate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oddsync/odds-engine/internal/spike"
	"github.com/oddsync/odds-engine/internal/storage"
	"go.uber.org/zap"
)

// Publisher broadcasts canonical update payloads. Publish failures follow
// an ignored-error contract: the updater logs them and moves on.
type Publisher interface {
	PublishUpdate(ctx context.Context, update *Update) error
}

// Update is the canonical payload published after an accepted tick.
type Update struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	Probabilities map[string]float64 `json:"probabilities"` // outcome id → probability
	Timestamp     time.Time          `json:"timestamp"`
}

// Updater applies accepted prices to the market model.
type Updater struct {
	store       storage.Store
	filter      *spike.Filter
	publisher   Publisher
	bucketWidth time.Duration
	logger      *zap.Logger
}

// Config holds updater configuration.
type Config struct {
	Store       storage.Store
	Filter      *spike.Filter
	Publisher   Publisher
	BucketWidth time.Duration
	Logger      *zap.Logger
}

// New creates an Updater.
func New(cfg Config) *Updater {
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = 5 * time.Minute
	}
	return &Updater{
		store:       cfg.Store,
		filter:      cfg.Filter,
		publisher:   cfg.Publisher,
		bucketWidth: cfg.BucketWidth,
		logger:      cfg.Logger,
	}
}

// Apply converts one accepted (token, price) tick into model state: outcome
// probability, LMSR quantities for binary events, one bucketed history row,
// and a broadcast. Unmapped tokens and spike-rejected ticks are no-ops.
// History-write and broadcast failures are logged, never returned, so a
// lagging store delays durability rather than the hot path.
func (u *Updater) Apply(ctx context.Context, tokenID string, price float64, am *storage.ActiveMapping, ts time.Time) {
	outcome := ResolveOutcome(am, tokenID)
	if outcome == nil {
		u.logger.Warn("tick-for-unmapped-token",
			zap.String("token-id", tokenID),
			zap.String("event-id", am.Event.ID))
		UnmappedTicksTotal.Inc()
		return
	}

	if !u.filter.Accept(tokenID, price, outcome.Probability) {
		u.logger.Debug("tick-held-as-spike",
			zap.String("token-id", tokenID),
			zap.Float64("price", price),
			zap.Float64("stored", outcome.Probability))
		return
	}

	p := Clamp01(price)

	err := u.store.UpdateOutcomeProbability(ctx, outcome.ID, p)
	if err != nil {
		u.logger.Error("update-outcome-probability-failed",
			zap.String("outcome-id", outcome.ID),
			zap.Error(err))
		return
	}

	// Keep the in-memory snapshot in step so the next tick's spike check
	// compares against what was just written, not the last refresh.
	outcome.Probability = p

	if am.Event.Type == storage.EventTypeBinary {
		yesPrice := p
		if !isYesOutcome(outcome) {
			yesPrice = 1 - p
		}
		qYes := SharesFromPrice(am.Event.LiquidityB, yesPrice)
		qNo := SharesFromPrice(am.Event.LiquidityB, 1-yesPrice)

		err = u.store.UpdateEventQuantities(ctx, am.Event.ID, qYes, qNo)
		if err != nil {
			u.logger.Error("update-event-quantities-failed",
				zap.String("event-id", am.Event.ID),
				zap.Error(err))
		} else {
			am.Event.QYes = qYes
			am.Event.QNo = qNo
		}
	}

	point := &storage.OddsHistoryPoint{
		EventID:         am.Event.ID,
		OutcomeID:       outcome.ID,
		BucketTime:      ts.UTC().Truncate(u.bucketWidth),
		Price:           price,
		Probability:     p,
		ExternalTokenID: tokenID,
		Source:          storage.SourceStream,
	}
	err = u.store.UpsertOddsHistoryPoint(ctx, point)
	if err != nil {
		u.logger.Warn("odds-history-write-failed",
			zap.String("event-id", am.Event.ID),
			zap.Error(err))
	}

	u.broadcast(ctx, am, ts)

	TicksAppliedTotal.Inc()
}

// broadcast publishes the event's current probabilities. Failures are
// logged and dropped.
func (u *Updater) broadcast(ctx context.Context, am *storage.ActiveMapping, ts time.Time) {
	if u.publisher == nil {
		return
	}

	probs := make(map[string]float64, len(am.Outcomes))
	for i := range am.Outcomes {
		probs[am.Outcomes[i].ID] = am.Outcomes[i].Probability
	}

	update := &Update{
		ID:            uuid.NewString(),
		EventID:       am.Event.ID,
		Probabilities: probs,
		Timestamp:     ts.UTC(),
	}

	err := u.publisher.PublishUpdate(ctx, update)
	if err != nil {
		u.logger.Warn("update-broadcast-failed",
			zap.String("event-id", am.Event.ID),
			zap.Error(err))
		BroadcastFailuresTotal.Inc()
	}
}

// ResolveOutcome finds the Outcome a venue token maps to. Binary events
// match on the mapping's yes/no token ids against outcomes named YES/NO;
// multi-outcome and grouped events match on the stored external token id,
// falling back to the mapping's outcome-token list.
func ResolveOutcome(am *storage.ActiveMapping, tokenID string) *storage.Outcome {
	if am.Event.Type == storage.EventTypeBinary {
		switch tokenID {
		case am.Mapping.YesTokenID:
			return findOutcomeByName(am, "YES")
		case am.Mapping.NoTokenID:
			return findOutcomeByName(am, "NO")
		}
	}

	for i := range am.Outcomes {
		if am.Outcomes[i].ExternalTokenID != "" && am.Outcomes[i].ExternalTokenID == tokenID {
			return &am.Outcomes[i]
		}
	}

	for _, ot := range am.Mapping.OutcomeTokens {
		if ot.ExternalTokenID == tokenID {
			return findOutcomeByID(am, ot.OutcomeID)
		}
	}

	return nil
}

func findOutcomeByName(am *storage.ActiveMapping, name string) *storage.Outcome {
	for i := range am.Outcomes {
		if strings.EqualFold(am.Outcomes[i].Name, name) {
			return &am.Outcomes[i]
		}
	}
	return nil
}

func findOutcomeByID(am *storage.ActiveMapping, id string) *storage.Outcome {
	for i := range am.Outcomes {
		if am.Outcomes[i].ID == id {
			return &am.Outcomes[i]
		}
	}
	return nil
}

func isYesOutcome(o *storage.Outcome) bool {
	return strings.EqualFold(o.Name, "YES")
}
