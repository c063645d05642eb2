package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oddsync/odds-engine/internal/storage"
	"github.com/oddsync/odds-engine/pkg/types"
)

type fakeVenue struct {
	closed map[string][]types.ClosedMarket
	err    error
	calls  [][]string
}

func (f *fakeVenue) FetchClosedMarkets(ctx context.Context, conditionIDs []string) ([]types.ClosedMarket, error) {
	f.calls = append(f.calls, conditionIDs)
	if f.err != nil {
		return nil, f.err
	}
	var out []types.ClosedMarket
	for _, id := range conditionIDs {
		out = append(out, f.closed[id]...)
	}
	return out, nil
}

func binaryMapping(store *storage.MockStore) {
	store.Events["evt-1"] = &storage.Event{
		ID:             "evt-1",
		Type:           storage.EventTypeBinary,
		Status:         storage.EventStatusClosed,
		LiquidityB:     20000,
		ResolutionDate: time.Now().Add(-time.Hour),
	}
	store.Mappings = []storage.ActiveMapping{{
		Mapping: storage.MarketMapping{
			ID:               "map-1",
			ExternalMarketID: "cond-1",
			EventID:          "evt-1",
			YesTokenID:       "tok-yes",
			NoTokenID:        "tok-no",
			Active:           true,
		},
		Event: storage.Event{ID: "evt-1", Type: storage.EventTypeBinary},
		Outcomes: []storage.Outcome{
			{ID: "out-yes", EventID: "evt-1", Name: "YES"},
			{ID: "out-no", EventID: "evt-1", Name: "NO"},
		},
	}}
}

func newService(store *storage.MockStore, v VenueClient) *Service {
	return New(Config{
		Store:   store,
		Venue:   v,
		FeeRate: 0.02,
		Logger:  zap.NewNop(),
	})
}

func TestSync_SettlesBinaryWinner(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)
	store.Balances["bal-a"] = &storage.Balance{
		ID: "bal-a", UserID: "user-a", EventID: "evt-1", OutcomeID: "out-yes",
		Amount: decimal.NewFromInt(100),
	}
	store.Balances["bal-b"] = &storage.Balance{
		ID: "bal-b", UserID: "user-b", EventID: "evt-1", OutcomeID: "out-no",
		Amount: decimal.NewFromInt(40),
	}

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-1": {{
			ConditionID:   "cond-1",
			Closed:        true,
			Outcomes:      []string{"Yes", "No"},
			OutcomePrices: []string{"0.99", "0.01"},
		}},
	}}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	ev, _ := store.GetEvent(context.Background(), "evt-1")
	if ev.Status != storage.EventStatusResolved {
		t.Errorf("event status = %s, want RESOLVED", ev.Status)
	}
	if ev.Result != "out-yes" {
		t.Errorf("result = %s, want out-yes", ev.Result)
	}

	// 2% fee on the winning 100
	got := store.StableBalance("user-a")
	if !got.Equal(decimal.NewFromInt(98)) {
		t.Errorf("user-a stable balance = %s, want 98", got)
	}
	if !store.StableBalance("user-b").IsZero() {
		t.Error("losing side must not be paid")
	}

	if len(store.Deactivate) != 1 || store.Deactivate[0] != "map-1" {
		t.Errorf("deactivated = %v, want [map-1]", store.Deactivate)
	}
}

func TestSync_SettlesEventClosedByExpiryPass(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)
	// Expiry closed the event locally before the venue confirmed a winner.
	store.Events["evt-1"].Status = storage.EventStatusActive
	if _, err := store.CloseExpiredEvents(context.Background(), time.Now()); err != nil {
		t.Fatalf("CloseExpiredEvents() error = %v", err)
	}
	store.Balances["bal-a"] = &storage.Balance{
		ID: "bal-a", UserID: "user-a", EventID: "evt-1", OutcomeID: "out-yes",
		Amount: decimal.NewFromInt(100),
	}

	// Closed events drop out of the ingestion listing but must stay
	// visible to settlement until they are paid out.
	active, err := store.ListActiveMappings(context.Background())
	if err != nil {
		t.Fatalf("ListActiveMappings() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active mappings = %d, want 0 after close", len(active))
	}

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-1": {{
			ConditionID:   "cond-1",
			Closed:        true,
			Outcomes:      []string{"Yes", "No"},
			OutcomePrices: []string{"0.99", "0.01"},
		}},
	}}

	if err := newService(store, v).Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	ev, _ := store.GetEvent(context.Background(), "evt-1")
	if ev.Status != storage.EventStatusResolved {
		t.Errorf("event status = %s, want RESOLVED", ev.Status)
	}
	if got := store.StableBalance("user-a"); !got.Equal(decimal.NewFromInt(98)) {
		t.Errorf("user-a stable balance = %s, want 98", got)
	}
	if len(store.Deactivate) != 1 || store.Deactivate[0] != "map-1" {
		t.Errorf("deactivated = %v, want [map-1]", store.Deactivate)
	}
}

func TestSync_CaseInsensitiveOutcomeMatch(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-1": {{
			ConditionID:   "cond-1",
			Closed:        true,
			Outcomes:      []string{"yes", "no"},
			OutcomePrices: []string{"0.02", "0.98"},
		}},
	}}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	ev, _ := store.GetEvent(context.Background(), "evt-1")
	if ev.Result != "out-no" {
		t.Errorf("result = %s, want out-no", ev.Result)
	}
}

func TestSync_MarketStillOpenIsSkipped(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-1": {{
			ConditionID:   "cond-1",
			Closed:        false,
			Outcomes:      []string{"Yes", "No"},
			OutcomePrices: []string{"0.99", "0.01"},
		}},
	}}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	ev, _ := store.GetEvent(context.Background(), "evt-1")
	if ev.Status != storage.EventStatusClosed {
		t.Errorf("event status = %s, want unchanged CLOSED", ev.Status)
	}
	if len(store.Deactivate) != 0 {
		t.Errorf("deactivated = %v, want none", store.Deactivate)
	}
}

func TestSync_NoWinnerAboveThresholdLeftForManualResolution(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-1": {{
			ConditionID:   "cond-1",
			Closed:        true,
			Outcomes:      []string{"Yes", "No"},
			OutcomePrices: []string{"0.60", "0.40"},
		}},
	}}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	ev, _ := store.GetEvent(context.Background(), "evt-1")
	if ev.Status != storage.EventStatusClosed {
		t.Errorf("event status = %s, want unchanged CLOSED", ev.Status)
	}
	if len(store.Deactivate) != 0 {
		t.Error("mapping must stay active for manual resolution")
	}
}

func TestSync_AlreadyResolvedStillDeactivatesMapping(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)
	// Prior pass settled but crashed before deactivating.
	store.Events["evt-1"].Status = storage.EventStatusResolved
	store.Events["evt-1"].Result = "out-yes"

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-1": {{
			ConditionID:   "cond-1",
			Closed:        true,
			Outcomes:      []string{"Yes", "No"},
			OutcomePrices: []string{"0.99", "0.01"},
		}},
	}}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if len(store.Deactivate) != 1 || store.Deactivate[0] != "map-1" {
		t.Errorf("deactivated = %v, want [map-1]", store.Deactivate)
	}
}

func TestSync_VenueErrorContinuesPass(t *testing.T) {
	store := storage.NewMockStore()
	binaryMapping(store)

	v := &fakeVenue{err: errors.New("gateway timeout")}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v, per-mapping failures must not abort the pass", err)
	}
	if len(store.Deactivate) != 0 {
		t.Error("nothing should be settled on venue failure")
	}
}

func TestSync_GroupedWinnerByTitleMatch(t *testing.T) {
	store := storage.NewMockStore()
	store.Events["evt-2"] = &storage.Event{
		ID:             "evt-2",
		Type:           storage.EventTypeGroupedBinary,
		Status:         storage.EventStatusClosed,
		ResolutionDate: time.Now().Add(-time.Hour),
	}
	store.Mappings = []storage.ActiveMapping{{
		Mapping: storage.MarketMapping{
			ID:               "map-2",
			ExternalMarketID: "cond-2",
			EventID:          "evt-2",
			Active:           true,
		},
		Event: storage.Event{ID: "evt-2", Type: storage.EventTypeGroupedBinary},
		Outcomes: []storage.Outcome{
			{ID: "out-alice", EventID: "evt-2", Name: "Alice"},
			{ID: "out-bob", EventID: "evt-2", Name: "Bob"},
		},
	}}

	v := &fakeVenue{closed: map[string][]types.ClosedMarket{
		"cond-2": {
			{
				ConditionID:   "cond-2a",
				Question:      "Will Alice win the election?",
				Closed:        true,
				Outcomes:      []string{"Yes", "No"},
				OutcomePrices: []string{"0.03", "0.97"},
			},
			{
				ConditionID:   "cond-2b",
				Question:      "Will Bob win the election?",
				Closed:        true,
				Outcomes:      []string{"Yes", "No"},
				OutcomePrices: []string{"0.97", "0.03"},
			},
		},
	}}

	err := newService(store, v).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	ev, _ := store.GetEvent(context.Background(), "evt-2")
	if ev.Result != "out-bob" {
		t.Errorf("result = %s, want out-bob", ev.Result)
	}
}
