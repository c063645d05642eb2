package reconcile

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oddsync/odds-engine/internal/storage"
)

func newService(store *storage.MockStore) *Service {
	return New(Config{
		Store:          store,
		PendingTimeout: 2 * time.Minute,
		Logger:         zap.NewNop(),
	})
}

func TestCloseExpired(t *testing.T) {
	store := storage.NewMockStore()
	store.Events["evt-past"] = &storage.Event{
		ID:             "evt-past",
		Status:         storage.EventStatusActive,
		ResolutionDate: time.Now().UTC().Add(-time.Hour),
	}
	store.Events["evt-future"] = &storage.Event{
		ID:             "evt-future",
		Status:         storage.EventStatusActive,
		ResolutionDate: time.Now().UTC().Add(time.Hour),
	}
	store.Events["evt-resolved"] = &storage.Event{
		ID:             "evt-resolved",
		Status:         storage.EventStatusResolved,
		ResolutionDate: time.Now().UTC().Add(-time.Hour),
	}

	err := newService(store).CloseExpired(context.Background())
	if err != nil {
		t.Fatalf("CloseExpired() error = %v", err)
	}

	tests := []struct {
		eventID string
		want    string
	}{
		{"evt-past", storage.EventStatusClosed},
		{"evt-future", storage.EventStatusActive},
		{"evt-resolved", storage.EventStatusResolved},
	}
	for _, tt := range tests {
		ev, err := store.GetEvent(context.Background(), tt.eventID)
		if err != nil {
			t.Fatalf("GetEvent(%s) error = %v", tt.eventID, err)
		}
		if ev.Status != tt.want {
			t.Errorf("%s status = %s, want %s", tt.eventID, ev.Status, tt.want)
		}
	}
}

func TestReconcileHedges_FinalizesStuckPositions(t *testing.T) {
	store := storage.NewMockStore()
	old := time.Now().UTC().Add(-10 * time.Minute)

	store.Hedges["hedge-filled"] = &storage.HedgePosition{
		ID:              "hedge-filled",
		Status:          storage.HedgeStatusPending,
		ExternalOrderID: "ord-123",
		CreatedAt:       old,
	}
	store.Hedges["hedge-lost"] = &storage.HedgePosition{
		ID:        "hedge-lost",
		Status:    storage.HedgeStatusPending,
		CreatedAt: old,
	}
	store.Hedges["hedge-fresh"] = &storage.HedgePosition{
		ID:        "hedge-fresh",
		Status:    storage.HedgeStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	err := newService(store).ReconcileHedges(context.Background())
	if err != nil {
		t.Fatalf("ReconcileHedges() error = %v", err)
	}

	if got := store.Hedges["hedge-filled"].Status; got != storage.HedgeStatusHedged {
		t.Errorf("hedge-filled status = %s, want hedged", got)
	}
	if got := store.Hedges["hedge-lost"].Status; got != storage.HedgeStatusFailed {
		t.Errorf("hedge-lost status = %s, want failed", got)
	}
	if got := store.Hedges["hedge-lost"].FailureReason; got != "no external order id after pending timeout" {
		t.Errorf("hedge-lost reason = %q", got)
	}
	if got := store.Hedges["hedge-fresh"].Status; got != storage.HedgeStatusPending {
		t.Errorf("hedge-fresh status = %s, want still pending", got)
	}
}

func TestReconcileHedges_NoPendingIsNoOp(t *testing.T) {
	store := storage.NewMockStore()
	err := newService(store).ReconcileHedges(context.Background())
	if err != nil {
		t.Fatalf("ReconcileHedges() error = %v", err)
	}
}
