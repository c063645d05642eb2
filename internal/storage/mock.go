package storage

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu sync.Mutex

	Mappings []ActiveMapping
	Events   map[string]*Event
	History  map[string]OddsHistoryPoint // key: eventID|outcomeID|bucket
	Hedges   map[string]*HedgePosition
	Balances map[string]*Balance // key: balance id

	Probabilities map[string]float64 // outcomeID → last written probability

	ListErr    error
	SettleErr  error
	UpsertErr  error
	Deactivate []string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		Events:        make(map[string]*Event),
		History:       make(map[string]OddsHistoryPoint),
		Hedges:        make(map[string]*HedgePosition),
		Balances:      make(map[string]*Balance),
		Probabilities: make(map[string]float64),
	}
}

func historyKey(p *OddsHistoryPoint) string {
	return p.EventID + "|" + p.OutcomeID + "|" + p.BucketTime.UTC().Format(time.RFC3339)
}

// SetMappings replaces the active mapping set. Safe to call while another
// goroutine is polling ListActiveMappings.
func (m *MockStore) SetMappings(mappings []ActiveMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mappings = mappings
}

func (m *MockStore) ListActiveMappings(ctx context.Context) ([]ActiveMapping, error) {
	return m.listMappings(EventStatusActive)
}

func (m *MockStore) ListSettleableMappings(ctx context.Context) ([]ActiveMapping, error) {
	return m.listMappings(EventStatusActive, EventStatusClosed)
}

// listMappings filters by event status like the SQL join does. The live
// Events entry wins over the status snapshot embedded in the mapping.
func (m *MockStore) listMappings(statuses ...string) ([]ActiveMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var result []ActiveMapping
	for _, am := range m.Mappings {
		if !am.Mapping.Active {
			continue
		}
		status := am.Event.Status
		if e, ok := m.Events[am.Event.ID]; ok {
			status = e.Status
		}
		for _, s := range statuses {
			if status == s {
				result = append(result, am)
				break
			}
		}
	}
	return result, nil
}

func (m *MockStore) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *MockStore) UpdateOutcomeProbability(ctx context.Context, outcomeID string, probability float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Probabilities[outcomeID] = probability
	return nil
}

func (m *MockStore) UpdateEventQuantities(ctx context.Context, eventID string, qYes, qNo float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Events[eventID]; ok {
		e.QYes = qYes
		e.QNo = qNo
	}
	return nil
}

func (m *MockStore) UpsertOddsHistoryPoint(ctx context.Context, point *OddsHistoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.History[historyKey(point)] = *point
	return nil
}

func (m *MockStore) InsertOddsHistoryBatch(ctx context.Context, points []OddsHistoryPoint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for i := range points {
		key := historyKey(&points[i])
		if _, exists := m.History[key]; exists {
			continue
		}
		m.History[key] = points[i]
		inserted++
	}
	return inserted, nil
}

func (m *MockStore) CloseExpiredEvents(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	closed := 0
	for _, e := range m.Events {
		if e.Status == EventStatusActive && e.ResolutionDate.Before(now) {
			e.Status = EventStatusClosed
			closed++
		}
	}
	return closed, nil
}

func (m *MockStore) ListPendingHedges(ctx context.Context, cutoff time.Time) ([]HedgePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hedges []HedgePosition
	for _, h := range m.Hedges {
		if h.Status == HedgeStatusPending && h.CreatedAt.Before(cutoff) {
			hedges = append(hedges, *h)
		}
	}
	return hedges, nil
}

func (m *MockStore) FinalizeHedge(ctx context.Context, hedgeID, status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.Hedges[hedgeID]; ok && h.Status == HedgeStatusPending {
		h.Status = status
		h.FailureReason = reason
	}
	return nil
}

func (m *MockStore) Settle(ctx context.Context, eventID, winningOutcomeID string, feeRate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SettleErr != nil {
		return m.SettleErr
	}

	e, ok := m.Events[eventID]
	if !ok {
		return ErrNotFound
	}
	if e.Status == EventStatusResolved {
		return ErrAlreadyResolved
	}

	fee := decimal.NewFromFloat(feeRate)
	for _, b := range m.Balances {
		if b.EventID != eventID {
			continue
		}
		if b.OutcomeID == winningOutcomeID && b.Amount.IsPositive() {
			net := b.Amount.Sub(b.Amount.Mul(fee))
			m.creditStable(b.UserID, net)
		}
		b.Amount = decimal.Zero
	}

	now := time.Now()
	e.Status = EventStatusResolved
	e.Result = winningOutcomeID
	e.ResolvedAt = &now

	return nil
}

func (m *MockStore) creditStable(userID string, amount decimal.Decimal) {
	for _, b := range m.Balances {
		if b.UserID == userID && b.Token == StableToken && b.EventID == "" {
			b.Amount = b.Amount.Add(amount)
			return
		}
	}
	id := "stable-" + userID
	m.Balances[id] = &Balance{
		ID:     id,
		UserID: userID,
		Token:  StableToken,
		Amount: amount,
	}
}

func (m *MockStore) DeactivateMapping(ctx context.Context, mappingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deactivate = append(m.Deactivate, mappingID)
	for i := range m.Mappings {
		if m.Mappings[i].Mapping.ID == mappingID {
			m.Mappings[i].Mapping.Active = false
		}
	}
	return nil
}

func (m *MockStore) Close() error { return nil }

// StableBalance returns the user's stable-token balance, zero if absent.
func (m *MockStore) StableBalance(userID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.Balances {
		if b.UserID == userID && b.Token == StableToken && b.EventID == "" {
			return b.Amount
		}
	}
	return decimal.Zero
}
