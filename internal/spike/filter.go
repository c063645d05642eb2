// Package spike implements the per-token acceptance policy that guards the
// market model against corrupt ticks. A single tick far from the stored
// probability is held back; a move is admitted once it is confirmed by
// several consistent observations.
package spike

import (
	"math"
	"sync"
)

// Default policy parameters.
const (
	// DefaultThreshold is the |p - p0| above which a tick is suspect.
	DefaultThreshold = 0.25
	// DefaultConsistency is how close repeat observations must be to the
	// pending price to count as confirmation.
	DefaultConsistency = 0.05
	// DefaultMinCount is how many consistent observations admit a spike.
	DefaultMinCount = 3
)

// pending is an unconfirmed spike for one token.
type pending struct {
	price float64
	count int
}

// Filter decides, per token, whether a candidate probability is accepted.
// Safe for concurrent use.
type Filter struct {
	mu          sync.Mutex
	pending     map[string]*pending
	threshold   float64
	consistency float64
	minCount    int
}

// Config holds filter parameters; zero values fall back to the defaults.
type Config struct {
	Threshold   float64
	Consistency float64
	MinCount    int
}

// New creates a Filter.
func New(cfg Config) *Filter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Consistency <= 0 {
		cfg.Consistency = DefaultConsistency
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = DefaultMinCount
	}
	return &Filter{
		pending:     make(map[string]*pending),
		threshold:   cfg.Threshold,
		consistency: cfg.Consistency,
		minCount:    cfg.MinCount,
	}
}

// Accept reports whether the candidate probability p should be applied,
// given the currently stored probability p0 for the token.
//
// Within the threshold the tick is accepted immediately and any pending
// spike record is cleared. Beyond it, the tick starts or extends a pending
// record: observations within the consistency window of the pending price
// increment its count, anything else restarts it. Once the count reaches
// the minimum the move is accepted and the record cleared.
func (f *Filter) Accept(tokenID string, p, p0 float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if math.Abs(p-p0) <= f.threshold {
		delete(f.pending, tokenID)
		return true
	}

	rec, ok := f.pending[tokenID]
	if !ok || math.Abs(p-rec.price) > f.consistency {
		f.pending[tokenID] = &pending{price: p, count: 1}
		RejectedTotal.Inc()
		return false
	}

	rec.count++
	rec.price = p
	if rec.count >= f.minCount {
		delete(f.pending, tokenID)
		ConfirmedTotal.Inc()
		return true
	}

	RejectedTotal.Inc()
	return false
}

// Reset drops the pending record for one token.
func (f *Filter) Reset(tokenID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, tokenID)
}

// Clear drops all pending records.
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = make(map[string]*pending)
}

// PendingCount returns how many tokens currently have a pending spike.
func (f *Filter) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
