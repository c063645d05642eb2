// Package mappings loads active market↔token mappings from the store and
// keeps a token-indexed snapshot per process. The refresh loop signals the
// ingestion side whenever the subscribable token set changes.
package mappings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oddsync/odds-engine/internal/storage"
	"go.uber.org/zap"
)

// Index is one immutable snapshot of the active mappings, keyed by venue
// token id. Snapshots are swapped whole on refresh; entries are shared, so
// the hot path's in-place probability updates survive until the next load.
type Index struct {
	byToken map[string]*storage.ActiveMapping
	entries []*storage.ActiveMapping
	tokens  []string // sorted, deduplicated
}

// Lookup returns the mapping a token belongs to.
func (ix *Index) Lookup(tokenID string) (*storage.ActiveMapping, bool) {
	am, ok := ix.byToken[tokenID]
	return am, ok
}

// Tokens returns the sorted deduplicated token set.
func (ix *Index) Tokens() []string {
	return ix.tokens
}

// Entries returns all active mappings in the snapshot.
func (ix *Index) Entries() []*storage.ActiveMapping {
	return ix.entries
}

// Service periodically reloads the mapping index.
type Service struct {
	store    storage.Store
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	current *Index

	resubCh chan []string
}

// Config holds mapping service configuration.
type Config struct {
	Store           storage.Store
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

// New creates a mapping service.
func New(cfg Config) *Service {
	return &Service{
		store:    cfg.Store,
		interval: cfg.RefreshInterval,
		logger:   cfg.Logger,
		current:  &Index{byToken: map[string]*storage.ActiveMapping{}},
		resubCh:  make(chan []string, 1),
	}
}

// Load fetches active mappings and swaps in a fresh index. It returns the
// deduplicated token set of the new snapshot.
func (s *Service) Load(ctx context.Context) ([]string, error) {
	mappings, err := s.store.ListActiveMappings(ctx)
	if err != nil {
		LoadFailuresTotal.Inc()
		return nil, err
	}

	ix := buildIndex(mappings)

	s.mu.Lock()
	s.current = ix
	s.mu.Unlock()

	ActiveMappings.Set(float64(len(ix.entries)))
	TokenSetSize.Set(float64(len(ix.tokens)))

	return ix.tokens, nil
}

// Current returns the latest index snapshot.
func (s *Service) Current() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ResubscribeChan emits the new token set whenever a refresh changes it.
// Only the latest unconsumed set is kept.
func (s *Service) ResubscribeChan() <-chan []string {
	return s.resubCh
}

// Run reloads the index on a fixed interval until ctx is done. The first
// load happens immediately; its token set is always signalled so the feed
// gets an initial subscription.
func (s *Service) Run(ctx context.Context) error {
	tokens, err := s.Load(ctx)
	if err != nil {
		s.logger.Error("initial-mapping-load-failed", zap.Error(err))
	} else {
		s.signal(tokens)
	}
	prev := tokens

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tokens, err := s.Load(ctx)
			if err != nil {
				s.logger.Error("mapping-refresh-failed", zap.Error(err))
				continue
			}
			if !equalTokenSets(prev, tokens) {
				s.logger.Info("token-set-changed",
					zap.Int("previous", len(prev)),
					zap.Int("current", len(tokens)))
				s.signal(tokens)
				prev = tokens
			}
		}
	}
}

// signal publishes the token set, replacing any unconsumed one.
func (s *Service) signal(tokens []string) {
	for {
		select {
		case s.resubCh <- tokens:
			return
		default:
			select {
			case <-s.resubCh:
			default:
			}
		}
	}
}

func buildIndex(mappings []storage.ActiveMapping) *Index {
	ix := &Index{byToken: make(map[string]*storage.ActiveMapping)}
	seen := make(map[string]struct{})

	for i := range mappings {
		am := &mappings[i]
		ix.entries = append(ix.entries, am)

		for _, tokenID := range mappingTokens(am) {
			if tokenID == "" {
				continue
			}
			ix.byToken[tokenID] = am
			if _, dup := seen[tokenID]; !dup {
				seen[tokenID] = struct{}{}
				ix.tokens = append(ix.tokens, tokenID)
			}
		}
	}

	sort.Strings(ix.tokens)
	return ix
}

// mappingTokens enumerates every venue token a mapping can receive ticks
// for: the legacy yes/no pair, the outcomes' stored token ids, and the
// general outcome-token list.
func mappingTokens(am *storage.ActiveMapping) []string {
	tokens := []string{am.Mapping.YesTokenID, am.Mapping.NoTokenID}
	for i := range am.Outcomes {
		tokens = append(tokens, am.Outcomes[i].ExternalTokenID)
	}
	for _, ot := range am.Mapping.OutcomeTokens {
		tokens = append(tokens, ot.ExternalTokenID)
	}
	return tokens
}

func equalTokenSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
