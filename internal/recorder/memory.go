package recorder

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"SignalSentinel/internal/model"
)

type snapshot struct {
	bySymbol map[string][]model.CorrelationEntry
}

// MemoryStore keeps everything in process. The correlation snapshot is
// swapped with a single pointer store.
type MemoryStore struct {
	correlations atomic.Pointer[snapshot]

	mu        sync.RWMutex
	decisions map[string]DecisionRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{decisions: make(map[string]DecisionRecord)}
	s.correlations.Store(&snapshot{bySymbol: map[string][]model.CorrelationEntry{}})
	return s
}

func (s *MemoryStore) ReplaceAll(_ context.Context, entries []model.CorrelationEntry) error {
	next := &snapshot{bySymbol: make(map[string][]model.CorrelationEntry)}
	for _, e := range entries {
		e.SymbolA, e.SymbolB = model.CanonicalPair(e.SymbolA, e.SymbolB)
		next.bySymbol[e.SymbolA] = append(next.bySymbol[e.SymbolA], e)
		next.bySymbol[e.SymbolB] = append(next.bySymbol[e.SymbolB], e)
	}
	for _, list := range next.bySymbol {
		sortEntries(list)
	}
	s.correlations.Store(next)
	return nil
}

func (s *MemoryStore) FindBySymbol(_ context.Context, symbol string) ([]model.CorrelationEntry, error) {
	list := s.correlations.Load().bySymbol[symbol]
	return append([]model.CorrelationEntry(nil), list...), nil
}

func (s *MemoryStore) RecordDecision(_ context.Context, rec *DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[rec.Symbol] = *rec
	return nil
}

func (s *MemoryStore) LatestDecision(_ context.Context, symbol string) (*DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.decisions[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortEntries(list []model.CorrelationEntry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].SymbolA != list[j].SymbolA {
			return list[i].SymbolA < list[j].SymbolA
		}
		return list[i].SymbolB < list[j].SymbolB
	})
}
