// Package intervention converts validation results into crisis assessments
// and drives the intervention lifecycle: immediate automated response,
// escalation, and resolution.
package intervention

import (
	"context"
	"sync"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// Store indexes interventions by id, split into an active index and a
// history index. The default is in-memory; a Redis implementation provides
// durability across restarts. Both carry identical semantics: ids are
// freshly generated, so concurrent writers never contend on the same key.
type Store interface {
	// Put inserts or replaces an active intervention.
	Put(ctx context.Context, iv *contracts.CrisisIntervention) error
	// Get reads from the active index.
	Get(ctx context.Context, id string) (*contracts.CrisisIntervention, bool, error)
	// Archive moves an intervention from the active index to history.
	Archive(ctx context.Context, iv *contracts.CrisisIntervention) error
	// GetArchived reads from the history index.
	GetArchived(ctx context.Context, id string) (*contracts.CrisisIntervention, bool, error)
	// ActiveCount returns the size of the active index.
	ActiveCount(ctx context.Context) (int, error)
	// ArchivedCount returns the size of the history index.
	ArchivedCount(ctx context.Context) (int, error)
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu      sync.RWMutex
	active  map[string]*contracts.CrisisIntervention
	history map[string]*contracts.CrisisIntervention
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:  make(map[string]*contracts.CrisisIntervention),
		history: make(map[string]*contracts.CrisisIntervention),
	}
}

func (s *MemoryStore) Put(_ context.Context, iv *contracts.CrisisIntervention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[iv.ID] = iv
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*contracts.CrisisIntervention, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.active[id]
	if !ok {
		return nil, false, nil
	}
	return cloneIntervention(iv), true, nil
}

func (s *MemoryStore) Archive(_ context.Context, iv *contracts.CrisisIntervention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, iv.ID)
	s.history[iv.ID] = iv
	return nil
}

func (s *MemoryStore) GetArchived(_ context.Context, id string) (*contracts.CrisisIntervention, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.history[id]
	if !ok {
		return nil, false, nil
	}
	return cloneIntervention(iv), true, nil
}

// cloneIntervention detaches a read from the stored record so callers and
// in-flight writers never share mutable state. Matches the fresh-decode
// behaviour of the Redis store.
func cloneIntervention(iv *contracts.CrisisIntervention) *contracts.CrisisIntervention {
	out := *iv
	if iv.Actions != nil {
		out.Actions = make([]contracts.InterventionAction, len(iv.Actions))
		copy(out.Actions, iv.Actions)
	}
	if iv.Assessment.CrisisTypes != nil {
		out.Assessment.CrisisTypes = append([]contracts.CrisisType(nil), iv.Assessment.CrisisTypes...)
	}
	if iv.Assessment.RiskFactors != nil {
		out.Assessment.RiskFactors = append([]string(nil), iv.Assessment.RiskFactors...)
	}
	if iv.Assessment.ProtectiveFactors != nil {
		out.Assessment.ProtectiveFactors = append([]string(nil), iv.Assessment.ProtectiveFactors...)
	}
	if iv.ResolvedAt != nil {
		t := *iv.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

func (s *MemoryStore) ActiveCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active), nil
}

func (s *MemoryStore) ArchivedCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history), nil
}
