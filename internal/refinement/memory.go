package refinement

import (
	"context"
	"sync"
	"time"

	"github.com/agentoven/concierge/pkg/models"
)

// MemoryStore is a thread-safe in-memory refinement store. Entries older than
// ttl are treated as absent; a zero ttl keeps them forever.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*models.RefinementContext // key: thread ID
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory refinement store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*models.RefinementContext),
		ttl:     ttl,
		now:     nowUTC,
	}
}

func (s *MemoryStore) Kind() string { return "memory" }

// Load returns a copy of the stored context, or nil when none exists.
func (s *MemoryStore) Load(_ context.Context, threadID string) (*models.RefinementContext, error) {
	if err := validThread(threadID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rc, ok := s.threads[threadID]
	if !ok || s.expired(rc) {
		return nil, nil
	}
	return models.RefinementUpdate{}.Apply(threadID, rc, rc.UpdatedAt), nil
}

// Save merges update into the stored context.
func (s *MemoryStore) Save(_ context.Context, threadID string, update models.RefinementUpdate) (*models.RefinementContext, error) {
	if err := validThread(threadID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := s.threads[threadID]
	if prior != nil && s.expired(prior) {
		prior = nil
	}
	merged := update.Apply(threadID, prior, s.now())
	s.threads[threadID] = merged
	return models.RefinementUpdate{}.Apply(threadID, merged, merged.UpdatedAt), nil
}

// PurgeBefore drops contexts last updated before cutoff.
func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rc := range s.threads {
		if rc.UpdatedAt.Before(cutoff) {
			delete(s.threads, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) expired(rc *models.RefinementContext) bool {
	return s.ttl > 0 && s.now().Sub(rc.UpdatedAt) > s.ttl
}
