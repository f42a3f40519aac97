package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTicketStore implements TicketStore in process memory. Used for
// single-node deployments without Redis and for tests. A single mutex makes
// the whole admission sequence atomic.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string][]ticket
}

type ticket struct {
	token     string
	expiresAt time.Time
}

var _ TicketStore = (*MemoryTicketStore)(nil)

// NewMemoryTicketStore creates an empty in-process store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string][]ticket)}
}

// Admit garbage-collects expired tickets for key, counts the survivors, and
// inserts a new ticket only when the count is under max.
func (s *MemoryTicketStore) Admit(_ context.Context, key string, now time.Time, window time.Duration, max int) (Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.tickets[key][:0:0]
	for _, t := range s.tickets[key] {
		if t.expiresAt.After(now) {
			live = append(live, t)
		}
	}

	if len(live) >= max {
		s.tickets[key] = live
		return Admission{Allowed: false, Live: len(live)}, nil
	}

	count := len(live)
	live = append(live, ticket{token: uuid.NewString(), expiresAt: now.Add(window)})
	s.tickets[key] = live
	return Admission{Allowed: true, Live: count}, nil
}
