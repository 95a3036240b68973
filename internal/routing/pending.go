package routing

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// PendingItem is a unit waiting for a human topic decision.
type PendingItem struct {
	Unit       Unit
	EnqueuedAt time.Time
}

// PendingStore holds units awaiting approval, keyed by representative post id.
// Entries older than ttl are removed by EvictExpired; when capacity is reached
// the oldest entry makes room for a new one. Zero ttl or capacity disables
// that bound.
type PendingStore struct {
	clock    clockwork.Clock
	ttl      time.Duration
	capacity int
	metrics  *Metrics

	mu    sync.Mutex
	items map[int]PendingItem
}

// NewPendingStore creates an empty store.
func NewPendingStore(clock clockwork.Clock, ttl time.Duration, capacity int, metrics *Metrics) *PendingStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PendingStore{
		clock:    clock,
		ttl:      ttl,
		capacity: capacity,
		metrics:  metrics,
		items:    make(map[int]PendingItem),
	}
}

// Enqueue stores unit under id, replacing any previous entry with that id.
func (s *PendingStore) Enqueue(id int, unit Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists && s.capacity > 0 {
		for len(s.items) >= s.capacity {
			s.evictOldest()
		}
	}
	s.items[id] = PendingItem{Unit: unit, EnqueuedAt: s.clock.Now()}
	s.metrics.setPending(len(s.items))
}

// Resolve removes and returns the entry for id. ok is false when the id was
// never enqueued, already resolved or evicted.
func (s *PendingStore) Resolve(id int) (item PendingItem, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok = s.items[id]
	if ok {
		delete(s.items, id)
		s.metrics.setPending(len(s.items))
	}
	return item, ok
}

// Restore puts a resolved item back, keeping its original enqueue time.
// It does nothing if id was enqueued again in the meantime.
func (s *PendingStore) Restore(id int, item PendingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return
	}
	s.items[id] = item
	s.metrics.setPending(len(s.items))
}

// Discard removes id without returning it.
func (s *PendingStore) Discard(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	s.metrics.setPending(len(s.items))
}

// EvictExpired removes entries older than the TTL and returns how many were removed.
func (s *PendingStore) EvictExpired() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.ttl)
	evicted := 0
	for id, item := range s.items {
		if item.EnqueuedAt.Before(cutoff) {
			delete(s.items, id)
			evicted++
		}
	}
	s.metrics.observeEvictions(evicted)
	s.metrics.setPending(len(s.items))
	return evicted
}

// Len returns the number of pending entries.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *PendingStore) evictOldest() {
	oldestID, found := 0, false
	var oldest time.Time
	for id, item := range s.items {
		if !found || item.EnqueuedAt.Before(oldest) || (item.EnqueuedAt.Equal(oldest) && id < oldestID) {
			oldestID, oldest, found = id, item.EnqueuedAt, true
		}
	}
	if found {
		delete(s.items, oldestID)
		s.metrics.observeEvictions(1)
	}
}
