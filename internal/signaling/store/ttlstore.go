// Package store provides a generic in-memory store with TTL support, used to
// retain ended sessions long enough to absorb peer retransmissions.
package store

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// TTLStore is a generic in-memory store whose entries expire after a
// per-entry TTL. A background loop sweeps expired entries and invokes the
// optional eviction callback.
type TTLStore[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]*entry[V]
	stopCh  chan struct{}
	onEvict func(key K, value V)
}

// NewTTLStore creates a store sweeping expired entries every interval. A
// non-positive interval disables the sweep, which suits stores whose entries
// never carry a TTL. The eviction callback may be nil; it is called outside
// the store lock only for entries removed by the sweep, not by Delete.
func NewTTLStore[K comparable, V any](interval time.Duration, onEvict func(key K, value V)) *TTLStore[K, V] {
	s := &TTLStore[K, V]{
		items:   make(map[K]*entry[V]),
		stopCh:  make(chan struct{}),
		onEvict: onEvict,
	}
	if interval > 0 {
		go s.sweepLoop(interval)
	}
	return s
}

// Set stores a value that expires after ttl. A zero ttl means no expiry.
func (s *TTLStore[K, V]) Set(key K, value V, ttl time.Duration) {
	e := &entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = e
}

// Get returns the value for key if present and not expired.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok || e.expired() {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether key is present and not expired.
func (s *TTLStore[K, V]) Has(key K) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key, reporting whether it was present.
func (s *TTLStore[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// Range calls fn for each non-expired entry until fn returns false. The
// store lock is not held during the calls.
func (s *TTLStore[K, V]) Range(fn func(key K, value V) bool) {
	type pair struct {
		key   K
		value V
	}
	s.mu.RLock()
	snapshot := make([]pair, 0, len(s.items))
	for k, e := range s.items {
		if !e.expired() {
			snapshot = append(snapshot, pair{key: k, value: e.value})
		}
	}
	s.mu.RUnlock()

	for _, p := range snapshot {
		if !fn(p.key, p.value) {
			return
		}
	}
}

// Len returns the number of non-expired entries.
func (s *TTLStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.items {
		if !e.expired() {
			n++
		}
	}
	return n
}

// Close stops the sweep loop. Entries remain readable until they expire.
func (s *TTLStore[K, V]) Close() {
	close(s.stopCh)
}

func (s *TTLStore[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *TTLStore[K, V]) sweep() {
	type evicted struct {
		key   K
		value V
	}
	var gone []evicted

	s.mu.Lock()
	for k, e := range s.items {
		if e.expired() {
			gone = append(gone, evicted{key: k, value: e.value})
			delete(s.items, k)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, g := range gone {
			s.onEvict(g.key, g.value)
		}
	}
}
