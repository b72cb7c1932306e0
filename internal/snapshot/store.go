// Package snapshot provides a keyed store whose every mutation bumps a version,
// letting readers detect change by comparing a single number.
package snapshot

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/OliveiraNt/kviz/internal/domain"
)

// state is immutable once published.
type state[V any] struct {
	version uint64
	items   map[string]V
	values  []V
	changed chan struct{}
}

// Store is a versioned map safe for one writer and any number of readers.
// Readers never take the write lock.
type Store[V any] struct {
	mu  sync.Mutex
	cur atomic.Pointer[state[V]]
}

// New creates an empty store at version 0.
func New[V any]() *Store[V] {
	s := &Store[V]{}
	s.cur.Store(&state[V]{
		items:   map[string]V{},
		values:  []V{},
		changed: make(chan struct{}),
	})
	return s
}

// Put inserts or replaces key and bumps the version once.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	items := make(map[string]V, len(old.items)+1)
	for k, v := range old.items {
		items[k] = v
	}
	items[key] = value
	s.publish(old, items)
}

// Remove deletes key and bumps the version. It reports false, leaving the
// version untouched, when key is absent.
func (s *Store[V]) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	if _, ok := old.items[key]; !ok {
		return false
	}
	items := make(map[string]V, len(old.items))
	for k, v := range old.items {
		if k != key {
			items[k] = v
		}
	}
	s.publish(old, items)
	return true
}

// publish must be called with mu held.
func (s *Store[V]) publish(old *state[V], items map[string]V) {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]V, 0, len(keys))
	for _, k := range keys {
		values = append(values, items[k])
	}
	s.cur.Store(&state[V]{
		version: old.version + 1,
		items:   items,
		values:  values,
		changed: make(chan struct{}),
	})
	close(old.changed)
}

// Read returns the current version together with its values, ordered by key.
// The returned slice must not be modified.
func (s *Store[V]) Read() domain.Snapshot[V] {
	st := s.cur.Load()
	return domain.Snapshot[V]{Version: st.version, Values: st.values}
}

// Since returns the current snapshot unless the caller already holds it.
// A version of 0 is always considered stale.
func (s *Store[V]) Since(version uint64) (domain.Snapshot[V], bool) {
	st := s.cur.Load()
	if version != 0 && version >= st.version {
		return domain.Snapshot[V]{}, false
	}
	return domain.Snapshot[V]{Version: st.version, Values: st.values}, true
}

// Get returns the value stored under key.
func (s *Store[V]) Get(key string) (V, bool) {
	v, ok := s.cur.Load().items[key]
	return v, ok
}

// Keys returns the current key set.
func (s *Store[V]) Keys() map[string]struct{} {
	items := s.cur.Load().items
	out := make(map[string]struct{}, len(items))
	for k := range items {
		out[k] = struct{}{}
	}
	return out
}

// Version returns the current version.
func (s *Store[V]) Version() uint64 {
	return s.cur.Load().version
}

// Changed returns a channel closed on the next mutation after the call.
func (s *Store[V]) Changed() <-chan struct{} {
	return s.cur.Load().changed
}
