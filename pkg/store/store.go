package store

import "sync"

// Store is an explicit state container: a single value updated through a
// typed entry point, with a subscription mechanism for read-only
// consumers. It replaces ambient shared state; every consumer receives
// the container by reference.
type Store[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[int]func(T)
	next  int
}

// New creates a store holding the initial value
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Get returns the current value
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the current value and notifies subscribers
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Update applies an updater function to the current value and notifies
// subscribers with the result. The updater must treat its argument as
// immutable and return a fresh value (copy-on-write).
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	s.value = fn(s.value)
	value := s.value
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, sub := range subs {
		sub(value)
	}
	return value
}

// Subscribe registers a callback invoked after every update. The
// returned function removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs copies the subscriber set so callbacks run outside the lock.
// Caller must hold s.mu.
func (s *Store[T]) snapshotSubs() []func(T) {
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}
