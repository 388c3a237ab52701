// Package cache provides the in-memory TTL store used for cached gateway
// reads.
//
// Entries expire lazily: freshness is only checked when a key is read and
// there is no background sweep. With the default configuration the store is
// unbounded, so memory grows with the number of distinct keys. Callers that
// poll many distinct URLs should set WithMaxEntries.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultTTL is the lifetime of a cached entry.
const DefaultTTL = 60 * time.Second

// Entry is a cached value and the time it was stored.
type Entry[V any] struct {
	Key      string
	Value    V
	StoredAt time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	maxEntries int
	now        func() time.Time
}

// WithMaxEntries caps the number of stored entries. When the cap is reached
// the entry stored longest ago is evicted. Zero or negative means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Store is a TTL-bounded map safe for concurrent use.
type Store[V any] struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest store at the front
}

// New creates a store whose entries stay fresh for ttl. A non positive ttl
// selects DefaultTTL.
func New[V any](ttl time.Duration, opts ...Option) *Store[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[V]{
		ttl:        ttl,
		maxEntries: o.maxEntries,
		now:        o.now,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the value stored under key while it is fresh. A stale entry is
// dropped and reported as absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	elem, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*Entry[V])
	if s.now().Sub(entry.StoredAt) >= s.ttl {
		s.removeElement(elem)
		return zero, false
	}
	return entry.Value, true
}

// Set stores value under key, replacing any previous entry.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.removeElement(elem)
	}
	entry := &Entry[V]{Key: key, Value: value, StoredAt: s.now()}
	s.entries[key] = s.order.PushBack(entry)

	if s.maxEntries > 0 {
		for s.order.Len() > s.maxEntries {
			s.removeElement(s.order.Front())
		}
	}
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.removeElement(elem)
	}
}

// Clear drops every entry.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

// Len returns the number of stored entries, stale ones included until they
// are read.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// TTL returns the configured entry lifetime.
func (s *Store[V]) TTL() time.Duration {
	return s.ttl
}

func (s *Store[V]) removeElement(elem *list.Element) {
	entry := s.order.Remove(elem).(*Entry[V])
	delete(s.entries, entry.Key)
}
