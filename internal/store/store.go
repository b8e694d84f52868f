// Package store holds the client-side entity caches. Every mutation goes
// through a single reducer which always re-publishes the list, so a cache
// can never change without its subscribers hearing about it.
package store

import "sync"

type op int

const (
	opReplace op = iota
	opReconcile
	opUpsert
	opPatch
	opRemove
	opEmit
)

type action[K comparable, V any] struct {
	op    op
	items []V
	item  V
	key   K
	scope func(V) bool
	patch func(V) V
}

// Store is a keyed entity cache with a broadcast channel. The published
// value is a fresh copy of the whole list in cache order.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	keyOf func(V) K
	items map[K]V
	order []K

	changes Broadcast[[]V]
}

func New[K comparable, V any](keyOf func(V) K) *Store[K, V] {
	return &Store[K, V]{
		keyOf: keyOf,
		items: make(map[K]V),
	}
}

// Replace swaps the whole cache for items.
func (s *Store[K, V]) Replace(items []V) {
	s.dispatch(action[K, V]{op: opReplace, items: items})
}

// Reconcile replaces only the records for which scope reports true:
// scoped records missing from items are dropped, items are upserted and
// take the order given. Records outside the scope are left untouched.
func (s *Store[K, V]) Reconcile(scope func(V) bool, items []V) {
	s.dispatch(action[K, V]{op: opReconcile, items: items, scope: scope})
}

// Upsert stores item under its key, appending it when new.
func (s *Store[K, V]) Upsert(item V) {
	s.dispatch(action[K, V]{op: opUpsert, item: item})
}

// Patch applies fn to the record stored under key. It still publishes
// when the key is absent.
func (s *Store[K, V]) Patch(key K, fn func(V) V) {
	s.dispatch(action[K, V]{op: opPatch, key: key, patch: fn})
}

func (s *Store[K, V]) Remove(key K) {
	s.dispatch(action[K, V]{op: opRemove, key: key})
}

// Emit re-publishes the current list.
func (s *Store[K, V]) Emit() {
	s.dispatch(action[K, V]{op: opEmit})
}

func (s *Store[K, V]) Subscribe(fn func([]V)) *Subscription {
	return s.changes.Subscribe(fn)
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store[K, V]) Snapshot() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store[K, V]) snapshotLocked() []V {
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// dispatch applies a and publishes the resulting list. The sequence number
// is taken under the store lock, so concurrent dispatches reach each
// subscriber in the order they changed the cache.
func (s *Store[K, V]) dispatch(a action[K, V]) {
	s.mu.Lock()
	s.reduce(a)
	snapshot := s.snapshotLocked()
	seq := s.changes.next()
	s.mu.Unlock()

	s.changes.deliver(seq, snapshot)
}

func (s *Store[K, V]) reduce(a action[K, V]) {
	switch a.op {
	case opReplace:
		s.items = make(map[K]V, len(a.items))
		s.order = s.order[:0:0]
		for _, item := range a.items {
			s.put(item)
		}

	case opReconcile:
		kept := s.order[:0:0]
		for _, k := range s.order {
			if a.scope(s.items[k]) {
				delete(s.items, k)
				continue
			}
			kept = append(kept, k)
		}
		s.order = kept
		for _, item := range a.items {
			s.put(item)
		}

	case opUpsert:
		s.put(a.item)

	case opPatch:
		if v, ok := s.items[a.key]; ok {
			s.items[a.key] = a.patch(v)
		}

	case opRemove:
		if _, ok := s.items[a.key]; !ok {
			return
		}
		delete(s.items, a.key)
		for i, k := range s.order {
			if k == a.key {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}

	case opEmit:
	}
}

func (s *Store[K, V]) put(item V) {
	k := s.keyOf(item)
	if _, ok := s.items[k]; !ok {
		s.order = append(s.order, k)
	}
	s.items[k] = item
}
