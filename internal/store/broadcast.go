package store

import "sync"

// Broadcast is a publish point that delivers published values to its
// subscribers in subscription order. Late subscribers do not see earlier
// values.
//
// Every value carries a sequence number and a subscriber never sees a value
// older than one it has already been given. While a subscriber is busy
// with a value, newer values published from other goroutines are held for
// it and the newest one is delivered as soon as it returns.
type Broadcast[T any] struct {
	mu     sync.Mutex
	nextID int
	seq    uint64
	subs   []*subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)

	mu      sync.Mutex
	seen    uint64
	busy    bool
	pending *T
}

// Subscription is returned by Subscribe; Unsubscribe may be called any
// number of times.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func (b *Broadcast[T]) Subscribe(fn func(T)) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, &subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	return &Subscription{cancel: func() { b.remove(id) }}
}

func (b *Broadcast[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v under the next sequence number.
func (b *Broadcast[T]) Publish(v T) {
	b.deliver(b.next(), v)
}

// next reserves a sequence number. Owners of state call it while holding
// their own lock so that numbers follow the order of their changes.
func (b *Broadcast[T]) next() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return b.seq
}

// deliver calls subscribers outside the lock so that they may subscribe,
// unsubscribe or publish again.
func (b *Broadcast[T]) deliver(seq uint64, v T) {
	b.mu.Lock()
	snapshot := make([]*subscriber[T], len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.offer(seq, v)
	}
}

func (s *subscriber[T]) offer(seq uint64, v T) {
	s.mu.Lock()
	if seq <= s.seen {
		s.mu.Unlock()
		return
	}
	s.seen = seq
	if s.busy {
		s.pending = &v
		s.mu.Unlock()
		return
	}
	s.busy = true
	for {
		s.mu.Unlock()
		s.fn(v)
		s.mu.Lock()
		if s.pending == nil {
			s.busy = false
			s.mu.Unlock()
			return
		}
		v, s.pending = *s.pending, nil
	}
}

func (b *Broadcast[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
