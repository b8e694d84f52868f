package store

import "sync"

// Value is a single-slot cell with a broadcast channel. Subscribers are
// not replayed the current value; call Emit after subscribing to get it.
type Value[T any] struct {
	mu  sync.RWMutex
	v   T
	set bool

	changes Broadcast[T]
}

func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	c.v, c.set = v, true
	seq := c.changes.next()
	c.mu.Unlock()

	c.changes.deliver(seq, v)
}

// Clear resets the cell to the zero value and publishes it.
func (c *Value[T]) Clear() {
	var zero T
	c.mu.Lock()
	c.v, c.set = zero, false
	seq := c.changes.next()
	c.mu.Unlock()

	c.changes.deliver(seq, zero)
}

func (c *Value[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v, c.set
}

// Emit publishes the current value, the zero value when unset.
func (c *Value[T]) Emit() {
	c.mu.Lock()
	v := c.v
	seq := c.changes.next()
	c.mu.Unlock()

	c.changes.deliver(seq, v)
}

func (c *Value[T]) Subscribe(fn func(T)) *Subscription {
	return c.changes.Subscribe(fn)
}
