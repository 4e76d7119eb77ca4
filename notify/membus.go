package notify

import (
	"sync"
	"time"
)

// MemBusConfig configures an in-memory notification bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 64).
	SubscriberBufferSize int
}

// MemBus is an in-memory Bus implementation.
type MemBus struct {
	mu         sync.RWMutex
	subs       map[Op][]*memSub // op -> subscribers
	globalSubs []*memSub        // subscribers for all ops
	bufSize    int
	closed     bool
}

// NewMemBus creates a new in-memory bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = 64
	}
	return &MemBus{
		subs:    make(map[Op][]*memSub),
		bufSize: bufSize,
	}
}

// Publish sends an event to all matching subscribers. Op-specific
// subscribers receive events matching their op, and global subscribers
// receive all events. If the bus is closed, the event is silently dropped.
func (b *MemBus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs[event.Op] {
		sub.send(event)
	}
	for _, sub := range b.globalSubs {
		sub.send(event)
	}
}

// Subscribe registers a subscriber for a specific operation.
func (b *MemBus) Subscribe(op Op) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize)
	b.subs[op] = append(b.subs[op], sub)
	return sub
}

// SubscribeAll registers a subscriber that receives every event.
func (b *MemBus) SubscribeAll() Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize)
	b.globalSubs = append(b.globalSubs, sub)
	return sub
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, sub := range b.globalSubs {
		sub.close()
	}

	return nil
}

// memSub is an in-memory subscription.
type memSub struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func newMemSub(bufSize int) *memSub {
	return &memSub{
		ch: make(chan Event, bufSize),
	}
}

// Events returns the subscription's event channel.
func (s *memSub) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and releases resources.
func (s *memSub) Close() error {
	s.close()
	return nil
}

// close performs the actual channel close, guarded against double-close.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers an event to the subscription's channel.
// If the channel is full or the subscription is closed, the event is dropped.
func (s *memSub) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- event:
	default:
		// Drop if channel full.
	}
}

// Compile-time interface checks.
var _ Bus = (*MemBus)(nil)
var _ Subscription = (*memSub)(nil)
