// Package events fans ledger notifications out to subscribers without ever
// blocking the publisher: a subscriber whose buffer is full misses the event.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/payroll-vault/internal/model"
)

// DefaultBuffer is used when Subscribe is called with a non-positive size.
const DefaultBuffer = 64

// Bus is an in-process, non-blocking publish/subscribe hub.
type Bus struct {
	log     *zap.Logger
	mu      sync.RWMutex
	subs    map[uint64]chan model.Event
	next    uint64
	closed  bool
	dropped atomic.Uint64
}

// NewBus constructs an empty bus.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, subs: make(map[uint64]chan model.Event)}
}

// Publish stamps e with an ID and time if missing and offers it to every subscriber.
func (b *Bus) Publish(e model.Event) {
	if e.ID == uuid.Nil {
		if id, err := uuid.NewV4(); err == nil {
			e.ID = id
		}
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			b.log.Warn("event dropped: subscriber buffer full",
				zap.Uint64("subscriber", id),
				zap.String("kind", string(e.Kind)),
				zap.Uint64("payroll_id", e.PayrollID),
			)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once. After Close the
// channel comes back already closed.
func (b *Bus) Subscribe(buf int) (<-chan model.Event, func()) {
	if buf <= 0 {
		buf = DefaultBuffer
	}
	ch := make(chan model.Event, buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.next++
	id := b.next
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close ends every subscription so stream handlers return, and makes later
// Publish calls no-ops. It is safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.log.Debug("event bus closed")
}

// Dropped returns the number of events not delivered to slow subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
