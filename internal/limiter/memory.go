package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same window and lockout rules as PG.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	window   time.Duration
	maxFails int
	blockFor time.Duration
	entries  map[string]*entry
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		now:      time.Now,
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		entries:  make(map[string]*entry),
	}
}

// Allow reports whether caller is currently allowed.
func (l *Memory) Allow(_ context.Context, caller string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[caller]
	if !ok {
		return true, 0, nil
	}
	if wait := e.blockedUntil.Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

// Success forgets caller's failures.
func (l *Memory) Success(_ context.Context, caller string) error {
	l.mu.Lock()
	delete(l.entries, caller)
	l.mu.Unlock()
	return nil
}

// Failure counts a rejected proof within the window and blocks at the threshold.
func (l *Memory) Failure(_ context.Context, caller string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[caller]
	if !ok || now.Sub(e.updatedAt) > l.window {
		e = &entry{}
		l.entries[caller] = e
	}
	e.fails++
	e.updatedAt = now
	if e.fails < l.maxFails {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(l.blockFor)
	return true, l.blockFor, nil
}
