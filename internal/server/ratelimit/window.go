package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed     bool
	Count       int
	Limit       int
	WindowStart time.Time
	ResetAt     time.Time
}

// Remaining returns how many more requests the window admits.
func (d Decision) Remaining() int {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// FixedWindow counts requests per key in fixed windows. A window opens on the
// first request for a key and lasts window; the request that pushes the count
// past limit and every one after it until the window closes are rejected.
type FixedWindow interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type bucket struct {
	start  time.Time
	window time.Duration
	count  int
}

func (b *bucket) expired(now time.Time) bool {
	return !now.Before(b.start.Add(b.window))
}

// MemoryWindow is a process-local FixedWindow. Each process keeps its own
// counters, so limits are per process unless a shared window is used.
type MemoryWindow struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// MemoryOption configures a MemoryWindow.
type MemoryOption func(*MemoryWindow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryWindow) {
		m.now = now
	}
}

// NewMemoryWindow creates a MemoryWindow. A positive cleanupInterval starts a
// goroutine that drops closed windows; call Stop to end it.
func NewMemoryWindow(cleanupInterval time.Duration, opts ...MemoryOption) *MemoryWindow {
	m := &MemoryWindow{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if cleanupInterval > 0 {
		m.cleanupTicker = time.NewTicker(cleanupInterval)
		m.cleanupStop = make(chan struct{})
		go m.cleanup()
	}
	return m
}

// Admit implements FixedWindow.
func (m *MemoryWindow) Admit(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || b.expired(now) {
		b = &bucket{start: now, window: window}
		m.buckets[key] = b
	}
	b.count++

	return Decision{
		Allowed:     b.count <= limit,
		Count:       b.count,
		Limit:       limit,
		WindowStart: b.start,
		ResetAt:     b.start.Add(b.window),
	}, nil
}

// Len returns the number of tracked keys.
func (m *MemoryWindow) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *MemoryWindow) cleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.removeExpired()
		case <-m.cleanupStop:
			return
		}
	}
}

// removeExpired drops buckets whose window has closed.
func (m *MemoryWindow) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, b := range m.buckets {
		if b.expired(now) {
			delete(m.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (m *MemoryWindow) Stop() {
	m.stopOnce.Do(func() {
		if m.cleanupTicker != nil {
			m.cleanupTicker.Stop()
		}
		if m.cleanupStop != nil {
			close(m.cleanupStop)
		}
	})
}
