package attempts

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local Tracker. Counts are lost on restart.
type Memory struct {
	mu     sync.Mutex
	c      *gocache.Cache
	window time.Duration
}

var _ Tracker = (*Memory)(nil)

// NewMemory returns a tracker whose keys expire window after their last
// failure. A non-positive window uses DefaultWindow.
func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		c:      gocache.New(window, time.Minute),
		window: window,
	}
}

func (m *Memory) Count(ctx context.Context, key string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, ok := m.c.Get(key)
	if !ok {
		return 0, nil
	}
	n, _ := v.(int)
	return n, nil
}

func (m *Memory) TrackFailedAttempt(ctx context.Context, key string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// go-cache's IncrementInt keeps the old expiry, so the window would
	// not slide. Read-modify-write under our own lock instead.
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 1
	if v, ok := m.c.Get(key); ok {
		if prev, ok := v.(int); ok {
			n = prev + 1
		}
	}
	m.c.Set(key, n, m.window)
	return n, nil
}

func (m *Memory) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.c.Delete(key)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds for a live context.
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
