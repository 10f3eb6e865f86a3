package scheduler

import (
	"context"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// QuotaCounter counts attempted cycles per local day (YYYY-MM-DD). The redis
// client satisfies it so the count survives restarts.
type QuotaCounter interface {
	IncrementDailyCycles(ctx context.Context, day string) (int64, error)
	GetDailyCycles(ctx context.Context, day string) (int64, error)
}

// MemoryCounter keeps only the current day.
type MemoryCounter struct {
	mu    sync.Mutex
	day   string
	count int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

func (m *MemoryCounter) IncrementDailyCycles(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.day != day {
		m.day = day
		m.count = 0
	}
	m.count++
	return m.count, nil
}

func (m *MemoryCounter) GetDailyCycles(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.day != day {
		return 0, nil
	}
	return m.count, nil
}
