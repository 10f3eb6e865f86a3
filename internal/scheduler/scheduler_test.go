package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Muchai10/safeguardcrawler/internal/ingestion"
	"github.com/Muchai10/safeguardcrawler/internal/scan"
	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
)

// fakeClock jumps forward by d whenever After is called, so Run never blocks.
type fakeClock struct {
	now         time.Time
	sleeps      []time.Duration
	cancel      context.CancelFunc
	stopOnPause bool
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.sleeps = append(c.sleeps, d)
	if len(c.sleeps) > 100 || (c.stopOnPause && d == time.Hour) {
		c.cancel()
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type fakeHealth struct {
	err   error
	calls int
}

func (f *fakeHealth) HealthCheck(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeScanner struct {
	clock   *fakeClock
	startAt []time.Time
	stopAt  int
	cancel  context.CancelFunc
}

func (f *fakeScanner) RunScan(ctx context.Context, keywords []string) (*scan.Result, error) {
	if ctx.Err() != nil {
		return nil, errors.New("cycle context must not be cancelled")
	}
	f.startAt = append(f.startAt, f.clock.Now())
	if len(f.startAt) == f.stopAt {
		f.cancel()
	}
	return &scan.Result{
		PostsSeen: 3,
		Records:   []models.ThreatRecord{{PostURL: "u1", ThreatLevel: 65}},
	}, nil
}

type fakePersister struct {
	calls int
}

func (f *fakePersister) Persist(ctx context.Context, batch []models.ThreatRecord) (*ingestion.PersistResult, error) {
	f.calls++
	return &ingestion.PersistResult{Records: len(batch), Degraded: true}, nil
}

func newTestScheduler(quota int, health *fakeHealth, stopAt int) (*Scheduler, *fakeClock, *fakeScanner, *fakePersister, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{now: time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC), cancel: cancel}
	scanner := &fakeScanner{clock: clock, stopAt: stopAt, cancel: cancel}
	persister := &fakePersister{}

	s := New(Config{
		Interval:      15 * time.Minute,
		PauseInterval: time.Hour,
		DailyQuota:    quota,
		Keywords:      []string{"kill you"},
	}, health, scanner, persister, NewMemoryCounter())
	s.clock = clock
	return s, clock, scanner, persister, ctx
}

func TestQuotaPausesUntilDayRollover(t *testing.T) {
	s, clock, scanner, persister, ctx := newTestScheduler(2, &fakeHealth{}, 3)

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(scanner.startAt) != 3 {
		t.Fatalf("cycles=%d want 3", len(scanner.startAt))
	}
	want := []time.Time{
		time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 22, 15, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 0, 15, 0, 0, time.UTC),
	}
	for i, w := range want {
		if !scanner.startAt[i].Equal(w) {
			t.Fatalf("cycle %d at %v want %v", i, scanner.startAt[i], w)
		}
	}

	pauses := 0
	for _, d := range clock.sleeps {
		if d == time.Hour {
			pauses++
		}
	}
	if pauses != 2 {
		t.Fatalf("pause sleeps=%d want 2 (sleeps=%v)", pauses, clock.sleeps)
	}
	if persister.calls != 3 {
		t.Fatalf("persist calls=%d want 3", persister.calls)
	}

	st := s.Status()
	if st.CyclesToday != 1 || st.State != StateIdle {
		t.Fatalf("status=%+v", st)
	}
	if st.LastCycle == nil || st.LastCycle.Outcome != "completed" || st.LastCycle.Admitted != 1 {
		t.Fatalf("last cycle=%+v", st.LastCycle)
	}
}

func TestUnhealthyAPISkipsScanAndUpload(t *testing.T) {
	health := &fakeHealth{err: errors.New("search capability not configured")}
	s, clock, scanner, persister, ctx := newTestScheduler(3, health, 0)
	clock.stopOnPause = true

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(scanner.startAt) != 0 || persister.calls != 0 {
		t.Fatalf("scan=%d persist=%d, want none", len(scanner.startAt), persister.calls)
	}
	// Failed pre-flight checks still count toward the quota.
	if health.calls != 3 {
		t.Fatalf("health calls=%d want 3", health.calls)
	}
	st := s.Status()
	if st.State != StatePaused || st.CyclesToday != 3 {
		t.Fatalf("status=%+v", st)
	}
	if st.LastCycle == nil || st.LastCycle.Outcome != "api_unavailable" {
		t.Fatalf("last cycle=%+v", st.LastCycle)
	}
}

func TestTriggerNow(t *testing.T) {
	s, _, _, _, _ := newTestScheduler(2, &fakeHealth{}, 0)

	if err := s.TriggerNow(); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := s.TriggerNow(); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("second trigger err=%v want ErrAlreadyQueued", err)
	}

	<-s.trigger
	s.setState(StatePaused)
	if err := s.TriggerNow(); !errors.Is(err, ErrPaused) {
		t.Fatalf("paused trigger err=%v want ErrPaused", err)
	}
}

func TestMemoryCounterResetsOnNewDay(t *testing.T) {
	m := NewMemoryCounter()
	ctx := context.Background()
	m.IncrementDailyCycles(ctx, "2024-05-01")
	m.IncrementDailyCycles(ctx, "2024-05-01")

	if n, _ := m.GetDailyCycles(ctx, "2024-05-01"); n != 2 {
		t.Fatalf("count=%d want 2", n)
	}
	if n, _ := m.GetDailyCycles(ctx, "2024-05-02"); n != 0 {
		t.Fatalf("count=%d want 0 on a new day", n)
	}
	if n, _ := m.IncrementDailyCycles(ctx, "2024-05-02"); n != 1 {
		t.Fatalf("count=%d want 1", n)
	}
}
