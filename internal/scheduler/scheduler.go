// Package scheduler drives scan cycles on a fixed cadence under a daily quota.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/ingestion"
	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/scan"
	"github.com/Muchai10/safeguardcrawler/internal/search"
	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

type State string

const (
	StateIdle        State = "idle"
	StateCheckingAPI State = "checking_api"
	StateScanning    State = "scanning"
	StateUploading   State = "uploading"
	StatePaused      State = "paused"
)

var allStates = []State{StateIdle, StateCheckingAPI, StateScanning, StateUploading, StatePaused}

var (
	ErrPaused        = errors.New("daily scan quota reached")
	ErrAlreadyQueued = errors.New("a scan is already queued")
)

type Scanner interface {
	RunScan(ctx context.Context, keywords []string) (*scan.Result, error)
}

type Persister interface {
	Persist(ctx context.Context, batch []models.ThreatRecord) (*ingestion.PersistResult, error)
}

type Config struct {
	Interval      time.Duration
	PauseInterval time.Duration
	DailyQuota    int
	Keywords      []string
}

type CycleSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	PostsSeen  int       `json:"posts_seen"`
	Admitted   int       `json:"admitted"`
	Uploaded   int       `json:"uploaded"`
	Degraded   bool      `json:"degraded"`
	Aborted    bool      `json:"aborted"`
	Error      string    `json:"error,omitempty"`
}

type Status struct {
	State       State         `json:"state"`
	CyclesToday int64         `json:"cycles_today"`
	DailyQuota  int           `json:"daily_quota"`
	NextRun     time.Time     `json:"next_run"`
	LastCycle   *CycleSummary `json:"last_cycle,omitempty"`
}

type Scheduler struct {
	cfg       Config
	health    search.HealthChecker
	scanner   Scanner
	persister Persister
	counter   QuotaCounter
	clock     Clock
	schedule  cron.Schedule
	trigger   chan struct{}

	mu          sync.Mutex
	state       State
	cyclesToday int64
	nextRun     time.Time
	last        *CycleSummary
}

func New(cfg Config, health search.HealthChecker, scanner Scanner, persister Persister, counter QuotaCounter) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.PauseInterval <= 0 {
		cfg.PauseInterval = time.Hour
	}
	if counter == nil {
		counter = NewMemoryCounter()
	}
	s := &Scheduler{
		cfg:       cfg,
		health:    health,
		scanner:   scanner,
		persister: persister,
		counter:   counter,
		clock:     realClock{},
		schedule:  cron.Every(cfg.Interval),
		trigger:   make(chan struct{}, 1),
		state:     StateIdle,
	}
	s.setState(StateIdle)
	return s
}

// Run blocks until ctx is cancelled. The first cycle starts immediately.
// Cancellation is only observed between cycles.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("daily_quota", s.cfg.DailyQuota),
		zap.Int("keywords", len(s.cfg.Keywords)),
	)

	next := s.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("Scheduler stopped")
			return nil
		}

		now := s.clock.Now()
		if s.quotaReached(ctx, now) {
			if s.State() != StatePaused {
				logger.Warn("Daily scan quota reached, pausing",
					zap.Int("daily_quota", s.cfg.DailyQuota),
				)
				s.setState(StatePaused)
			}
			s.setNextRun(now.Add(s.cfg.PauseInterval))
			s.wait(ctx, s.cfg.PauseInterval)
			continue
		}

		if s.State() == StatePaused {
			logger.Info("Quota reset, resuming scans")
			s.setState(StateIdle)
		}

		if d := next.Sub(now); d > 0 {
			s.setNextRun(next)
			logger.Info("Next scan scheduled", zap.String("at", next.Format("15:04")))
			if !s.wait(ctx, d) {
				continue
			}
		}

		s.runCycle(context.WithoutCancel(ctx))
		next = s.schedule.Next(s.clock.Now())
	}
}

// TriggerNow asks the loop to start a cycle without waiting for the timer.
func (s *Scheduler) TriggerNow() error {
	if s.State() == StatePaused {
		return ErrPaused
	}
	select {
	case s.trigger <- struct{}{}:
		logger.Info("Manual scan queued")
		return nil
	default:
		return ErrAlreadyQueued
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:       s.state,
		CyclesToday: s.cyclesToday,
		DailyQuota:  s.cfg.DailyQuota,
		NextRun:     s.nextRun,
	}
	if s.last != nil {
		last := *s.last
		st.LastCycle = &last
	}
	return st
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// wait returns true when the timer fired or a trigger arrived, false when ctx
// ended.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.trigger:
		return true
	case <-s.clock.After(d):
		return true
	}
}

func (s *Scheduler) quotaReached(ctx context.Context, now time.Time) bool {
	n, err := s.counter.GetDailyCycles(ctx, dayKey(now))
	if err != nil {
		logger.Warn("Failed to read cycle counter, assuming quota available", zap.Error(err))
		return false
	}

	s.mu.Lock()
	s.cyclesToday = n
	s.mu.Unlock()
	metrics.DailyCycles.Set(float64(n))

	return s.cfg.DailyQuota > 0 && n >= int64(s.cfg.DailyQuota)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := s.clock.Now()
	summary := &CycleSummary{
		ID:        uuid.NewString(),
		StartedAt: start,
	}
	log := logger.GetLogger().With(zap.String("cycle_id", summary.ID))

	if n, err := s.counter.IncrementDailyCycles(ctx, dayKey(start)); err != nil {
		log.Warn("Failed to increment cycle counter", zap.Error(err))
	} else {
		s.mu.Lock()
		s.cyclesToday = n
		s.mu.Unlock()
		metrics.DailyCycles.Set(float64(n))
	}

	defer func() {
		summary.FinishedAt = s.clock.Now()
		s.mu.Lock()
		s.last = summary
		s.mu.Unlock()
		s.setState(StateIdle)

		metrics.ScanCycles.WithLabelValues(summary.Outcome).Inc()
		metrics.CycleDuration.Observe(summary.FinishedAt.Sub(start).Seconds())
		log.Info("Scan cycle finished",
			zap.String("outcome", summary.Outcome),
			zap.Int("posts_seen", summary.PostsSeen),
			zap.Int("admitted", summary.Admitted),
			zap.Int("uploaded", summary.Uploaded),
			zap.Duration("duration", summary.FinishedAt.Sub(start)),
		)
	}()

	s.setState(StateCheckingAPI)
	if err := s.health.HealthCheck(ctx); err != nil {
		log.Error("Search API unavailable, skipping cycle", zap.Error(err))
		summary.Outcome = "api_unavailable"
		summary.Error = err.Error()
		return
	}

	s.setState(StateScanning)
	res, err := s.scanner.RunScan(ctx, s.cfg.Keywords)
	if err != nil {
		log.Error("Scan failed", zap.Error(err))
		summary.Error = err.Error()
	}
	if res == nil {
		summary.Outcome = "scan_failed"
		return
	}
	summary.PostsSeen = res.PostsSeen
	summary.Admitted = len(res.Records)
	summary.Aborted = res.Aborted

	s.setState(StateUploading)
	pres, err := s.persister.Persist(ctx, res.Records)
	if pres != nil {
		summary.Uploaded = pres.Uploaded
		summary.Degraded = pres.Degraded
	}

	switch {
	case err != nil:
		summary.Outcome = "backup_failed"
		summary.Error = err.Error()
	case pres != nil && pres.UploadErr != nil:
		summary.Outcome = "upload_failed"
		summary.Error = pres.UploadErr.Error()
	case res.Aborted:
		summary.Outcome = "aborted"
	case summary.Error != "":
		summary.Outcome = "scan_failed"
	default:
		summary.Outcome = "completed"
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	for _, st := range allStates {
		v := 0.0
		if st == state {
			v = 1
		}
		metrics.SchedulerState.WithLabelValues(string(st)).Set(v)
	}
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
