// Package scheduler fires per-user update pipelines on a 15-minute tick.
// Trigger times are matched against a window rather than an instant so a
// late tick still catches the schedule, and an idempotency key keeps one
// window from firing twice.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"aifeed/internal/core"
	"aifeed/internal/logger"
	"aifeed/internal/pipeline"
)

// tickInterval is the scheduling resolution: a target time T triggers on the
// first tick with 0 <= tick-T < tickInterval.
const tickInterval = 15 * time.Minute

// Defaults applied when a scheduled run has no explicit podcast settings.
const (
	DefaultPresenter = "Alex"
	DefaultLanguage  = "en"
)

// ScheduleSource lists every user's scheduling preferences.
type ScheduleSource interface {
	AllScheduling(ctx context.Context) ([]core.SchedulingPreferences, error)
}

// Runner executes one user's update pipeline.
type Runner interface {
	RunUpdate(ctx context.Context, userID, presenter, language, voiceID string) *pipeline.UpdateResult
}

// Config tunes the scheduler.
type Config struct {
	// Tick overrides the 15-minute resolution. Shortening it narrows the
	// trigger window accordingly.
	Tick time.Duration
	// MaxConcurrent bounds simultaneous pipeline runs (default 3).
	MaxConcurrent int64
	// Presenter and Language default every scheduled run.
	Presenter string
	Language  string
	// Location evaluates schedule times in a fixed zone (default local).
	Location *time.Location
}

// Scheduler drives scheduled pipeline runs.
type Scheduler struct {
	source ScheduleSource
	runner Runner
	cfg    Config
	sem    *semaphore.Weighted
	now    func() time.Time

	mu    sync.Mutex
	fired map[string]time.Time // idempotency key -> window start
	wg    sync.WaitGroup
}

// New creates a scheduler.
func New(source ScheduleSource, runner Runner, cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = tickInterval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Presenter == "" {
		cfg.Presenter = DefaultPresenter
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		source: source,
		runner: runner,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		now:    time.Now,
		fired:  make(map[string]time.Time),
	}
}

// SetClock overrides the clock used for window matching. Used by tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run ticks every 15 minutes until ctx is canceled, then waits for in-flight
// pipeline runs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("Scheduler started", "interval", s.cfg.Tick.String())
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every schedule against the current window and launches the
// due pipelines. Exported so a tick can be driven directly in tests and
// one-off runs.
func (s *Scheduler) Tick(ctx context.Context) {
	schedules, err := s.source.AllScheduling(ctx)
	if err != nil {
		logger.Error("Failed to load schedules", err)
		return
	}

	now := s.now().In(s.cfg.Location)
	for _, sched := range schedules {
		if !s.due(sched, now) {
			continue
		}
		key := sched.UserID + ":" + windowStart(sched, now).Format(time.RFC3339)
		if !s.claim(key, now) {
			continue
		}
		s.launch(ctx, sched.UserID)
	}
	s.prune(now)
}

// due reports whether sched's target time falls inside [now-tick, now].
func (s *Scheduler) due(sched core.SchedulingPreferences, now time.Time) bool {
	if sched.Type == core.ScheduleWeekly && !weekdayMatches(sched.Day, now) {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), sched.Hour, sched.Minute, 0, 0, now.Location())
	elapsed := now.Sub(target)
	return elapsed >= 0 && elapsed < s.cfg.Tick
}

func windowStart(sched core.SchedulingPreferences, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), sched.Hour, sched.Minute, 0, 0, now.Location())
}

func weekdayMatches(day string, now time.Time) bool {
	return strings.EqualFold(day, now.Weekday().String())
}

// claim records the idempotency key; the second claim for the same window
// loses.
func (s *Scheduler) claim(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fired[key]; ok {
		return false
	}
	s.fired[key] = now
	return true
}

// prune drops idempotency entries older than a day so the map stays bounded.
func (s *Scheduler) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.fired {
		if now.Sub(at) > 24*time.Hour {
			delete(s.fired, key)
		}
	}
}

// launch enqueues the run and returns immediately; the worker slot is
// acquired inside the goroutine so a saturated pool never blocks the tick.
// The idempotency key is already claimed, so waiting for a slot past the
// trigger window is safe.
func (s *Scheduler) launch(ctx context.Context, userID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sem.Acquire(ctx, 1); err != nil {
			logger.Warn("Scheduler shutting down, run not launched", "user_id", userID)
			return
		}
		defer s.sem.Release(1)
		result := s.runner.RunUpdate(ctx, userID, s.cfg.Presenter, s.cfg.Language, "")
		if !result.Success {
			logger.Warn("Scheduled update failed", "user_id", userID)
		}
	}()
}

// Wait blocks until all launched runs have finished. Used by tests.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
