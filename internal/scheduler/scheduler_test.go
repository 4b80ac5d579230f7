package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/pipeline"
)

type fakeSource struct {
	schedules []core.SchedulingPreferences
}

func (f *fakeSource) AllScheduling(ctx context.Context) ([]core.SchedulingPreferences, error) {
	return f.schedules, nil
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
}

func (f *fakeRunner) RunUpdate(ctx context.Context, userID, presenter, language, voiceID string) *pipeline.UpdateResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, userID+"/"+presenter+"/"+language)
	return &pipeline.UpdateResult{UserID: userID, Success: true}
}

func (f *fakeRunner) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func at(hour, minute int) time.Time {
	// 2026-03-09 is a Monday.
	return time.Date(2026, 3, 9, hour, minute, 0, 0, time.UTC)
}

func newScheduler(source *fakeSource, runner *fakeRunner, now time.Time) *Scheduler {
	s := New(source, runner, Config{Location: time.UTC})
	s.SetClock(func() time.Time { return now })
	return s
}

func TestTickTriggersInsideWindow(t *testing.T) {
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-1", Type: core.ScheduleDaily, Hour: 9, Minute: 0},
	}}
	runner := &fakeRunner{}

	s := newScheduler(source, runner, at(9, 5))
	s.Tick(context.Background())
	s.Wait()

	runs := runner.list()
	if len(runs) != 1 {
		t.Fatalf("runs = %v, want 1", runs)
	}
	if runs[0] != "user-1/Alex/en" {
		t.Errorf("run = %q, want defaults applied", runs[0])
	}
}

func TestTickOutsideWindowDoesNotTrigger(t *testing.T) {
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-1", Type: core.ScheduleDaily, Hour: 9, Minute: 0},
	}}
	runner := &fakeRunner{}

	for _, now := range []time.Time{at(8, 59), at(9, 15), at(10, 0)} {
		s := newScheduler(source, runner, now)
		s.Tick(context.Background())
		s.Wait()
	}

	if runs := runner.list(); len(runs) != 0 {
		t.Errorf("runs = %v, want none", runs)
	}
}

func TestWeeklyRequiresMatchingDay(t *testing.T) {
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-1", Type: core.ScheduleWeekly, Hour: 9, Minute: 0, Day: "tuesday"},
	}}
	runner := &fakeRunner{}

	s := newScheduler(source, runner, at(9, 5)) // Monday
	s.Tick(context.Background())
	s.Wait()
	if runs := runner.list(); len(runs) != 0 {
		t.Errorf("runs on wrong weekday = %v", runs)
	}

	source.schedules[0].Day = "monday"
	s2 := newScheduler(source, runner, at(9, 5))
	s2.Tick(context.Background())
	s2.Wait()
	if runs := runner.list(); len(runs) != 1 {
		t.Errorf("runs = %v, want 1", runs)
	}
}

func TestWindowFiresOnce(t *testing.T) {
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-1", Type: core.ScheduleDaily, Hour: 9, Minute: 0},
	}}
	runner := &fakeRunner{}

	s := New(source, runner, Config{Location: time.UTC})

	// Two ticks land inside the same window: a normal one and a late one.
	for _, now := range []time.Time{at(9, 5), at(9, 14)} {
		tick := now
		s.SetClock(func() time.Time { return tick })
		s.Tick(context.Background())
	}
	s.Wait()

	if runs := runner.list(); len(runs) != 1 {
		t.Errorf("runs = %v, want exactly 1", runs)
	}

	// The next day's window is a fresh key.
	next := at(9, 5).Add(24 * time.Hour)
	s.SetClock(func() time.Time { return next })
	s.Tick(context.Background())
	s.Wait()
	if runs := runner.list(); len(runs) != 2 {
		t.Errorf("runs = %v, want 2 after next-day window", runs)
	}
}

type blockingRunner struct {
	mu      sync.Mutex
	runs    []string
	release chan struct{}
}

func (f *blockingRunner) RunUpdate(ctx context.Context, userID, presenter, language, voiceID string) *pipeline.UpdateResult {
	<-f.release
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, userID)
	return &pipeline.UpdateResult{UserID: userID, Success: true}
}

func (f *blockingRunner) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func TestTickDoesNotBlockOnSaturatedPool(t *testing.T) {
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-1", Type: core.ScheduleDaily, Hour: 9, Minute: 0},
		{UserID: "user-2", Type: core.ScheduleDaily, Hour: 9, Minute: 0},
	}}
	runner := &blockingRunner{release: make(chan struct{})}

	s := New(source, runner, Config{MaxConcurrent: 1, Location: time.UTC})
	s.SetClock(func() time.Time { return at(9, 5) })

	// With one worker slot and every run blocked, the tick must still
	// enqueue both users and return.
	done := make(chan struct{})
	go func() {
		s.Tick(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tick blocked on a saturated worker pool")
	}

	close(runner.release)
	s.Wait()
	if runs := runner.list(); len(runs) != 2 {
		t.Errorf("runs = %v, want both enqueued users to finish", runs)
	}
}

func TestTickUsesConfiguredTimezone(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*60*60)
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-1", Type: core.ScheduleDaily, Hour: 9, Minute: 0},
	}}
	runner := &fakeRunner{}

	// 9:05 UTC is 4:05 in the configured zone: no trigger.
	s := New(source, runner, Config{Location: zone})
	s.SetClock(func() time.Time { return at(9, 5) })
	s.Tick(context.Background())
	s.Wait()
	if runs := runner.list(); len(runs) != 0 {
		t.Errorf("runs = %v, want none before the local window", runs)
	}

	// 14:05 UTC is 9:05 in the configured zone: inside the window.
	s.SetClock(func() time.Time { return at(14, 5) })
	s.Tick(context.Background())
	s.Wait()
	if runs := runner.list(); len(runs) != 1 {
		t.Errorf("runs = %v, want 1 inside the local window", runs)
	}
}

func TestConfigOverridesDefaults(t *testing.T) {
	source := &fakeSource{schedules: []core.SchedulingPreferences{
		{UserID: "user-2", Type: core.ScheduleDaily, Hour: 7, Minute: 30},
	}}
	runner := &fakeRunner{}

	s := New(source, runner, Config{Presenter: "Nadia", Language: "de", Location: time.UTC})
	s.SetClock(func() time.Time { return at(7, 30) })
	s.Tick(context.Background())
	s.Wait()

	runs := runner.list()
	if len(runs) != 1 || runs[0] != "user-2/Nadia/de" {
		t.Errorf("runs = %v", runs)
	}
}
