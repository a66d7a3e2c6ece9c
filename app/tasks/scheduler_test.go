package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type mockRunner struct {
	runs    chan struct{}
	block   bool
	started chan struct{}
	panics  bool
}

func newMockRunner() *mockRunner {
	return &mockRunner{runs: make(chan struct{}, 10), started: make(chan struct{}, 10)}
}

func (r *mockRunner) RunCycle(ctx context.Context) error {
	r.started <- struct{}{}
	if r.panics {
		r.runs <- struct{}{}
		panic("boom")
	}
	if r.block {
		<-ctx.Done()
		r.runs <- struct{}{}
		return ctx.Err()
	}
	r.runs <- struct{}{}
	return nil
}

func waitRuns(t *testing.T, r *mockRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.runs:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected %d runs, got %d", n, i)
		}
	}
}

func expectNoRun(t *testing.T, r *mockRunner) {
	t.Helper()
	select {
	case <-r.runs:
		t.Fatal("Expected no additional run")
	case <-time.After(50 * time.Millisecond):
	}
}

func bangkok(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}
	return loc
}

func newTestScheduler(t *testing.T, clock *fakeClock, runner Runner) *Scheduler {
	t.Helper()
	s, err := NewScheduler(SchedulerConfig{Time: "08:00", Timezone: "Asia/Bangkok", Interval: time.Hour}, runner, clock.Now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestSchedulerDispatchesOncePerDay(t *testing.T) {
	loc := bangkok(t)
	clock := &fakeClock{now: time.Date(2026, 10, 14, 7, 59, 0, 0, loc)}
	runner := newMockRunner()
	s := newTestScheduler(t, clock, runner)

	if s.State() != StateIdle {
		t.Errorf("Expected idle before start, got %s", s.State())
	}

	s.Start()

	if s.State() != StateWaiting {
		t.Errorf("Expected waiting after start, got %s", s.State())
	}
	expectedNext := time.Date(2026, 10, 14, 8, 0, 0, 0, loc)
	if !s.NextRun().Equal(expectedNext) {
		t.Errorf("Expected next run %v, got %v", expectedNext, s.NextRun())
	}

	s.poll()
	expectNoRun(t, runner)

	clock.Set(time.Date(2026, 10, 14, 8, 0, 30, 0, loc))
	s.poll()
	waitRuns(t, runner, 1)

	tomorrow := time.Date(2026, 10, 15, 8, 0, 0, 0, loc)
	if !s.NextRun().Equal(tomorrow) {
		t.Errorf("Expected next run %v, got %v", tomorrow, s.NextRun())
	}

	clock.Set(time.Date(2026, 10, 14, 8, 1, 30, 0, loc))
	s.poll()
	clock.Set(time.Date(2026, 10, 14, 23, 59, 0, 0, loc))
	s.poll()
	expectNoRun(t, runner)

	clock.Set(time.Date(2026, 10, 15, 8, 0, 5, 0, loc))
	s.poll()
	waitRuns(t, runner, 1)
}

func TestSchedulerStartAfterTimeWaitsForTomorrow(t *testing.T) {
	loc := bangkok(t)
	clock := &fakeClock{now: time.Date(2026, 10, 14, 9, 30, 0, 0, loc)}
	runner := newMockRunner()
	s := newTestScheduler(t, clock, runner)

	s.Start()

	expectedNext := time.Date(2026, 10, 15, 8, 0, 0, 0, loc)
	if !s.NextRun().Equal(expectedNext) {
		t.Errorf("Expected next run %v, got %v", expectedNext, s.NextRun())
	}

	s.poll()
	expectNoRun(t, runner)
}

func TestSchedulerUsesConfiguredTimezone(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 14, 0, 30, 0, 0, time.UTC)}
	s := newTestScheduler(t, clock, newMockRunner())

	s.Start()

	// 08:00 in Bangkok is 01:00 UTC.
	expectedNext := time.Date(2026, 10, 14, 1, 0, 0, 0, time.UTC)
	if !s.NextRun().Equal(expectedNext) {
		t.Errorf("Expected next run %v, got %v", expectedNext, s.NextRun().UTC())
	}
}

func TestSchedulerDropsRunWhileOneIsQueued(t *testing.T) {
	loc := bangkok(t)
	clock := &fakeClock{now: time.Date(2026, 10, 14, 7, 0, 0, 0, loc)}
	runner := newMockRunner()
	runner.block = true
	s := newTestScheduler(t, clock, runner)
	s.Start()

	if err := s.Trigger(); err != nil {
		t.Fatalf("Expected first trigger to be accepted, got: %v", err)
	}
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected first run to start")
	}

	if err := s.Trigger(); err != nil {
		t.Fatalf("Expected second trigger to be queued, got: %v", err)
	}
	if err := s.Trigger(); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got: %v", err)
	}

	if s.State() != StateFiring {
		t.Errorf("Expected firing while a run is in flight, got %s", s.State())
	}
}

func TestSchedulerStopCancelsInFlightRun(t *testing.T) {
	loc := bangkok(t)
	clock := &fakeClock{now: time.Date(2026, 10, 14, 7, 0, 0, 0, loc)}
	runner := newMockRunner()
	runner.block = true

	s, err := NewScheduler(SchedulerConfig{Time: "08:00", Timezone: "Asia/Bangkok", Interval: time.Hour}, runner, clock.Now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	s.Start()

	if err := s.Trigger(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	<-runner.started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Stop to return after cancelling the run")
	}
	waitRuns(t, runner, 1)

	if s.State() != StateStopped {
		t.Errorf("Expected stopped, got %s", s.State())
	}
	if err := s.Trigger(); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped after stop, got: %v", err)
	}

	s.Stop()
}

func TestSchedulerSurvivesPanickingRun(t *testing.T) {
	loc := bangkok(t)
	clock := &fakeClock{now: time.Date(2026, 10, 14, 7, 0, 0, 0, loc)}
	runner := newMockRunner()
	runner.panics = true
	s := newTestScheduler(t, clock, runner)
	s.Start()

	if err := s.Trigger(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	waitRuns(t, runner, 1)

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateWaiting && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Trigger(); err != nil {
		t.Fatalf("Expected worker to accept runs after a panic, got: %v", err)
	}
	waitRuns(t, runner, 1)
}

func TestSchedulerTicker(t *testing.T) {
	loc := bangkok(t)
	clock := &fakeClock{now: time.Date(2026, 10, 14, 7, 59, 59, 0, loc)}
	runner := newMockRunner()

	s, err := NewScheduler(SchedulerConfig{Time: "08:00", Timezone: "Asia/Bangkok", Interval: 10 * time.Millisecond}, runner, clock.Now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer s.Stop()
	s.Start()

	clock.Set(time.Date(2026, 10, 14, 8, 0, 1, 0, loc))
	waitRuns(t, runner, 1)

	time.Sleep(50 * time.Millisecond)
	expectNoRun(t, runner)
}

func TestNewSchedulerValidation(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SchedulerConfig
		expected error
	}{
		{"unknown timezone", SchedulerConfig{Time: "08:00", Timezone: "Mars/Olympus"}, ErrInvalidTimezone},
		{"empty timezone", SchedulerConfig{Time: "08:00", Timezone: ""}, ErrInvalidTimezone},
		{"bad hour", SchedulerConfig{Time: "25:00", Timezone: "UTC"}, ErrInvalidTime},
		{"not a time", SchedulerConfig{Time: "morning", Timezone: "UTC"}, ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler(tt.cfg, newMockRunner(), nil)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got: %v", tt.expected, err)
			}
		})
	}

	s, err := NewScheduler(SchedulerConfig{Time: "06:30", Timezone: "UTC"}, newMockRunner(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if s.interval != DefaultInterval {
		t.Errorf("Expected default interval %v, got %v", DefaultInterval, s.interval)
	}
	if s.hour != 6 || s.minute != 30 {
		t.Errorf("Expected 06:30, got %02d:%02d", s.hour, s.minute)
	}
}

func TestNewTaskAssignsUniqueIDs(t *testing.T) {
	a := NewTask(TaskTypeScheduledDigest, time.Now())
	b := NewTask(TaskTypeScheduledDigest, time.Now())

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected unique non-empty ids, got '%s' and '%s'", a.ID, b.ID)
	}
	if a.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", a.GetDuration())
	}
}
