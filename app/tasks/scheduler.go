package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInterval = 60 * time.Second

	runTimeout = time.Hour
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidTime     = errors.New("invalid time of day")
	ErrQueueFull       = errors.New("a run is already queued")
	ErrStopped         = errors.New("scheduler stopped")
)

type State string

const (
	StateIdle    State = "idle"
	StateWaiting State = "waiting"
	StateFiring  State = "firing"
	StateStopped State = "stopped"
)

type SchedulerConfig struct {
	Time     string // HH:MM, local to Timezone
	Timezone string
	Interval time.Duration
}

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler fires the runner once per day at a local time of day. The poll
// loop only enqueues; a single worker executes runs, so a slow run never
// blocks polling and runs never overlap.
type Scheduler struct {
	runner   Runner
	location *time.Location
	hour     int
	minute   int
	interval time.Duration
	now      func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	stopOnce  sync.Once

	mu    sync.Mutex
	state State
	next  time.Time
}

func NewScheduler(cfg SchedulerConfig, runner Runner, now func() time.Time) (*Scheduler, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, cfg.Timezone)
	}

	at, err := time.Parse("15:04", cfg.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: expected HH:MM", ErrInvalidTime, cfg.Time)
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:    runner,
		location:  location,
		hour:      at.Hour(),
		minute:    at.Minute(),
		interval:  cfg.Interval,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
		state:     StateIdle,
	}, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.next = s.nextAfter(s.now())
	s.state = StateWaiting
	next := s.next
	s.mu.Unlock()

	slog.Info("Scheduler started", "next_run", next, "interval", s.interval)

	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.poll()
			}
		}
	}()
}

// Stop cancels the in-flight run at its next checkpoint and waits for the
// loop and worker to exit. The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
		slog.Info("Scheduler stopped")
	})
}

// Trigger queues an ad-hoc run outside the daily schedule.
func (s *Scheduler) Trigger() error {
	if s.State() == StateStopped {
		return ErrStopped
	}
	return s.enqueue(NewDigestTask(TaskTypeManualDigest, s.now(), s.runner))
}

func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// poll dispatches the due run, if any, and moves the target to the next day.
func (s *Scheduler) poll() {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Scheduler poll panicked", "panic", p)
		}
	}()

	now := s.now()

	s.mu.Lock()
	if s.state == StateStopped || s.state == StateIdle || now.Before(s.next) {
		s.mu.Unlock()
		return
	}
	scheduledFor := s.next
	s.next = s.nextAfter(now)
	s.state = StateFiring
	next := s.next
	s.mu.Unlock()

	task := NewDigestTask(TaskTypeScheduledDigest, scheduledFor, s.runner)
	if err := s.enqueue(task); err != nil {
		slog.Warn("Scheduled run dropped", "id", task.GetID(), "scheduled_for", scheduledFor, "error", err)
		s.setState(StateWaiting)
	}

	slog.Debug("Next run scheduled", "next_run", next)
}

func (s *Scheduler) enqueue(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return ErrStopped
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// nextAfter returns the first configured time of day strictly after t.
func (s *Scheduler) nextAfter(t time.Time) time.Time {
	local := t.In(s.location)
	target := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.location)
	if !target.After(local) {
		target = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.location)
	}
	return target
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		s.state = state
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.setState(StateFiring)
			s.executeTask(task)
			s.setState(StateWaiting)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Run panicked", "run_id", task.GetID(), "panic", p)
		}
	}()

	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	slog.Info("Run started", "run_id", task.GetID(), "type", string(task.GetType()), "scheduled_for", task.GetScheduledFor())

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Run failed", "run_id", task.GetID(), "type", string(task.GetType()), "duration", task.GetDuration(), "error", err)
		return
	}

	slog.Info("Run completed", "run_id", task.GetID(), "type", string(task.GetType()), "duration", task.GetDuration())
}
