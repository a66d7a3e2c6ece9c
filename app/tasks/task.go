package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeScheduledDigest TaskType = "scheduled_digest"
	TaskTypeManualDigest    TaskType = "manual_digest"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetScheduledFor() time.Time
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID           string
	Type         TaskType
	ScheduledFor time.Time
	StartedAt    *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetScheduledFor() time.Time {
	return t.ScheduledFor
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, scheduledFor time.Time) Task {
	return Task{
		ID:           uuid.NewString(),
		Type:         taskType,
		ScheduledFor: scheduledFor,
	}
}

// DigestTask runs one full pipeline cycle.
type DigestTask struct {
	Task
	runner Runner
}

func NewDigestTask(taskType TaskType, scheduledFor time.Time, runner Runner) *DigestTask {
	return &DigestTask{
		Task:   NewTask(taskType, scheduledFor),
		runner: runner,
	}
}

func (t *DigestTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return t.runner.RunCycle(ctx)
}
