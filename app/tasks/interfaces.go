package tasks

import (
	"context"
	"time"
)

// Runner executes one ingest and delivery cycle. Implemented by the pipeline.
type Runner interface {
	RunCycle(ctx context.Context) error
}

// TaskSchedulerInterface is what the application and the HTTP surface use
// to control and inspect the daily scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Trigger() error
	NextRun() time.Time
	State() State
}
