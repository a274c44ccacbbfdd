package heartbeat

import (
	"context"
	"errors"
	"time"
)

// Errors fatal at registration time. Everything a job's Run returns later is
// contained at the scheduler's per-job boundary and never propagates.
var (
	ErrDuplicateJobName = errors.New("duplicate job name")
	ErrInvalidInterval  = errors.New("job interval must be positive")
	ErrJobTimeout       = errors.New("job execution timed out")
)

// Job is a unit of recurring, interval-gated work.
type Job interface {
	// Name uniquely identifies the job within the registry.
	Name() string

	// Interval is the minimum gap between two run attempts. Must be positive.
	Interval() time.Duration

	// Run performs one unit of work. The context carries the per-job
	// execution budget and is canceled on shutdown. Side effects are
	// gateway writes and external reads only; an error is isolated to
	// this attempt.
	Run(ctx context.Context) error
}

// Gater adds gating on top of the default interval policy. Session-aware
// jobs implement it to refuse work while every market is closed. ShouldRun
// must be free of side effects.
type Gater interface {
	ShouldRun(now time.Time) bool
}
