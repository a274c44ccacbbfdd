package heartbeat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the scheduler's driver state.
type State int32

const (
	StateIdle State = iota
	StateTicking
)

func (s State) String() string {
	if s == StateTicking {
		return "ticking"
	}
	return "idle"
}

// Config holds scheduler configuration.
type Config struct {
	TickInterval time.Duration // driver tick period (default: 1s)
	JobTimeout   time.Duration // per-job execution budget (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		JobTimeout:   10 * time.Second,
	}
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	State    State
	Ticks    uint64
	Runs     uint64
	Failures uint64
	Timeouts uint64
	Panics   uint64
}

// Scheduler drives registered jobs on a fixed-period heartbeat. Jobs within
// one tick run sequentially in registration order; each failure is contained
// at the single-job boundary.
type Scheduler struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger

	state    atomic.Int32
	ticks    atomic.Uint64
	runs     atomic.Uint64
	failures atomic.Uint64
	timeouts atomic.Uint64
	panics   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler over a registry.
func New(cfg Config, registry *Registry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Start begins the heartbeat loop. The first tick fires immediately so jobs
// due at startup run without waiting a full period.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("heartbeat scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"job_timeout", s.cfg.JobTimeout,
		"jobs", len(s.registry.Names()),
	)
	return nil
}

// Stop shuts the scheduler down cooperatively: the in-flight job finishes
// (or times out), no new jobs start. The passed context bounds the wait.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("heartbeat scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		State:    State(s.state.Load()),
		Ticks:    s.ticks.Load(),
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Timeouts: s.timeouts.Load(),
		Panics:   s.panics.Load(),
	}
}

// run is the driver loop.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.tick(time.Now())

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick executes one heartbeat: compute due jobs, attempt each in order.
// Missed ticks are never queued.
func (s *Scheduler) tick(now time.Time) {
	s.state.Store(int32(StateTicking))
	defer s.state.Store(int32(StateIdle))
	s.ticks.Add(1)

	due := s.registry.Due(now)
	for i, job := range due {
		if s.ctx != nil && s.ctx.Err() != nil {
			// Shutting down: drop claims for jobs not yet started,
			// without recording a run.
			for _, skipped := range due[i:] {
				s.registry.release(skipped.Name())
			}
			return
		}
		s.runJob(job, now)
	}
}

// runJob attempts one job under isolation. Bookkeeping advances exactly once
// whether the run returns, fails, times out, or panics.
func (s *Scheduler) runJob(job Job, now time.Time) {
	name := job.Name()
	defer s.registry.MarkRan(name, now)
	defer func() {
		if rec := recover(); rec != nil {
			s.panics.Add(1)
			s.failures.Add(1)
			s.logger.Error("job panicked", "job", name, "panic", rec)
		}
	}()

	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	s.runs.Add(1)

	switch {
	case err == nil:
		s.logger.Debug("job complete", "job", name, "duration", time.Since(start))
	case errors.Is(err, context.Canceled) && parent.Err() != nil:
		s.logger.Debug("job canceled during shutdown", "job", name)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrJobTimeout):
		s.failures.Add(1)
		s.timeouts.Add(1)
		s.logger.Error("job timed out", "job", name, "budget", s.cfg.JobTimeout)
	default:
		s.failures.Add(1)
		s.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
	}
}
