package heartbeat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// descriptor is the per-job bookkeeping record. lastRun moves exactly once
// per attempted execution; inFlight serializes dispatch so a job never runs
// concurrently with itself.
type descriptor struct {
	job      Job
	interval time.Duration
	lastRun  *time.Time
	inFlight bool
}

// Registry holds the authoritative set of registered jobs. Registration
// happens once at process start from the composition root; Due and MarkRan
// are driven by the scheduler afterwards.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*descriptor
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[string]*descriptor),
		logger: logger,
	}
}

// Register adds a job under its unique name. Duplicate names and
// non-positive intervals are startup-fatal.
func (r *Registry) Register(job Job) error {
	name := job.Name()
	interval := job.Interval()
	if interval <= 0 {
		return fmt.Errorf("register %q: %w", name, ErrInvalidInterval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateJobName)
	}
	r.jobs[name] = &descriptor{job: job, interval: interval}
	r.order = append(r.order, name)

	r.logger.Info("job registered", "job", name, "interval", interval)
	return nil
}

// Due returns the jobs due at now, in registration order, and claims each
// one in-flight. The claim plus MarkRan make due-check and bookkeeping
// effectively atomic per job name: double-dispatch is impossible even under
// concurrent scheduling.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []Job
	for _, name := range r.order {
		d := r.jobs[name]
		if d.inFlight || !d.dueAt(now) {
			continue
		}
		if g, ok := d.job.(Gater); ok && !g.ShouldRun(now) {
			continue
		}
		d.inFlight = true
		due = append(due, d.job)
	}
	return due
}

// MarkRan records an attempted execution at the given instant and releases
// the job's claim. Called exactly once per attempt, success or failure, so a
// failing job waits its full interval before the next try.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.jobs[name]
	if !ok {
		return
	}
	t := at
	d.lastRun = &t
	d.inFlight = false
}

// release drops a claim without recording a run. The scheduler uses it for
// jobs claimed but never started when shutdown interrupts a tick.
func (r *Registry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.jobs[name]; ok {
		d.inFlight = false
	}
}

// LastRun reports when a job last completed an attempt.
func (r *Registry) LastRun(name string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.jobs[name]
	if !ok || d.lastRun == nil {
		return time.Time{}, false
	}
	return *d.lastRun, true
}

// Names returns job names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (d *descriptor) dueAt(now time.Time) bool {
	if d.lastRun == nil {
		return true
	}
	return now.Sub(*d.lastRun) >= d.interval
}
