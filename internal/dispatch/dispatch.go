// Package dispatch submits tenant tasks to a worker pool, bounds their
// concurrency, enforces soft/hard per-tenant deadlines, and carries
// best-effort progress events back to callers. It is the in-process
// reference implementation of the task-queue transport the spec treats
// as an external collaborator.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Progress is one best-effort progress event emitted by a tenant task.
type Progress struct {
	TenantID        string
	ScriptsComplete int
	TotalScripts    int
}

// Task is one tenant's unit of work. ctx carries the soft/hard deadline
// already applied by the Dispatcher; the task itself decides how to
// react to ctx.Err() (see the Tenant Worker's timeout handling).
type Task func(ctx context.Context) error

// Dispatcher runs tenant Tasks either in parallel (bounded concurrency,
// no ordering) or sequentially (task k+1 starts only after task k
// returns), applying the configured soft/hard deadlines to every task's
// context.
type Dispatcher struct {
	maxConcurrency int
	softTimeout    time.Duration
	hardTimeout    time.Duration
	progress       chan Progress
}

// New builds a Dispatcher. maxConcurrency <= 0 means unbounded (limited
// only by errgroup.SetLimit's documented -1 sentinel).
func New(maxConcurrency int, softTimeout, hardTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		maxConcurrency: maxConcurrency,
		softTimeout:    softTimeout,
		hardTimeout:    hardTimeout,
		progress:       make(chan Progress, 256),
	}
}

// Progress returns the channel tasks' progress events are delivered on.
// Callers that do not drain it still see tasks complete: emission never
// blocks a task (see Emit).
func (d *Dispatcher) Progress() <-chan Progress { return d.progress }

// Emit delivers a progress event best-effort: a full channel drops the
// event rather than blocking the caller, matching the spec's "failure
// to emit MUST NOT fail the tenant" rule.
func (d *Dispatcher) Emit(p Progress) {
	select {
	case d.progress <- p:
	default:
	}
}

// withDeadlines wraps ctx with the dispatcher's soft deadline; the hard
// deadline is applied as an outer context so a task that ignores the
// soft signal is still force-cancelled.
func (d *Dispatcher) withDeadlines(ctx context.Context) (context.Context, context.CancelFunc) {
	hardCtx, hardCancel := context.WithTimeout(ctx, d.hardTimeout)
	softCtx, softCancel := context.WithTimeout(hardCtx, d.softTimeout)
	return softCtx, func() {
		softCancel()
		hardCancel()
	}
}

// RunParallel submits every task as a group member with bounded
// concurrency and waits for all to complete, regardless of individual
// outcome; it never returns early on a single task's error, so the
// finalizer step (§4.5-6) always sees every tenant's flushed result.
func (d *Dispatcher) RunParallel(ctx context.Context, tasks []Task) {
	g := &errgroup.Group{}
	if d.maxConcurrency > 0 {
		g.SetLimit(d.maxConcurrency)
	}
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			taskCtx, cancel := d.withDeadlines(ctx)
			defer cancel()
			_ = task(taskCtx) // per-tenant failures are captured by the worker, not here
			return nil
		})
	}
	_ = g.Wait()
}

// RunSequential runs each task in order, starting task k+1 only after
// task k returns, so a worker never observes a sibling tenant's result
// concurrently.
func (d *Dispatcher) RunSequential(ctx context.Context, tasks []Task) {
	for _, task := range tasks {
		taskCtx, cancel := d.withDeadlines(ctx)
		_ = task(taskCtx)
		cancel()
	}
}
