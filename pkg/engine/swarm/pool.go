// Package swarm runs bounded fan-out work where every task gets its own
// deadline and a failed task never fails its siblings.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTaskPanicked is reported for a task that panicked.
var ErrTaskPanicked = errors.New("task panicked")

// Task computes the result for slot i of a fan-out.
type Task[T any] func(ctx context.Context, i int) (T, error)

// Outcome is the best-effort result of one task.
// Value holds the zero value whenever Err is set.
type Outcome[T any] struct {
	Value    T
	Err      error
	TimedOut bool
}

// Stats holds runtime statistics for the pool.
type Stats struct {
	ActiveWorkers  int
	Concurrency    int
	TasksCompleted int64
	TasksDegraded  int64
}

// Pool bounds how many tasks run at once with a fixed number of permits.
type Pool struct {
	sem     *semaphore.Weighted
	permits int
	timeout time.Duration

	active    atomic.Int64
	completed atomic.Int64
	degraded  atomic.Int64
}

// NewPool creates a pool with the given permit count and per-task timeout.
// A non-positive timeout disables the per-task deadline.
func NewPool(permits int, timeout time.Duration) *Pool {
	if permits < 1 {
		permits = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(permits)),
		permits: permits,
		timeout: timeout,
	}
}

// GetStats returns current pool stats.
func (p *Pool) GetStats() Stats {
	return Stats{
		ActiveWorkers:  int(p.active.Load()),
		Concurrency:    p.permits,
		TasksCompleted: p.completed.Load(),
		TasksDegraded:  p.degraded.Load(),
	}
}

// Map runs task for every index in [0, n) and returns outcomes indexed by
// submission position, regardless of completion order. It returns once every
// task has finished or hit its deadline.
//
// If ctx is cancelled before a task acquires a permit, that task is not
// started and its outcome carries ctx.Err().
func Map[T any](ctx context.Context, p *Pool, n int, task Task[T]) []Outcome[T] {
	out := make([]Outcome[T], n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			for j := i; j < n; j++ {
				out[j].Err = err
			}
			p.degraded.Add(int64(n - i))
			break
		}

		wg.Add(1)
		p.active.Add(1)
		go func(i int) {
			defer func() {
				p.active.Add(-1)
				p.sem.Release(1)
				wg.Done()
			}()
			out[i] = runTask(ctx, p.timeout, i, task)
			p.completed.Add(1)
			if out[i].Err != nil {
				p.degraded.Add(1)
			}
		}(i)
	}

	wg.Wait()
	return out
}

func runTask[T any](ctx context.Context, timeout time.Duration, i int, task Task[T]) (res Outcome[T]) {
	taskCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res = Outcome[T]{Err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
		}
	}()

	v, err := task(taskCtx, i)
	if err != nil {
		return Outcome[T]{
			Err:      err,
			TimedOut: errors.Is(taskCtx.Err(), context.DeadlineExceeded),
		}
	}
	return Outcome[T]{Value: v}
}
