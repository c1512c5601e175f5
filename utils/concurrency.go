package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines with two pacing
// rules: job starts share one token bucket, and no job starts until the
// interval has passed since the most recent job finished. With a single
// worker this is a fixed pause between the end of one job and the start of
// the next, however long each job takes.
type WorkerPool struct {
	maxWorkers int
	interval   time.Duration
	limiter    *rate.Limiter
	semaphore  chan struct{}
	wg         sync.WaitGroup

	mu         sync.Mutex
	lastFinish time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and pause
// between jobs. A zero interval disables pacing.
func NewWorkerPool(maxWorkers int, interval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		interval:   interval,
		limiter:    rate.NewLimiter(limit, 1),
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job for execution in the pool. The job is skipped if ctx
// is done before it is allowed to start.
func (wp *WorkerPool) Submit(ctx context.Context, job func(ctx context.Context)) {
	wp.wg.Add(1)
	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		wp.wg.Done()
		return
	}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if err := wp.limiter.Wait(ctx); err != nil {
			return
		}
		if err := wp.cooldown(ctx); err != nil {
			return
		}
		job(ctx)

		wp.mu.Lock()
		wp.lastFinish = time.Now()
		wp.mu.Unlock()
	}()
}

// cooldown blocks until interval has passed since the last finished job.
func (wp *WorkerPool) cooldown(ctx context.Context) error {
	if wp.interval <= 0 {
		return ctx.Err()
	}
	wp.mu.Lock()
	wait := time.Until(wp.lastFinish.Add(wp.interval))
	wp.mu.Unlock()
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Size is the maximum number of jobs running at once.
func (wp *WorkerPool) Size() int {
	return wp.maxWorkers
}
