package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolPausesAfterSlowJob(t *testing.T) {
	interval := 80 * time.Millisecond
	pool := NewWorkerPool(1, interval)

	var mu sync.Mutex
	var starts, ends []time.Time

	for i := 0; i < 3; i++ {
		pool.Submit(context.Background(), func(context.Context) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			// longer than the interval, so start spacing alone would not pause
			time.Sleep(150 * time.Millisecond)
			mu.Lock()
			ends = append(ends, time.Now())
			mu.Unlock()
		})
	}
	pool.Wait()

	if len(starts) != 3 {
		t.Fatalf("expected 3 jobs to run, got %d", len(starts))
	}
	min := interval - 10*time.Millisecond
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(ends[i-1])
		if gap < min {
			t.Errorf("gap between end of job %d and start of job %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	interval := 100 * time.Millisecond
	pool := NewWorkerPool(3, interval)

	var mu sync.Mutex
	var timestamps []time.Time

	for i := 0; i < 3; i++ {
		pool.Submit(context.Background(), func(context.Context) {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		})
	}
	pool.Wait()

	if len(timestamps) != 3 {
		t.Fatalf("expected 3 jobs to run, got %d", len(timestamps))
	}
	// Allow a little scheduler slack below the nominal interval.
	min := interval - 10*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2, 0)

	var running, peak int64
	for i := 0; i < 10; i++ {
		pool.Submit(context.Background(), func(context.Context) {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds pool size 2", peak)
	}
}

func TestWorkerPoolSkipsAfterCancel(t *testing.T) {
	pool := NewWorkerPool(1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	var ran int64
	pool.Submit(ctx, func(context.Context) { atomic.AddInt64(&ran, 1) })
	pool.Wait()
	cancel()

	pool.Submit(ctx, func(context.Context) { atomic.AddInt64(&ran, 1) })
	pool.Wait()

	if ran != 1 {
		t.Errorf("expected only the job submitted before cancel to run, got %d", ran)
	}
}
