package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
)

type Job func()

// ErrPanicked is returned by Run when the job panicked.
var ErrPanicked = errors.New("worker job panicked")

var (
	pool  *ants.Pool
	poolM sync.Mutex
	mu    sync.RWMutex
	stats = struct {
		Submitted uint64
		Completed uint64
		LastErr   string
		LastDur   time.Duration
		LastAt    time.Time
	}{}
)

// Init initializes the global worker pool with the given size. Safe to call multiple times.
func Init(size int) error {
	poolM.Lock()
	defer poolM.Unlock()
	if pool != nil && !pool.IsClosed() {
		return nil
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return err
	}
	pool = p
	return nil
}

func current() (*ants.Pool, error) {
	poolM.Lock()
	p := pool
	poolM.Unlock()
	if p == nil || p.IsClosed() {
		if err := Init(4); err != nil { // default size
			return nil, err
		}
		poolM.Lock()
		p = pool
		poolM.Unlock()
	}
	return p, nil
}

// Submit enqueues a job for asynchronous execution.
func Submit(j Job) error {
	p, err := current()
	if err != nil {
		return err
	}
	mu.Lock()
	stats.Submitted++
	mu.Unlock()
	err = p.Submit(func() {
		start := time.Now()
		defer func() {
			r := recover()
			mu.Lock()
			if r != nil {
				log.Error().Interface("panic", r).Msg("worker panic recovered")
				stats.LastErr = "panic"
			}
			stats.Completed++
			stats.LastDur = time.Since(start)
			stats.LastAt = time.Now()
			mu.Unlock()
		}()
		j()
	})
	if err != nil {
		mu.Lock()
		stats.Submitted--
		stats.LastErr = err.Error()
		mu.Unlock()
	}
	return err
}

// Run executes fn on the pool and waits for its result or ctx.
func Run(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	err := Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()
		done <- fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release waits up to timeout for running jobs, then closes the pool.
func Release(timeout time.Duration) error {
	poolM.Lock()
	p := pool
	pool = nil
	poolM.Unlock()
	if p == nil {
		return nil
	}
	return p.ReleaseTimeout(timeout)
}

// Cap returns pool capacity.
func Cap() int {
	poolM.Lock()
	defer poolM.Unlock()
	if pool == nil {
		return 0
	}
	return pool.Cap()
}

// Running returns currently running goroutines.
func Running() int {
	poolM.Lock()
	defer poolM.Unlock()
	if pool == nil {
		return 0
	}
	return pool.Running()
}

// Free returns free worker number.
func Free() int {
	poolM.Lock()
	defer poolM.Unlock()
	if pool == nil {
		return 0
	}
	return pool.Free()
}

// StatsSnapshot returns a copy of current pool statistics.
func StatsSnapshot() map[string]any {
	running := Running()
	capacity := Cap()
	free := Free()
	mu.RLock()
	defer mu.RUnlock()
	return map[string]any{
		"capacity":         capacity,
		"running":          running,
		"free":             free,
		"submitted":        stats.Submitted,
		"completed":        stats.Completed,
		"last_error":       stats.LastErr,
		"last_duration_ms": stats.LastDur.Milliseconds(),
		"last_finished_at": stats.LastAt,
	}
}
