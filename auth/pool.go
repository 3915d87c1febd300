package auth

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool runs CPU bound work on at most size goroutines at a time.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a pool of size workers, or runtime.NumCPU() when size <= 0.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		sem: semaphore.NewWeighted(int64(size)),
	}
}

// Do waits for a free worker, runs fn on it and waits for the result.
// If ctx is done first, Do returns ctx.Err() and fn keeps its worker until it returns.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
