// Package gate bounds how many dependency resolutions run at once.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most a fixed number of concurrent holders and wakes
// waiters in FIFO order. The zero value admits everyone.
type Gate struct {
	sem *semaphore.Weighted
}

// New returns a Gate admitting up to limit concurrent holders. A limit
// of zero or less disables bounding entirely.
func New(limit int) *Gate {
	if limit <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire blocks until a slot is free or ctx is done, in which case it
// returns the context's error.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil || g.sem == nil {
		return ctx.Err()
	}
	return g.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by a successful Acquire.
func (g *Gate) Release() {
	if g == nil || g.sem == nil {
		return
	}
	g.sem.Release(1)
}
