package control

import (
	"context"
	"sync/atomic"
)

// Completion is a single-slot notification set by an interrupt handler and
// consumed by the dispatch path.
//
// Signal never blocks and never allocates. Reset is only called by the
// dispatch path, Signal only by the handler.
type Completion struct {
	done    atomic.Bool
	wake    chan struct{}
	signals atomic.Uint64
}

// NewCompletion returns a cleared completion
func NewCompletion() *Completion {
	return &Completion{wake: make(chan struct{}, 1)}
}

// Signal marks the completion done and wakes a waiter
func (c *Completion) Signal() {
	c.done.Store(true)
	c.signals.Add(1)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Reset clears the completion and drops a pending wakeup
func (c *Completion) Reset() {
	c.done.Store(false)
	select {
	case <-c.wake:
	default:
	}
}

// Done reports whether the completion has been signalled since the last Reset
func (c *Completion) Done() bool {
	return c.done.Load()
}

// Signals returns how many times the completion was signalled in total
func (c *Completion) Signals() uint64 {
	return c.signals.Load()
}

// Wait blocks until the completion is done or ctx ends
func (c *Completion) Wait(ctx context.Context) error {
	for {
		if c.done.Load() {
			return nil
		}
		select {
		case <-c.wake:
		case <-ctx.Done():
			if c.done.Load() {
				return nil
			}
			return ctx.Err()
		}
	}
}
