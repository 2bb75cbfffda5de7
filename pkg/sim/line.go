package sim

import (
	"context"
	"sync/atomic"
)

// Line is a simulated interrupt line. It satisfies control.InterruptLine.
type Line struct {
	name   string
	events chan struct{}
	count  atomic.Uint32
	arms   atomic.Uint64
}

// NewLine returns an idle line
func NewLine(name string) *Line {
	return &Line{name: name, events: make(chan struct{}, 64)}
}

// Name returns the line name
func (l *Line) Name() string {
	return l.name
}

// Enable arms the line
func (l *Line) Enable() error {
	l.arms.Add(1)
	return nil
}

// Arms returns how many times the line was armed
func (l *Line) Arms() uint64 {
	return l.arms.Load()
}

// Fire raises the interrupt
func (l *Line) Fire() {
	l.count.Add(1)
	select {
	case l.events <- struct{}{}:
	default:
	}
}

// Count returns how many times the line fired
func (l *Line) Count() uint32 {
	return l.count.Load()
}

// Wait blocks until the line fires or ctx ends
func (l *Line) Wait(ctx context.Context) (uint32, error) {
	select {
	case <-l.events:
		return l.count.Load(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
