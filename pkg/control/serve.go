package control

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// InterruptLine delivers the interrupts of one hardware line
type InterruptLine interface {
	// Name identifies the line in logs and errors.
	Name() string
	// Enable arms the line for the next interrupt.
	Enable() error
	// Wait blocks until the line fires or ctx ends.
	Wait(ctx context.Context) (uint32, error)
}

// Binding ties an interrupt line to the handler that services it
type Binding struct {
	Line    InterruptLine
	Handler Handler
}

// Bind pairs line with h
func Bind(line InterruptLine, h Handler) Binding {
	return Binding{Line: line, Handler: h}
}

// Serve services every binding on its own goroutine until ctx is done. It
// returns nil after a clean shutdown, or the first line error; a failing
// line stops the others.
func Serve(ctx context.Context, bindings ...Binding) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range bindings {
		if b.Line == nil || b.Handler == nil {
			continue
		}
		b := b
		g.Go(func() error {
			return serveLine(ctx, b)
		})
	}
	return g.Wait()
}

func serveLine(ctx context.Context, b Binding) error {
	if err := b.Line.Enable(); err != nil {
		return fmt.Errorf("arming %s: %w", b.Line.Name(), err)
	}
	for {
		if _, err := b.Line.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("waiting on %s: %w", b.Line.Name(), err)
		}
		b.Handler()
		if err := b.Line.Enable(); err != nil {
			return fmt.Errorf("re-arming %s: %w", b.Line.Name(), err)
		}
	}
}
