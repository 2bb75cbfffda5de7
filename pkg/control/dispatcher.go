package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// DefaultTimeout bounds how long a command may wait for its completion
// interrupt before it is reported as a hardware hang.
const DefaultTimeout = 5 * time.Second

// Mover starts DMA transfers between the transfer buffer and the title IP
type Mover interface {
	Transfer(direction driver.DmaDataDirection, addr uint64, length int) error
}

// Buffer is the DMA-visible transfer buffer
type Buffer interface {
	PhysAddr() uint64
}

// Options configures a Dispatcher
type Options struct {
	// Timeout bounds each completion wait. Zero selects DefaultTimeout, a
	// negative value waits forever.
	Timeout time.Duration
	// Logger receives dispatch logs. Nil selects slog.Default().
	Logger *slog.Logger
}

// Stats counts dispatcher activity
type Stats struct {
	Dispatched      uint64
	Rejected        uint64
	Hangs           uint64
	ParameterWrites uint64
	CommandIRQs     uint64
	FrameIRQs       uint64
}

// Dispatcher turns requests into DMA transfers and title IP command writes
// and waits for the title IP to report completion.
//
// Only one request is in flight at a time: Dispatch holds a lock for the
// whole sequence because the transfer buffer and the completions are
// shared by every command.
//
// A wait that ends without its completion (hang or cancellation) leaves the
// abandoned command's interrupt outstanding. The dispatcher is then faulted:
// every command other than Reset is refused with StatusHardwareHang until a
// Reset is dispatched, so a late interrupt cannot complete a newer command.
type Dispatcher struct {
	regs    driver.Registers
	mover   Mover
	buffer  Buffer
	timeout time.Duration
	log     *slog.Logger

	command *Completion
	frame   *Completion

	mu        sync.Mutex
	faulted   bool
	abandoned CommandKind

	dispatched atomic.Uint64
	rejected   atomic.Uint64
	hangs      atomic.Uint64
	params     atomic.Uint64
}

// NewDispatcher returns a dispatcher writing the title IP registers regs,
// moving data with mover through buffer.
func NewDispatcher(regs driver.Registers, mover Mover, buffer Buffer, opts Options) *Dispatcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		regs:    regs,
		mover:   mover,
		buffer:  buffer,
		timeout: timeout,
		log:     log,
		command: NewCompletion(),
		frame:   NewCompletion(),
	}
}

// Dispatch executes one request and returns once the title IP has
// acknowledged it.
//
// Invalid requests are rejected before any register is touched. A missing
// completion interrupt is reported as StatusHardwareHang after the
// configured timeout; cancelling ctx ends the wait with StatusInterrupted.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch req.Target {
	case TargetCommand:
	case TargetParameter:
		d.regs.Write32(driver.TitleParameterRegister, req.Code)
		d.params.Add(1)
		d.log.Debug("parameter written", "value", req.Code)
		return nil
	default:
		d.rejected.Add(1)
		return driver.NewError(driver.StatusInvalidArgument, "request target "+req.Target.String())
	}

	kind, err := ParseCommandKind(req.Code)
	if err != nil {
		d.rejected.Add(1)
		d.log.Warn("rejected command", "code", req.Code)
		return err
	}
	xfer, err := SizeFor(kind, req.Preset, req.Side)
	if err != nil {
		d.rejected.Add(1)
		d.log.Warn("rejected command", "command", kind, "preset", int(req.Preset), "side", req.Side, "err", err)
		return err
	}
	if d.faulted && kind != Reset {
		d.rejected.Add(1)
		d.log.Warn("rejected command while faulted", "command", kind, "abandoned", d.abandoned)
		return driver.NewError(driver.StatusHardwareHang,
			fmt.Sprintf("%s refused: %s was abandoned, reset required", kind, d.abandoned))
	}

	if !xfer.None() {
		if err := d.mover.Transfer(xfer.Direction, d.buffer.PhysAddr(), xfer.Length); err != nil {
			d.rejected.Add(1)
			return fmt.Errorf("starting %s transfer for %s: %w", xfer.Direction, kind, err)
		}
	}

	d.command.Reset()
	d.frame.Reset()
	d.regs.Write32(driver.TitleCommandRegister, kind.Code())
	if kind == Reset && d.faulted {
		d.faulted = false
		d.log.Info("fault cleared by reset", "abandoned", d.abandoned)
	}

	start := time.Now()
	if err := d.await(ctx, kind); err != nil {
		d.faulted = true
		d.abandoned = kind
		return err
	}
	d.command.Reset()
	d.dispatched.Add(1)

	d.log.Debug("command complete",
		"command", kind,
		"preset", int(req.Preset),
		"bytes", xfer.Length,
		"direction", xfer.Direction,
		"elapsed", time.Since(start))
	return nil
}

// await blocks until the completions kind depends on have been signalled
func (d *Dispatcher) await(ctx context.Context, kind CommandKind) error {
	if kind == Reset {
		return nil
	}

	waitCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := d.command.Wait(waitCtx)
	if err == nil && kind == Process {
		err = d.frame.Wait(waitCtx)
	}
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return driver.NewErrorWithCause(driver.StatusInterrupted, "waiting for "+kind.String(), ctx.Err())
	}
	d.hangs.Add(1)
	d.log.Error("completion interrupt missing",
		"command", kind,
		"command_done", d.command.Done(),
		"frame_done", d.frame.Done(),
		"timeout", d.timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return driver.NewError(driver.StatusHardwareHang,
			fmt.Sprintf("%s not completed within %v", kind, d.timeout))
	}
	return driver.NewErrorWithCause(driver.StatusHardwareHang, "waiting for "+kind.String(), err)
}

// CommandDone reports the command-done completion state
func (d *Dispatcher) CommandDone() bool {
	return d.command.Done()
}

// FrameDone reports the frame-done completion state
func (d *Dispatcher) FrameDone() bool {
	return d.frame.Done()
}

// Faulted reports whether a command was abandoned since the last Reset
func (d *Dispatcher) Faulted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faulted
}

// Status returns the frame-done state as a decimal line, "0\n" or "1\n"
func (d *Dispatcher) Status() string {
	if d.frame.Done() {
		return "1\n"
	}
	return "0\n"
}

// Timeout returns the effective completion timeout; negative means none
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Stats returns a snapshot of the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:      d.dispatched.Load(),
		Rejected:        d.rejected.Load(),
		Hangs:           d.hangs.Load(),
		ParameterWrites: d.params.Load(),
		CommandIRQs:     d.command.Signals(),
		FrameIRQs:       d.frame.Signals(),
	}
}
