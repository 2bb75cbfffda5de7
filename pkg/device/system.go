package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/stream"
)

// SystemState represents the lifecycle state of a System
type SystemState int

const (
	StateAttached SystemState = iota
	StateServing
	StateClosed
)

// String returns the state name
func (s SystemState) String() string {
	switch s {
	case StateAttached:
		return "attached"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Lines are the interrupt lines of a System. MM2S and S2MM may be nil.
type Lines struct {
	Command control.InterruptLine
	Frame   control.InterruptLine
	MM2S    control.InterruptLine
	S2MM    control.InterruptLine
}

// System is an attached title IP, DMA engine and transfer buffer wired to a
// dispatcher.
type System struct {
	dispatcher *control.Dispatcher
	buffer     *stream.TransferBuffer
	channels   *stream.ChannelPair
	bindings   []control.Binding
	closers    []func() error
	log        *slog.Logger

	mu     sync.Mutex
	state  SystemState
	cancel context.CancelFunc
	served chan error
}

// NewSystem wires already attached parts. closers run in reverse order on
// Close.
func NewSystem(titleRegs driver.Registers, channels *stream.ChannelPair, buffer *stream.TransferBuffer,
	lines Lines, opts control.Options, closers ...func() error) *System {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := control.NewDispatcher(titleRegs, channels, buffer, opts)

	bindings := []control.Binding{
		control.Bind(lines.Command, d.CommandDoneHandler()),
		control.Bind(lines.Frame, d.FrameDoneHandler()),
	}
	if lines.MM2S != nil {
		bindings = append(bindings, control.Bind(lines.MM2S, control.DmaHandler(channels.MM2S)))
	}
	if lines.S2MM != nil {
		bindings = append(bindings, control.Bind(lines.S2MM, control.DmaHandler(channels.S2MM)))
	}

	return &System{
		dispatcher: d,
		buffer:     buffer,
		channels:   channels,
		bindings:   bindings,
		closers:    closers,
		log:        opts.Logger,
		state:      StateAttached,
	}
}

// Open attaches the accelerator, the DMA engine and the u-dma-buf named by
// cfg. Either all three are attached or none is.
func Open(cfg Config, log *slog.Logger) (*System, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var u unwinder
	accel, err := AttachAccelerator(cfg, log)
	if err != nil {
		return nil, err
	}
	u.push(accel.Detach)

	engine, err := AttachDmaEngine(cfg, log)
	if err != nil {
		u.run()
		return nil, err
	}
	u.push(engine.Detach)

	buf, err := stream.OpenUdmabufAt(cfg.UdmabufSysfs, cfg.DevDir, cfg.Udmabuf, driver.MaxPacketLen)
	if err != nil {
		u.run()
		return nil, err
	}
	u.push(buf.Close)

	lines := Lines{
		Command: accel.CommandLine(),
		Frame:   accel.FrameLine(),
	}
	for _, b := range engine.Bindings() {
		switch b.Line.Name() {
		case cfg.DmaMM2SName:
			lines.MM2S = b.Line
		case cfg.DmaS2MMName:
			lines.S2MM = b.Line
		}
	}

	log.Info("transfer buffer attached",
		"name", buf.Name(),
		"phys_addr", fmt.Sprintf("0x%x", buf.PhysAddr()),
		"size", buf.Cap())

	opts := control.Options{Timeout: cfg.Timeout, Logger: log}
	return NewSystem(accel.Registers(), engine.Channels(), buf, lines, opts, u.steps...), nil
}

// Dispatcher returns the command dispatcher
func (s *System) Dispatcher() *control.Dispatcher {
	return s.dispatcher
}

// Buffer returns the transfer buffer
func (s *System) Buffer() *stream.TransferBuffer {
	return s.buffer
}

// Channels returns the DMA channel controllers
func (s *System) Channels() *stream.ChannelPair {
	return s.channels
}

// State returns the lifecycle state
func (s *System) State() SystemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start services the interrupt lines in the background until Stop or Close
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateServing:
		return ErrAlreadyServing
	case StateClosed:
		return ErrDetached
	}

	ctx, cancel := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() {
		err := control.Serve(ctx, s.bindings...)
		if err != nil {
			s.log.Error("interrupt service stopped", "err", err)
		}
		served <- err
	}()

	s.cancel = cancel
	s.served = served
	s.state = StateServing
	return nil
}

// Stop ends interrupt service and waits for it to wind down
func (s *System) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateServing {
		return ErrNotServing
	}
	return s.stopLocked()
}

func (s *System) stopLocked() error {
	s.cancel()
	err := <-s.served
	s.cancel = nil
	s.served = nil
	s.state = StateAttached
	return err
}

// Close stops interrupt service and detaches everything in reverse order
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	var errs []error
	if s.state == StateServing {
		errs = append(errs, s.stopLocked())
	}
	s.state = StateClosed

	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}
