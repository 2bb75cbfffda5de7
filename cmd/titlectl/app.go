package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/render"
	"github.com/emergingrobotics/go-title/pkg/sim"
)

// app holds the state shared by every subcommand of one root command
type app struct {
	cfg      device.Config
	simulate bool
	logLevel string
	log      *slog.Logger

	// set while shell, run or mount keep one session open across commands
	sys     *device.System
	session *render.Session
}

func (a *app) bindFlags(cmd *cobra.Command) {
	a.cfg = device.DefaultConfig()
	f := cmd.PersistentFlags()
	f.BoolVar(&a.simulate, "simulate", false, "Drive a simulated title IP instead of hardware")
	f.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	f.StringVar(&a.cfg.TitleName, "title", a.cfg.TitleName, "UIO name of the title IP")
	f.StringVar(&a.cfg.TitleFrameName, "title-frame", a.cfg.TitleFrameName, "UIO name of the frame-done interrupt")
	f.StringVar(&a.cfg.DmaName, "dma", a.cfg.DmaName, "UIO name of the DMA engine")
	f.StringVar(&a.cfg.DmaMM2SName, "dma-mm2s", a.cfg.DmaMM2SName, "UIO name of the MM2S interrupt")
	f.StringVar(&a.cfg.DmaS2MMName, "dma-s2mm", a.cfg.DmaS2MMName, "UIO name of the S2MM interrupt")
	f.BoolVar(&a.cfg.DmaInterrupts, "dma-interrupts", false, "Service the DMA channel interrupts")
	f.StringVar(&a.cfg.Udmabuf, "udmabuf", a.cfg.Udmabuf, "u-dma-buf backing the transfer buffer")
	f.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "Completion timeout (negative waits forever)")
	f.StringVar(&a.cfg.UioSysfs, "uio-sysfs", a.cfg.UioSysfs, "sysfs class directory of UIO devices")
	f.StringVar(&a.cfg.DevDir, "dev-dir", a.cfg.DevDir, "Directory holding device nodes")
}

// setup runs before every subcommand: it builds the logger and applies the
// environment to flags the user did not set
func (a *app) setup(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	env := a.cfg
	if err := env.ApplyEnv(nil); err != nil {
		return err
	}
	flags := cmd.Flags()
	for name, pair := range map[string][2]*string{
		"title":       {&a.cfg.TitleName, &env.TitleName},
		"title-frame": {&a.cfg.TitleFrameName, &env.TitleFrameName},
		"dma":         {&a.cfg.DmaName, &env.DmaName},
		"dma-mm2s":    {&a.cfg.DmaMM2SName, &env.DmaMM2SName},
		"dma-s2mm":    {&a.cfg.DmaS2MMName, &env.DmaS2MMName},
		"udmabuf":     {&a.cfg.Udmabuf, &env.Udmabuf},
		"uio-sysfs":   {&a.cfg.UioSysfs, &env.UioSysfs},
		"dev-dir":     {&a.cfg.DevDir, &env.DevDir},
	} {
		if !flags.Changed(name) {
			*pair[0] = *pair[1]
		}
	}
	if !flags.Changed("dma-interrupts") {
		a.cfg.DmaInterrupts = env.DmaInterrupts
	}
	if !flags.Changed("timeout") {
		a.cfg.Timeout = env.Timeout
	}
	return nil
}

// open attaches the configured system, or a simulated one, and starts
// servicing its interrupts
func (a *app) open(ctx context.Context) (*device.System, error) {
	var sys *device.System
	if a.simulate {
		sys = device.Simulate(sim.NewRig(), control.Options{Timeout: a.cfg.Timeout, Logger: a.log})
	} else {
		var err error
		if sys, err = device.Open(a.cfg, a.log); err != nil {
			return nil, err
		}
	}
	if err := sys.Start(ctx); err != nil {
		sys.Close()
		return nil, err
	}
	return sys, nil
}

// hold opens a system and keeps it for the following commands until the
// returned release is called
func (a *app) hold(ctx context.Context) (release func(), err error) {
	if a.sys != nil {
		return func() {}, nil
	}
	sys, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	a.sys = sys
	a.session = render.NewSession(sys.Dispatcher(), sys.Buffer(), a.log)
	return func() {
		a.session.Close()
		if err := a.sys.Close(); err != nil {
			a.log.Warn("closing system", "err", err)
		}
		a.sys = nil
		a.session = nil
	}, nil
}

// withSession runs fn against the held session, opening one for the
// duration of fn when none is held
func (a *app) withSession(ctx context.Context, fn func(*render.Session) error) error {
	release, err := a.hold(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(a.session)
}

// runE adapts fn into a cobra RunE that runs it against a session
func (a *app) runE(fn func(cmd *cobra.Command, args []string, s *render.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.withSession(cmd.Context(), func(s *render.Session) error {
			return fn(cmd, args, s)
		})
	}
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
