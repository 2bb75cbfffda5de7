// Command titleprobe brings up a title IP system step by step and reports
// which stage fails. It is meant for board bring-up, before titlectl.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/sim"
)

func main() {
	cfg := device.DefaultConfig()
	if err := cfg.ApplyEnv(nil); err != nil {
		log.Fatalf("Reading environment: %v", err)
	}
	flag.StringVar(&cfg.TitleName, "title", cfg.TitleName, "UIO name of the title IP")
	flag.StringVar(&cfg.DmaName, "dma", cfg.DmaName, "UIO name of the DMA engine")
	flag.StringVar(&cfg.Udmabuf, "udmabuf", cfg.Udmabuf, "u-dma-buf backing the transfer buffer")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Completion timeout")
	preset := flag.Int("preset", 0, "Resolution preset for the round trip")
	param := flag.Uint("param", 0, "Parameter register value to write")
	simulate := flag.Bool("simulate", false, "Probe a simulated title IP")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var sys *device.System
	if *simulate {
		sys = device.Simulate(sim.NewRig(), control.Options{Timeout: cfg.Timeout, Logger: logger})
	} else {
		fmt.Println("Attaching devices...")
		var err error
		if sys, err = device.Open(cfg, logger); err != nil {
			log.Fatalf("Attach failed: %v", err)
		}
		fmt.Println("Attach: OK")
	}
	defer sys.Close()

	if err := sys.Start(ctx); err != nil {
		log.Fatalf("Starting interrupt service: %v", err)
	}

	p := prober{sys: sys, out: os.Stdout, log: logger}
	failed := p.run(ctx, probeOptions{Preset: control.Preset(*preset), Param: uint32(*param)})
	if failed > 0 {
		fmt.Printf("%d step(s) failed\n", failed)
		sys.Close()
		os.Exit(1)
	}
}
