package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/payload"
	"github.com/emergingrobotics/go-title/pkg/render"
)

type probeOptions struct {
	Preset control.Preset
	Param  uint32
}

type prober struct {
	sys *device.System
	out io.Writer
	log *slog.Logger
}

type probeStep struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// run executes every probe step and returns the number that failed. A
// failed step does not stop the later ones.
func (p *prober) run(ctx context.Context, opts probeOptions) int {
	s := render.NewSession(p.sys.Dispatcher(), p.sys.Buffer(), p.log)
	defer s.Close()

	steps := []probeStep{
		{"DMA status", func(context.Context) (string, error) {
			ch := p.sys.Channels()
			return fmt.Sprintf("MM2S sr=0x%08x S2MM sr=0x%08x", ch.MM2S.Status(), ch.S2MM.Status()), nil
		}},
		{"Reset", func(ctx context.Context) (string, error) {
			return "", s.Reset(ctx)
		}},
		{"Parameter", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("0x%08x", opts.Param), s.SetParameter(ctx, opts.Param)
		}},
		{"Load photo", func(ctx context.Context) (string, error) {
			return opts.Preset.String(), s.LoadPhoto(ctx, testPattern(opts.Preset), opts.Preset)
		}},
		{"Process", func(ctx context.Context) (string, error) {
			if err := s.Process(ctx, opts.Preset); err != nil {
				return "", err
			}
			if st := s.Status(); st != "1\n" {
				return "", fmt.Errorf("frame status %q after processing", st)
			}
			return "frame done", nil
		}},
		{"Read frame", func(ctx context.Context) (string, error) {
			b, err := s.ReadFrameBytes(ctx, opts.Preset)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d bytes crc8=0x%02x", len(b), payload.Checksum(b)), nil
		}},
	}

	failed := 0
	for _, step := range steps {
		start := time.Now()
		detail, err := step.run(ctx)
		elapsed := time.Since(start).Round(time.Microsecond)
		if err != nil {
			failed++
			fmt.Fprintf(p.out, "%s: FAILED (%v)\n", step.name, err)
			continue
		}
		if detail != "" {
			fmt.Fprintf(p.out, "%s: OK %s [%v]\n", step.name, detail, elapsed)
		} else {
			fmt.Fprintf(p.out, "%s: OK [%v]\n", step.name, elapsed)
		}
	}

	st := p.sys.Dispatcher().Stats()
	fmt.Fprintf(p.out, "Dispatched %d, rejected %d, hangs %d, command IRQs %d, frame IRQs %d\n",
		st.Dispatched, st.Rejected, st.Hangs, st.CommandIRQs, st.FrameIRQs)
	return failed
}

// testPattern returns vertical colour bars at the preset resolution
func testPattern(preset control.Preset) image.Image {
	bars := []color.RGBA{
		{0xff, 0xff, 0xff, 0xff}, {0xff, 0xff, 0, 0xff}, {0, 0xff, 0xff, 0xff}, {0, 0xff, 0, 0xff},
		{0xff, 0, 0xff, 0xff}, {0xff, 0, 0, 0xff}, {0, 0, 0xff, 0xff}, {0, 0, 0, 0xff},
	}
	w, h := preset.Width(), preset.Depth()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		c := bars[x*len(bars)/w]
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
