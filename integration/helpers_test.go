//go:build integration || benchmark

package integration

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/render"
	"github.com/emergingrobotics/go-title/pkg/sim"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startSimulated returns a serving simulated system, closed with tb
func startSimulated(tb testing.TB, rig *sim.Rig, timeout time.Duration) *device.System {
	tb.Helper()

	sys := device.Simulate(rig, control.Options{Timeout: timeout, Logger: quietLogger()})
	if err := sys.Start(context.Background()); err != nil {
		tb.Fatalf("Start failed: %v", err)
	}
	tb.Cleanup(func() { sys.Close() })
	return sys
}

func newSession(sys *device.System) *render.Session {
	return render.NewSession(sys.Dispatcher(), sys.Buffer(), quietLogger())
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 0x80, A: 0xff})
		}
	}
	return img
}
