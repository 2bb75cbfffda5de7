//go:build benchmark

package integration

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/payload"
	"github.com/emergingrobotics/go-title/pkg/render"
	"github.com/emergingrobotics/go-title/pkg/sim"
)

// BenchmarkRenderLatency measures one full render on the simulated title IP
func BenchmarkRenderLatency(b *testing.B) {
	sys := startSimulated(b, sim.NewRig(), time.Second)
	s := newSession(sys)
	job := render.Job{Preset: 0, Photo: gradient(640, 101)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Render(context.Background(), job); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkThroughput measures frames per second through an AsyncSession
func BenchmarkThroughput(b *testing.B) {
	sys := startSimulated(b, sim.NewRig(), time.Second)
	async := render.NewAsyncSession(context.Background(), newSession(sys), 4)
	defer async.Close()
	job := render.Job{Preset: 4, Photo: gradient(1920, 33)}

	start := time.Now()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		async.RenderAsync(job, func(_ *image.NRGBA64, err error) {
			if err != nil {
				b.Error(err)
			}
		})
	}
	async.WaitAll()

	fps := float64(b.N) / time.Since(start).Seconds()
	b.ReportMetric(fps, "fps")
}

// BenchmarkDispatchParameter measures the fire-and-forget path
func BenchmarkDispatchParameter(b *testing.B) {
	sys := startSimulated(b, sim.NewRig(), time.Second)
	d := sys.Dispatcher()
	req := control.NewParameter(7)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.Dispatch(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEncodePhoto measures photo scaling and packing
func BenchmarkEncodePhoto(b *testing.B) {
	img := gradient(1920, 1080)
	preset := control.Preset(4)
	size, _ := control.SizeFor(control.LoadPhoto, preset, 0)

	b.SetBytes(int64(size.Length))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := payload.EncodePhoto(img, preset); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkChecksum measures crc8 over a full frame
func BenchmarkChecksum(b *testing.B) {
	frame := make([]byte, control.Preset(0).FrameBytes())

	b.SetBytes(int64(len(frame)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = payload.Checksum(frame)
	}
}
