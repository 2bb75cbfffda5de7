//go:build integration

package integration

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/render"
	"github.com/emergingrobotics/go-title/pkg/sim"
	"github.com/emergingrobotics/go-title/pkg/titlefs"
	"github.com/emergingrobotics/go-title/testutil"
)

func TestFullTitlePipeline(t *testing.T) {
	rig := sim.NewRig()
	sys := startSimulated(t, rig, time.Second)
	s := newSession(sys)
	ctx := context.Background()
	preset := control.Preset(2)

	// Step 1: glyph tables
	t.Log("Step 1: Loading glyph tables...")
	letters := testutil.MakeRandomBytes(driver.LetterDataLen)
	position := testutil.MakeRandomBytes(driver.PositionLen)
	if err := s.LoadLetterData(ctx, letters); err != nil {
		t.Fatalf("LoadLetterData failed: %v", err)
	}
	if err := s.LoadPosition(ctx, position); err != nil {
		t.Fatalf("LoadPosition failed: %v", err)
	}

	// Step 2: text and matrix
	t.Log("Step 2: Loading text and letter matrix...")
	if err := s.LoadText(ctx, "Integration"); err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	matrix := make([]byte, preset.LetterMatrixBytes())
	if err := s.LoadLetterMatrix(ctx, preset, matrix); err != nil {
		t.Fatalf("LoadLetterMatrix failed: %v", err)
	}

	// Step 3: photo, process, read back
	t.Log("Step 3: Rendering...")
	if err := s.LoadPhoto(ctx, gradient(320, 25), preset); err != nil {
		t.Fatalf("LoadPhoto failed: %v", err)
	}
	if err := s.Process(ctx, preset); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	frame, err := s.ReadFrameBytes(ctx, preset)
	if err != nil {
		t.Fatalf("ReadFrameBytes failed: %v", err)
	}
	if len(frame) != preset.FrameBytes() {
		t.Errorf("frame is %d bytes, expected %d", len(frame), preset.FrameBytes())
	}

	if !bytes.Equal(rig.Title.Bram(driver.CmdLoadLetterData), letters) {
		t.Error("letter data did not reach the title IP intact")
	}
	if !bytes.Equal(rig.Title.Bram(driver.CmdLoadPosition), position) {
		t.Error("position table did not reach the title IP intact")
	}

	cmds := rig.Title.Commands()
	t.Logf("Command sequence: %v", cmds)
	st := sys.Dispatcher().Stats()
	if st.Hangs != 0 || st.Rejected != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRecoveryAfterHang(t *testing.T) {
	rig := sim.NewRig()
	sys := startSimulated(t, rig, 100*time.Millisecond)
	s := newSession(sys)
	ctx := context.Background()

	rig.Title.DropCommandIRQ(true)
	err := s.LoadPosition(ctx, make([]byte, driver.PositionLen))
	if !driver.IsStatus(err, driver.StatusHardwareHang) {
		t.Fatalf("expected HardwareHang, got %v", err)
	}

	rig.Title.DropCommandIRQ(false)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := s.LoadPosition(ctx, make([]byte, driver.PositionLen)); err != nil {
		t.Errorf("expected dispatch to work after a hang, got %v", err)
	}
	if got := sys.Dispatcher().Stats().Hangs; got != 1 {
		t.Errorf("expected 1 hang, got %d", got)
	}
}

func TestConcurrentClients(t *testing.T) {
	rig := sim.NewRig()
	sys := startSimulated(t, rig, time.Second)
	s := newSession(sys)
	fs := titlefs.New(sys.Dispatcher(), sys.Buffer(), quietLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	// renderers through the session
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			preset := control.Preset(i % driver.PresetCount)
			if _, err := s.Render(ctx, render.Job{Preset: preset, Photo: gradient(64, 16)}); err != nil {
				errs <- err
			}
		}(i)
	}
	// parameter writers through the filesystem surface
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				if err := fs.WriteCommands(ctx, []byte("42,0,1\n")); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent client failed: %v", err)
	}

	if got := len(rig.Title.Parameters()); got != 32 {
		t.Errorf("expected 32 parameter writes, got %d", got)
	}
}

func TestHardwareRoundTrip(t *testing.T) {
	testutil.SkipIfNoDevice(t, driver.DefaultTitleName)
	testutil.SkipIfNoDevice(t, driver.DefaultDmaName)

	cfg := device.DefaultConfig()
	if err := cfg.ApplyEnv(nil); err != nil {
		t.Fatal(err)
	}
	sys, err := device.Open(cfg, quietLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sys.Close()
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s := newSession(sys)
	preset := control.Preset(0)
	frame, err := s.Render(context.Background(), render.Job{Preset: preset, Photo: gradient(640, 101)})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	t.Logf("Frame: %v", frame.Bounds())
	if got := sys.Dispatcher().Stats().FrameIRQs; got < 1 {
		t.Errorf("expected a frame-done interrupt during render, got %d", got)
	}
}
