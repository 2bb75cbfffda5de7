//go:build unit

package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/sim"
	"github.com/emergingrobotics/go-title/testutil"
)

func newSimulatedSystem(t *testing.T) (*System, *sim.Rig) {
	t.Helper()
	rig := sim.NewRig()
	sys := Simulate(rig, control.Options{Timeout: time.Second, Logger: quietLogger()})
	t.Cleanup(func() { sys.Close() })
	return sys, rig
}

func TestSystemLifecycle(t *testing.T) {
	sys, _ := newSimulatedSystem(t)
	ctx := context.Background()

	if err := sys.Stop(); !errors.Is(err, ErrNotServing) {
		t.Errorf("Stop before Start = %v, expected ErrNotServing", err)
	}
	if err := sys.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sys.Start(ctx); !errors.Is(err, ErrAlreadyServing) {
		t.Errorf("second Start = %v, expected ErrAlreadyServing", err)
	}
	if sys.State() != StateServing {
		t.Errorf("State() = %s, expected serving", sys.State())
	}
	if err := sys.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := sys.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := sys.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := sys.Start(ctx); !errors.Is(err, ErrDetached) {
		t.Errorf("Start after Close = %v, expected ErrDetached", err)
	}
}

func TestSimulateResetsAndInitialises(t *testing.T) {
	_, rig := newSimulatedSystem(t)

	if cmds := rig.Title.Commands(); len(cmds) != 1 || cmds[0] != 0x80 {
		t.Errorf("commands = %v, expected one reset", cmds)
	}
	if w := rig.DMA.Regs.WritesTo(0x00); len(w) != 2 || w[0] != 0x4 {
		t.Errorf("MM2S control writes = %v, expected reset then enable", w)
	}
}

func TestSystemRoundTripsAPhoto(t *testing.T) {
	sys, rig := newSimulatedSystem(t)
	ctx := context.Background()
	if err := sys.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	preset := control.Preset(4)
	photo := testutil.MakeRandomBytes(preset.FrameBytes())
	if _, err := sys.Buffer().WriteAt(photo, 0); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	d := sys.Dispatcher()
	if err := d.Dispatch(ctx, control.NewCommand(control.LoadPhoto, preset)); err != nil {
		t.Fatalf("LoadPhoto failed: %v", err)
	}
	if !bytes.Equal(rig.Title.Bram(0x10), photo) {
		t.Fatal("title IP did not receive the photo")
	}

	sys.Buffer().Zero()
	if err := d.Dispatch(ctx, control.NewCommand(control.Process, preset)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := d.Dispatch(ctx, control.NewCommand(control.SendFromBram, preset)); err != nil {
		t.Fatalf("SendFromBram failed: %v", err)
	}

	got, err := sys.Buffer().Expose(preset.FrameBytes())
	if err != nil {
		t.Fatalf("Expose failed: %v", err)
	}
	testutil.AssertBytesEqual(t, got, photo, "frame read back")

	transfers := rig.DMA.Transfers()
	if len(transfers) != 2 {
		t.Errorf("expected 2 DMA transfers, got %+v", transfers)
	}
}

func TestSystemServicesDmaLines(t *testing.T) {
	sys, _ := newSimulatedSystem(t)
	ctx := context.Background()
	if err := sys.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := sys.Dispatcher().Dispatch(ctx, control.NewCommand(control.LoadLetterData, 0)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sys.Channels().MM2S.Interrupts() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sys.Channels().MM2S.Interrupts() != 1 {
		t.Errorf("MM2S interrupts = %d, expected 1", sys.Channels().MM2S.Interrupts())
	}
	if sys.Channels().MM2S.Status()&0x5000 != 0 {
		t.Errorf("MM2S status 0x%x still has interrupt bits", sys.Channels().MM2S.Status())
	}
}
