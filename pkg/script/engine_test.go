//go:build unit

package script

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/render"
	"github.com/emergingrobotics/go-title/pkg/sim"
	"github.com/emergingrobotics/go-title/testutil"
)

func newTestEngine(t *testing.T) (*Engine, *sim.Rig, *bytes.Buffer) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rig := sim.NewRig()
	sys := device.Simulate(rig, control.Options{Timeout: time.Second, Logger: log})
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { sys.Close() })

	out := &bytes.Buffer{}
	e := New(render.NewSession(sys.Dispatcher(), sys.Buffer(), log), out, log)
	t.Cleanup(e.Close)
	return e, rig, out
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{G: 0xff, A: 0xff})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestConstantName(t *testing.T) {
	tests := []struct {
		kind     control.CommandKind
		expected string
	}{
		{control.LoadLetterData, "LOAD_LETTER_DATA"},
		{control.Process, "PROCESS"},
		{control.SendFromBram, "SEND_FROM_BRAM"},
	}
	for _, tt := range tests {
		if got := constantName(tt.kind); got != tt.expected {
			t.Errorf("constantName(%v) = %q, expected %q", tt.kind, got, tt.expected)
		}
	}
}

func TestConstantsAndPrint(t *testing.T) {
	e, _, out := newTestEngine(t)

	err := e.DoString(context.Background(), "print(LOAD_PHOTO, PROCESS, RESET, PRESETS)")
	if err != nil {
		t.Fatalf("DoString failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "16\t32\t128\t5" {
		t.Errorf("output = %q, expected constants", got)
	}
}

func TestParamAndReset(t *testing.T) {
	e, rig, _ := newTestEngine(t)

	err := e.DoString(context.Background(), `
reset()
param(3)
send(0x1234, 0, 1)
`)
	if err != nil {
		t.Fatalf("DoString failed: %v", err)
	}

	params := rig.Title.Parameters()
	if len(params) != 2 || params[0] != 3 || params[1] != 0x1234 {
		t.Errorf("parameters = %v, expected [3 4660]", params)
	}
}

func TestSendStagesFile(t *testing.T) {
	e, rig, _ := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "position.bin")
	data := bytes.Repeat([]byte{0xa5}, driver.PositionLen)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := e.DoString(context.Background(), `send(LOAD_POSITION, 0, 0, "`+path+`")`); err != nil {
		t.Fatalf("DoString failed: %v", err)
	}
	if got := rig.Title.Bram(driver.CmdLoadPosition); !bytes.Equal(got, data) {
		t.Errorf("expected %d position bytes loaded, got %d", len(data), len(got))
	}
}

func TestLoadText(t *testing.T) {
	e, rig, _ := newTestEngine(t)

	if err := e.DoString(context.Background(), `load_text("Hi")`); err != nil {
		t.Fatalf("DoString failed: %v", err)
	}
	got := rig.Title.Bram(driver.CmdLoadText)
	expected := []byte{'H', 0, 'i', 0}
	if !bytes.Equal(got, expected) {
		t.Errorf("text bram = %v, expected %v", got, expected)
	}
}

func TestLoadPositionWords(t *testing.T) {
	e, rig, _ := newTestEngine(t)

	var sb strings.Builder
	sb.WriteString("# glyph positions\n")
	for i := 0; i < driver.PositionLen/2; i++ {
		sb.WriteString("0x0102,\n")
	}
	path := filepath.Join(t.TempDir(), "pos.txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := e.DoString(context.Background(), `load_position("`+path+`")`); err != nil {
		t.Fatalf("DoString failed: %v", err)
	}
	got := rig.Title.Bram(driver.CmdLoadPosition)
	if len(got) != driver.PositionLen || got[0] != 0x02 || got[1] != 0x01 {
		t.Errorf("position bram starts %v (len %d), expected little-endian 0x0102", got[:2], len(got))
	}
}

func TestPhotoProcessReadFrame(t *testing.T) {
	e, _, out := newTestEngine(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	frame := filepath.Join(dir, "frame.png")
	writePNG(t, in, 32, 8)

	err := e.DoString(context.Background(), `
reset()
load_photo("`+in+`", 4)
print(status())
process(4)
print(status())
local crc = read_frame("`+frame+`", 4)
print(type(crc))
`)
	if err != nil {
		t.Fatalf("DoString failed: %v", err)
	}
	if got := out.String(); got != "false\ntrue\nnumber\n" {
		t.Errorf("output = %q", got)
	}

	f, err := os.Open(frame)
	if err != nil {
		t.Fatalf("expected frame file: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1920 || b.Dy() != 33 {
		t.Errorf("frame bounds = %v, expected 1920x33", b)
	}
}

func TestErrorsRaise(t *testing.T) {
	e, _, out := newTestEngine(t)

	tests := []struct {
		name   string
		src    string
		expect string
	}{
		{"unknown command", "send(3)", "invalid command"},
		{"bad preset", "process(7)", "preset"},
		{"bad target", "send(1, 0, 5)", "target"},
		{"missing file", `load_photo("/nonexistent.png", 0)`, "load_photo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.DoString(context.Background(), tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.expect) {
				t.Errorf("error %q does not mention %q", err, tt.expect)
			}
		})
	}

	// pcall catches binding errors
	out.Reset()
	if err := e.DoString(context.Background(), "print(pcall(send, 3))"); err != nil {
		t.Fatalf("DoString failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "false") {
		t.Errorf("pcall output = %q, expected false first", out.String())
	}
}

func TestDoFile(t *testing.T) {
	e, rig, _ := newTestEngine(t)

	path := testutil.TempFile(t, "seq.lua", []byte("for i = 1, 3 do param(i) end\n"))
	if err := e.DoFile(context.Background(), path); err != nil {
		t.Fatalf("DoFile failed: %v", err)
	}
	if got := rig.Title.Parameters(); len(got) != 3 {
		t.Errorf("expected 3 parameter writes, got %v", got)
	}
}

func TestCancelledContextStopsScript(t *testing.T) {
	e, _, _ := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.DoString(ctx, "while true do end"); err == nil {
		t.Error("expected cancelled script to fail")
	}
}
