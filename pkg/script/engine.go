// Package script runs Lua programs that drive the title IP.
//
// Every binding dispatches through a render.Session, so scripts get the same
// validation and serialisation as the CLI. Failures raise Lua errors
// carrying the driver status; pcall can catch them.
package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/payload"
	"github.com/emergingrobotics/go-title/pkg/render"
)

// Engine is one Lua state bound to a session
type Engine struct {
	L       *lua.LState
	session *render.Session
	log     *slog.Logger
	out     io.Writer
}

// New returns an engine driving session. Script output from print goes to
// out; nil discards it.
func New(session *render.Session, out io.Writer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	e := &Engine{
		L:       lua.NewState(),
		session: session,
		log:     log,
		out:     out,
	}
	e.register()
	return e
}

// Close releases the Lua state
func (e *Engine) Close() {
	e.L.Close()
}

// DoString runs src until it finishes or ctx is done
func (e *Engine) DoString(ctx context.Context, src string) error {
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()
	return e.L.DoString(src)
}

// DoFile runs the script at path until it finishes or ctx is done
func (e *Engine) DoFile(ctx context.Context, path string) error {
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()
	e.log.Debug("running script", "path", path)
	return e.L.DoFile(path)
}

func (e *Engine) register() {
	L := e.L

	fns := map[string]lua.LGFunction{
		"send":             e.send,
		"param":            e.param,
		"status":           e.status,
		"reset":            e.reset,
		"process":          e.process,
		"load_text":        e.loadText,
		"load_photo":       e.loadPhoto,
		"load_letter_data": e.loadLetterData,
		"load_matrix":      e.loadMatrix,
		"load_position":    e.loadPosition,
		"read_frame":       e.readFrame,
		"print":            e.print,
	}
	for name, fn := range fns {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	for _, kind := range control.Kinds() {
		L.SetGlobal(constantName(kind), lua.LNumber(kind.Code()))
	}
	L.SetGlobal("PRESETS", lua.LNumber(driver.PresetCount))
}

// constantName turns "load-letter-data" into "LOAD_LETTER_DATA"
func constantName(kind control.CommandKind) string {
	return strings.ToUpper(strings.ReplaceAll(kind.String(), "-", "_"))
}

// fail raises err as a Lua error
func (e *Engine) fail(L *lua.LState, what string, err error) int {
	L.RaiseError("%s: %v", what, err)
	return 0
}

func (e *Engine) ctx() context.Context {
	if ctx := e.L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func checkPreset(L *lua.LState, n int) control.Preset {
	p, err := control.ParsePreset(L.OptInt(n, 0))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return p
}

// send(code, arg, target[, file]) dispatches a raw request. arg is the
// preset, or the text length for LoadText; target defaults to 0. The raw
// contents of file are staged in the transfer buffer first.
func (e *Engine) send(L *lua.LState) int {
	code := uint32(L.CheckInt64(1))
	arg := L.OptInt(2, 0)
	target := L.OptInt(3, 0)
	path := L.OptString(4, "")

	req, err := control.ParseRequest(fmt.Sprintf("%d,%d,%d", code, arg, target))
	if err != nil {
		return e.fail(L, "send", err)
	}
	var data []byte
	if path != "" {
		if data, err = os.ReadFile(path); err != nil {
			return e.fail(L, "send", err)
		}
	}
	if err := e.session.Send(e.ctx(), req, data); err != nil {
		return e.fail(L, "send "+req.String(), err)
	}
	return 0
}

func (e *Engine) param(L *lua.LState) int {
	v := uint32(L.CheckInt64(1))
	if err := e.session.SetParameter(e.ctx(), v); err != nil {
		return e.fail(L, "param", err)
	}
	return 0
}

// status returns true once a frame has been processed
func (e *Engine) status(L *lua.LState) int {
	L.Push(lua.LBool(e.session.Status() == "1\n"))
	return 1
}

func (e *Engine) reset(L *lua.LState) int {
	if err := e.session.Reset(e.ctx()); err != nil {
		return e.fail(L, "reset", err)
	}
	return 0
}

func (e *Engine) process(L *lua.LState) int {
	preset := checkPreset(L, 1)
	if err := e.session.Process(e.ctx(), preset); err != nil {
		return e.fail(L, "process", err)
	}
	return 0
}

func (e *Engine) loadText(L *lua.LState) int {
	text := L.CheckString(1)
	if err := e.session.LoadText(e.ctx(), text); err != nil {
		return e.fail(L, "load_text", err)
	}
	return 0
}

func (e *Engine) loadPhoto(L *lua.LState) int {
	path := L.CheckString(1)
	preset := checkPreset(L, 2)

	f, err := os.Open(path)
	if err != nil {
		return e.fail(L, "load_photo", err)
	}
	defer f.Close()
	img, err := payload.ReadImage(f)
	if err != nil {
		return e.fail(L, "load_photo "+path, err)
	}
	if err := e.session.LoadPhoto(e.ctx(), img, preset); err != nil {
		return e.fail(L, "load_photo", err)
	}
	return 0
}

// readWordFile loads a word list file as bytes
func readWordFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	words, err := payload.ReadWords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return payload.EncodeWords(words), nil
}

func (e *Engine) loadLetterData(L *lua.LState) int {
	b, err := readWordFile(L.CheckString(1))
	if err != nil {
		return e.fail(L, "load_letter_data", err)
	}
	if err := e.session.LoadLetterData(e.ctx(), b); err != nil {
		return e.fail(L, "load_letter_data", err)
	}
	return 0
}

func (e *Engine) loadMatrix(L *lua.LState) int {
	path := L.CheckString(1)
	preset := checkPreset(L, 2)
	b, err := readWordFile(path)
	if err != nil {
		return e.fail(L, "load_matrix", err)
	}
	if err := e.session.LoadLetterMatrix(e.ctx(), preset, b); err != nil {
		return e.fail(L, "load_matrix", err)
	}
	return 0
}

func (e *Engine) loadPosition(L *lua.LState) int {
	b, err := readWordFile(L.CheckString(1))
	if err != nil {
		return e.fail(L, "load_position", err)
	}
	if err := e.session.LoadPosition(e.ctx(), b); err != nil {
		return e.fail(L, "load_position", err)
	}
	return 0
}

// read_frame(path, preset) streams the frame back and writes it as an
// image; the format follows the file extension. It returns the frame crc8.
func (e *Engine) readFrame(L *lua.LState) int {
	path := L.CheckString(1)
	preset := checkPreset(L, 2)

	b, err := e.session.ReadFrameBytes(e.ctx(), preset)
	if err != nil {
		return e.fail(L, "read_frame", err)
	}
	img, err := payload.DecodeFrame(b, preset)
	if err != nil {
		return e.fail(L, "read_frame", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return e.fail(L, "read_frame", err)
	}
	if err := payload.WriteImage(f, img, payload.FormatFromPath(path)); err != nil {
		f.Close()
		return e.fail(L, "read_frame "+path, err)
	}
	if err := f.Close(); err != nil {
		return e.fail(L, "read_frame", err)
	}
	L.Push(lua.LNumber(payload.Checksum(b)))
	return 1
}

func (e *Engine) print(L *lua.LState) int {
	n := L.GetTop()
	for i := 1; i <= n; i++ {
		if i > 1 {
			fmt.Fprint(e.out, "\t")
		}
		fmt.Fprint(e.out, L.ToStringMeta(L.Get(i)).String())
	}
	fmt.Fprintln(e.out)
	return 0
}
