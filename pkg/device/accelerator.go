package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Accelerator is an attached title IP: its register window and its two
// completion lines.
type Accelerator struct {
	info    UioDevice
	regs    *driver.MappedRegisters
	command *IRQLine
	frame   *IRQLine
	release unwinder
	mu      sync.Mutex
	closed  bool
}

// AttachAccelerator finds the title IP named by cfg, maps its registers,
// opens its command-done and frame-done lines and resets it.
//
// On failure everything acquired so far is released in reverse order and
// the error carries StatusResourceUnavailable.
func AttachAccelerator(cfg Config, log *slog.Logger) (*Accelerator, error) {
	if log == nil {
		log = slog.Default()
	}
	scanner := cfg.Scanner()
	a := &Accelerator{}

	info, err := scanner.Find(cfg.TitleName)
	if err != nil {
		return nil, attachError("title IP", err)
	}
	a.info = info

	df, err := driver.OpenDevice(info.Path)
	if err != nil {
		return nil, attachError("title IP", err)
	}
	a.release.push(df.Close)

	mem, err := df.MapRegion(0, mapSize(info))
	if err != nil {
		a.release.run()
		return nil, attachError("title IP registers", err)
	}
	a.release.push(func() error { return driver.UnmapRegion(mem) })
	a.regs = driver.NewMappedRegisters(mem)
	a.command = sharedIRQLine(info.Name, df)

	frameInfo, err := scanner.Find(cfg.TitleFrameName)
	if err != nil {
		a.release.run()
		return nil, attachError("frame-done line", err)
	}
	a.frame, err = OpenIRQLine(frameInfo)
	if err != nil {
		a.release.run()
		return nil, attachError("frame-done line", err)
	}
	a.release.push(a.frame.Close)

	a.regs.Write32(driver.TitleCommandRegister, driver.CmdReset)

	log.Info("title IP attached",
		"device", info.Path,
		"name", info.Name,
		"frame_line", frameInfo.Path,
		"window", a.regs.Size())
	return a, nil
}

// Info returns the UIO device of the register window
func (a *Accelerator) Info() UioDevice {
	return a.info
}

// Registers returns the accelerator register window
func (a *Accelerator) Registers() *driver.MappedRegisters {
	return a.regs
}

// CommandLine returns the command-done interrupt line
func (a *Accelerator) CommandLine() *IRQLine {
	return a.command
}

// FrameLine returns the frame-done interrupt line
func (a *Accelerator) FrameLine() *IRQLine {
	return a.frame
}

// Detach releases the accelerator in reverse attach order
func (a *Accelerator) Detach() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return a.release.run()
}

func mapSize(info UioDevice) int {
	if len(info.Maps) > 0 && info.Maps[0].Size > 0 {
		return int(info.Maps[0].Size)
	}
	return driver.UioMapSize
}

func attachError(what string, err error) error {
	return driver.NewErrorWithCause(driver.StatusResourceUnavailable,
		fmt.Sprintf("attaching %s", what), err)
}
