package device

import (
	"log/slog"
	"sync"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/stream"
)

// DmaEngine is an attached AXI DMA engine
type DmaEngine struct {
	info     UioDevice
	regs     *driver.MappedRegisters
	channels *stream.ChannelPair
	mm2s     *IRQLine
	s2mm     *IRQLine
	release  unwinder
	mu       sync.Mutex
	closed   bool
}

// AttachDmaEngine finds the DMA engine named by cfg, maps its registers and
// initialises both channels. The channel interrupt lines are opened only
// when cfg.DmaInterrupts is set.
func AttachDmaEngine(cfg Config, log *slog.Logger) (*DmaEngine, error) {
	if log == nil {
		log = slog.Default()
	}
	scanner := cfg.Scanner()
	e := &DmaEngine{}

	info, err := scanner.Find(cfg.DmaName)
	if err != nil {
		return nil, attachError("DMA engine", err)
	}
	e.info = info

	df, err := driver.OpenDevice(info.Path)
	if err != nil {
		return nil, attachError("DMA engine", err)
	}
	e.release.push(df.Close)

	mem, err := df.MapRegion(0, mapSize(info))
	if err != nil {
		e.release.run()
		return nil, attachError("DMA registers", err)
	}
	e.release.push(func() error { return driver.UnmapRegion(mem) })
	e.regs = driver.NewMappedRegisters(mem)

	if cfg.DmaInterrupts {
		lines := []struct {
			name string
			dst  **IRQLine
		}{
			{cfg.DmaMM2SName, &e.mm2s},
			{cfg.DmaS2MMName, &e.s2mm},
		}
		for _, l := range lines {
			lineInfo, err := scanner.Find(l.name)
			if err != nil {
				e.release.run()
				return nil, attachError("DMA line "+l.name, err)
			}
			line, err := OpenIRQLine(lineInfo)
			if err != nil {
				e.release.run()
				return nil, attachError("DMA line "+l.name, err)
			}
			e.release.push(line.Close)
			*l.dst = line
		}
	}

	e.channels = stream.NewChannelPair(e.regs)
	e.channels.InitAll()

	log.Info("DMA engine attached",
		"device", info.Path,
		"name", info.Name,
		"interrupts", cfg.DmaInterrupts)
	return e, nil
}

// Info returns the UIO device of the register window
func (e *DmaEngine) Info() UioDevice {
	return e.info
}

// Channels returns the MM2S and S2MM channel controllers
func (e *DmaEngine) Channels() *stream.ChannelPair {
	return e.channels
}

// Bindings returns the interrupt bindings of the opened channel lines
func (e *DmaEngine) Bindings() []control.Binding {
	var b []control.Binding
	if e.mm2s != nil {
		b = append(b, control.Bind(e.mm2s, control.DmaHandler(e.channels.MM2S)))
	}
	if e.s2mm != nil {
		b = append(b, control.Bind(e.s2mm, control.DmaHandler(e.channels.S2MM)))
	}
	return b
}

// Detach releases the engine in reverse attach order
func (e *DmaEngine) Detach() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.release.run()
}
