package device

import (
	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/sim"
)

// Simulate wires a simulated rig into a System. Closing the System stops
// the rig.
func Simulate(rig *sim.Rig, opts control.Options) *System {
	channels := rig.Attach()
	lines := Lines{
		Command: rig.Title.CommandLine,
		Frame:   rig.Title.FrameLine,
		MM2S:    rig.DMA.MM2SLine,
		S2MM:    rig.DMA.S2MMLine,
	}
	return NewSystem(rig.Title.Regs, channels, rig.Buffer, lines, opts, rig.Close)
}
