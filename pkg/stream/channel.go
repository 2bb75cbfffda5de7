package stream

import (
	"fmt"
	"sync/atomic"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// ChannelLayout holds the register offsets of one AXI DMA channel block
type ChannelLayout struct {
	Control uint32
	Status  uint32
	Address uint32
	Length  uint32
}

// Register layouts of the two AXI DMA channels
var (
	MM2SLayout = ChannelLayout{
		Control: driver.MM2SControlRegister,
		Status:  driver.MM2SStatusRegister,
		Address: driver.MM2SSourceAddress,
		Length:  driver.MM2SLengthRegister,
	}
	S2MMLayout = ChannelLayout{
		Control: driver.S2MMControlRegister,
		Status:  driver.S2MMStatusRegister,
		Address: driver.S2MMDestAddress,
		Length:  driver.S2MMLengthRegister,
	}
)

// Channel drives one direction of the AXI DMA engine in simple mode.
//
// Channel keeps no software state beyond an interrupt counter: everything
// else lives in the hardware registers. Callers serialise Init and
// Transfer; Acknowledge may run concurrently from interrupt context.
type Channel struct {
	regs       driver.Registers
	direction  driver.DmaDataDirection
	layout     ChannelLayout
	interrupts atomic.Uint64
}

// NewChannel returns the channel of regs that moves data in direction
func NewChannel(regs driver.Registers, direction driver.DmaDataDirection) *Channel {
	layout := MM2SLayout
	if direction == driver.DmaFromDevice {
		layout = S2MMLayout
	}
	return &Channel{
		regs:      regs,
		direction: direction,
		layout:    layout,
	}
}

// Direction returns the direction the channel moves data in
func (c *Channel) Direction() driver.DmaDataDirection {
	return c.direction
}

// Layout returns the channel register offsets
func (c *Channel) Layout() ChannelLayout {
	return c.layout
}

// Init resets the channel and enables its completion and error interrupts
func (c *Channel) Init() {
	c.regs.Write32(c.layout.Control, driver.DmaCrReset)
	cr := c.regs.Read32(c.layout.Control)
	c.regs.Write32(c.layout.Control, cr|driver.DmaCrIrqEnable)
}

// Transfer programs a one-shot transfer of length bytes at bus address addr.
//
// The writes are strictly ordered: interrupt enables, run bit, address,
// length. The hardware starts consuming the transfer when the length is
// written. Transfer returns as soon as the registers are programmed;
// completion is reported by interrupt.
func (c *Channel) Transfer(addr uint64, length int) error {
	if length <= 0 || length > driver.MaxPacketLen {
		return driver.NewError(driver.StatusTransferOverrun,
			fmt.Sprintf("%s transfer of %d bytes", c.direction, length))
	}
	if addr > 0xffffffff {
		return driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("%s address 0x%x is not 32-bit", c.direction, addr))
	}

	cr := c.regs.Read32(c.layout.Control)
	c.regs.Write32(c.layout.Control, cr|driver.DmaCrIrqEnable)

	cr = c.regs.Read32(c.layout.Control)
	c.regs.Write32(c.layout.Control, cr|driver.DmaCrRunStop)

	c.regs.Write32(c.layout.Address, uint32(addr))
	c.regs.Write32(c.layout.Length, uint32(length))
	return nil
}

// Acknowledge clears the completion and error interrupt status bits and
// returns the status seen before the clear. It does O(1) work and never
// blocks, so it is safe to call from an interrupt handler.
func (c *Channel) Acknowledge() uint32 {
	sr := c.regs.Read32(c.layout.Status)
	c.regs.Write32(c.layout.Status, sr|driver.DmaSrIrqMask)
	c.interrupts.Add(1)
	return sr
}

// Interrupts returns the number of interrupts acknowledged on the channel
func (c *Channel) Interrupts() uint64 {
	return c.interrupts.Load()
}

// Status returns the raw status register
func (c *Channel) Status() uint32 {
	return c.regs.Read32(c.layout.Status)
}

// Halted reports whether the channel is stopped
func (c *Channel) Halted() bool {
	return c.Status()&driver.DmaSrHalted != 0
}

// Idle reports whether the channel finished its last transfer
func (c *Channel) Idle() bool {
	return c.Status()&driver.DmaSrIdle != 0
}

// ChannelPair bundles the two channels of one DMA engine
type ChannelPair struct {
	MM2S *Channel
	S2MM *Channel
}

// NewChannelPair returns both channels of the engine behind regs
func NewChannelPair(regs driver.Registers) *ChannelPair {
	return &ChannelPair{
		MM2S: NewChannel(regs, driver.DmaToDevice),
		S2MM: NewChannel(regs, driver.DmaFromDevice),
	}
}

// InitAll initialises both channels. Both are armed because either may be
// used by a command.
func (p *ChannelPair) InitAll() {
	p.MM2S.Init()
	p.S2MM.Init()
}

// Channel returns the channel for direction
func (p *ChannelPair) Channel(direction driver.DmaDataDirection) (*Channel, error) {
	switch direction {
	case driver.DmaToDevice:
		return p.MM2S, nil
	case driver.DmaFromDevice:
		return p.S2MM, nil
	default:
		return nil, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("no DMA channel for direction %s", direction))
	}
}

// Transfer starts a transfer on the channel matching direction
func (p *ChannelPair) Transfer(direction driver.DmaDataDirection, addr uint64, length int) error {
	ch, err := p.Channel(direction)
	if err != nil {
		return err
	}
	return ch.Transfer(addr, length)
}
