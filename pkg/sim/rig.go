package sim

import (
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/stream"
)

// BufferAddr is the bus address of the simulated transfer buffer
const BufferAddr = 0x1f000000

// Rig is a simulated title IP, its DMA engine and a transfer buffer
type Rig struct {
	Title  *TitleIP
	DMA    *DMA
	Buffer *stream.TransferBuffer
}

// NewRig returns a running rig. Close stops it.
func NewRig() *Rig {
	buf := stream.NewMemBuffer(driver.MaxPacketLen, BufferAddr)
	ip := NewTitleIP()
	return &Rig{
		Title:  ip,
		DMA:    NewDMA(buf, BufferAddr, ip),
		Buffer: buf,
	}
}

// Attach brings the rig up the way hardware is attached: the title IP is
// reset and both DMA channels are initialised.
func (r *Rig) Attach() *stream.ChannelPair {
	r.Title.Regs.Write32(driver.TitleCommandRegister, driver.CmdReset)
	channels := stream.NewChannelPair(r.DMA.Regs)
	channels.InitAll()
	return channels
}

// Close stops the rig
func (r *Rig) Close() error {
	r.Title.Close()
	return r.Buffer.Close()
}
