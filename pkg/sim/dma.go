package sim

import (
	"io"
	"sync"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Memory is the bus memory the simulated DMA engine reads and writes
type Memory interface {
	io.ReaderAt
	io.WriterAt
}

// TransferRecord is one transfer the engine performed
type TransferRecord struct {
	Direction driver.DmaDataDirection
	Addr      uint32
	Length    int
}

// DMA simulates an AXI DMA engine in simple mode connected to a TitleIP.
//
// Writing the MM2S length register streams that many bytes from memory to
// the title IP immediately. Writing the S2MM length register posts a receive
// that the next SendFromBram fills.
type DMA struct {
	Regs     *RegisterFile
	MM2SLine *Line
	S2MMLine *Line

	mem  Memory
	base uint64
	ip   *TitleIP

	mu        sync.Mutex
	recv      *TransferRecord
	transfers []TransferRecord
}

// NewDMA returns an engine moving data between mem, which starts at bus
// address base, and ip.
func NewDMA(mem Memory, base uint64, ip *TitleIP) *DMA {
	d := &DMA{
		Regs:     NewRegisterFile(),
		MM2SLine: NewLine("dma-mm2s"),
		S2MMLine: NewLine("dma-s2mm"),
		mem:      mem,
		base:     base,
		ip:       ip,
	}
	d.Regs.Set(driver.MM2SStatusRegister, driver.DmaSrHalted)
	d.Regs.Set(driver.S2MMStatusRegister, driver.DmaSrHalted)
	d.Regs.SetHook(d.onWrite)
	if ip != nil {
		ip.connect(d.deliver)
	}
	return d
}

// Transfers returns the transfers performed so far
func (d *DMA) Transfers() []TransferRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TransferRecord(nil), d.transfers...)
}

func (d *DMA) onWrite(offset, old, value uint32) uint32 {
	switch offset {
	case driver.MM2SControlRegister, driver.S2MMControlRegister:
		status := offset + (driver.MM2SStatusRegister - driver.MM2SControlRegister)
		if value&driver.DmaCrReset != 0 {
			// reset self-clears and leaves the channel halted
			d.Regs.Set(status, driver.DmaSrHalted)
			return 0
		}
		if value&driver.DmaCrRunStop != 0 {
			d.Regs.Set(status, d.Regs.Peek(status)&^driver.DmaSrHalted)
		}
		return value
	case driver.MM2SStatusRegister, driver.S2MMStatusRegister:
		// interrupt bits are write-one-to-clear, the rest is read-only
		return old &^ (value & driver.DmaSrIrqMask)
	case driver.MM2SLengthRegister:
		d.send(value)
	case driver.S2MMLengthRegister:
		addr := d.Regs.Peek(driver.S2MMDestAddress)
		d.mu.Lock()
		d.recv = &TransferRecord{Direction: driver.DmaFromDevice, Addr: addr, Length: int(value)}
		d.transfers = append(d.transfers, *d.recv)
		d.mu.Unlock()
	}
	return value
}

func (d *DMA) send(length uint32) {
	addr := d.Regs.Peek(driver.MM2SSourceAddress)
	data := make([]byte, length)
	if _, err := d.mem.ReadAt(data, int64(uint64(addr)-d.base)); err != nil {
		d.fail(driver.MM2SStatusRegister)
		return
	}
	d.mu.Lock()
	d.transfers = append(d.transfers, TransferRecord{Direction: driver.DmaToDevice, Addr: addr, Length: int(length)})
	d.mu.Unlock()

	if d.ip != nil {
		d.ip.Receive(data)
	}
	d.complete(driver.MM2SControlRegister, driver.MM2SStatusRegister, d.MM2SLine)
}

// deliver writes a stream from the title IP into the posted receive
func (d *DMA) deliver(data []byte) {
	d.mu.Lock()
	recv := d.recv
	d.recv = nil
	d.mu.Unlock()
	if recv == nil {
		return
	}

	out := make([]byte, recv.Length)
	copy(out, data)
	if _, err := d.mem.WriteAt(out, int64(uint64(recv.Addr)-d.base)); err != nil {
		d.fail(driver.S2MMStatusRegister)
		return
	}
	d.complete(driver.S2MMControlRegister, driver.S2MMStatusRegister, d.S2MMLine)
}

func (d *DMA) complete(control, status uint32, line *Line) {
	d.Regs.Set(status, d.Regs.Peek(status)|driver.DmaSrIdle|driver.DmaSrIocIrq)
	if d.Regs.Peek(control)&driver.DmaCrIocIrqEn != 0 {
		line.Fire()
	}
}

func (d *DMA) fail(status uint32) {
	d.Regs.Set(status, d.Regs.Peek(status)|driver.DmaSrErrIrq|driver.DmaSrHalted)
}
