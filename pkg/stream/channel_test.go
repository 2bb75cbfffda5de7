//go:build unit

package stream

import (
	"sync"
	"testing"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

type regWrite struct {
	offset uint32
	value  uint32
}

// recordingRegs is a plain register file that logs writes
type recordingRegs struct {
	mu     sync.Mutex
	regs   map[uint32]uint32
	writes []regWrite
}

func newRecordingRegs() *recordingRegs {
	return &recordingRegs{regs: make(map[uint32]uint32)}
}

func (r *recordingRegs) Read32(offset uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[offset]
}

func (r *recordingRegs) Write32(offset uint32, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[offset] = value
	r.writes = append(r.writes, regWrite{offset, value})
}

func TestChannelLayouts(t *testing.T) {
	if S2MMLayout.Control-MM2SLayout.Control != driver.DmaChannelBlockOffset {
		t.Errorf("channel blocks are 0x%x apart, expected 0x%x",
			S2MMLayout.Control-MM2SLayout.Control, driver.DmaChannelBlockOffset)
	}

	mm2s := NewChannel(newRecordingRegs(), driver.DmaToDevice)
	if mm2s.Layout() != MM2SLayout {
		t.Error("MM2S channel should use the MM2S layout")
	}
	s2mm := NewChannel(newRecordingRegs(), driver.DmaFromDevice)
	if s2mm.Layout() != S2MMLayout {
		t.Error("S2MM channel should use the S2MM layout")
	}
}

func TestChannelInit(t *testing.T) {
	regs := newRecordingRegs()
	ch := NewChannel(regs, driver.DmaToDevice)
	ch.Init()

	want := []regWrite{
		{driver.MM2SControlRegister, driver.DmaCrReset},
		{driver.MM2SControlRegister, driver.DmaCrReset | driver.DmaCrIrqEnable},
	}
	if len(regs.writes) != len(want) {
		t.Fatalf("writes = %+v, expected %+v", regs.writes, want)
	}
	for i := range want {
		if regs.writes[i] != want[i] {
			t.Errorf("write %d = %+v, expected %+v", i, regs.writes[i], want[i])
		}
	}
}

func TestChannelTransferOrder(t *testing.T) {
	regs := newRecordingRegs()
	ch := NewChannel(regs, driver.DmaFromDevice)

	if err := ch.Transfer(0x3e000000, 380160); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	want := []regWrite{
		{driver.S2MMControlRegister, driver.DmaCrIrqEnable},
		{driver.S2MMControlRegister, driver.DmaCrIrqEnable | driver.DmaCrRunStop},
		{driver.S2MMDestAddress, 0x3e000000},
		{driver.S2MMLengthRegister, 380160},
	}
	if len(regs.writes) != len(want) {
		t.Fatalf("writes = %+v, expected %+v", regs.writes, want)
	}
	for i := range want {
		if regs.writes[i] != want[i] {
			t.Errorf("write %d = %+v, expected %+v", i, regs.writes[i], want[i])
		}
	}
}

func TestChannelTransferRejects(t *testing.T) {
	tests := []struct {
		name   string
		addr   uint64
		length int
		status driver.Status
	}{
		{"zero length", 0x1000, 0, driver.StatusTransferOverrun},
		{"too long", 0x1000, driver.MaxPacketLen + 1, driver.StatusTransferOverrun},
		{"64-bit address", 0x100000000, 16, driver.StatusInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := newRecordingRegs()
			err := NewChannel(regs, driver.DmaToDevice).Transfer(tt.addr, tt.length)
			if !driver.IsStatus(err, tt.status) {
				t.Errorf("Transfer = %v, expected %s", err, tt.status)
			}
			if len(regs.writes) != 0 {
				t.Errorf("rejected transfer wrote registers: %+v", regs.writes)
			}
		})
	}
}

func TestChannelAcknowledge(t *testing.T) {
	regs := newRecordingRegs()
	regs.regs[driver.MM2SStatusRegister] = driver.DmaSrIdle | driver.DmaSrIocIrq
	ch := NewChannel(regs, driver.DmaToDevice)

	sr := ch.Acknowledge()
	if sr != driver.DmaSrIdle|driver.DmaSrIocIrq {
		t.Errorf("Acknowledge() = 0x%x", sr)
	}
	last := regs.writes[len(regs.writes)-1]
	want := regWrite{driver.MM2SStatusRegister, sr | 0x5000}
	if last != want {
		t.Errorf("acknowledge wrote %+v, expected %+v", last, want)
	}
	if ch.Interrupts() != 1 {
		t.Errorf("Interrupts() = %d, expected 1", ch.Interrupts())
	}
	if !ch.Idle() || ch.Halted() {
		t.Error("expected idle, running channel")
	}
}

func TestChannelPairRouting(t *testing.T) {
	regs := newRecordingRegs()
	pair := NewChannelPair(regs)
	pair.InitAll()

	if err := pair.Transfer(driver.DmaToDevice, 0x1000, 428); err != nil {
		t.Fatalf("MM2S transfer failed: %v", err)
	}
	if regs.regs[driver.MM2SLengthRegister] != 428 {
		t.Errorf("MM2S length = %d, expected 428", regs.regs[driver.MM2SLengthRegister])
	}
	if err := pair.Transfer(driver.DmaNone, 0x1000, 428); !driver.IsStatus(err, driver.StatusInvalidArgument) {
		t.Errorf("Transfer(DmaNone) = %v, expected InvalidArgument", err)
	}
}
