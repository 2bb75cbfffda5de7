//go:build unit

package driver

import (
	"testing"
)

func TestMappedRegistersReadWrite(t *testing.T) {
	mem := make([]byte, 0x60)
	regs := NewMappedRegisters(mem)

	regs.Write32(MM2SLengthRegister, 0x0005eb00)
	if got := regs.Read32(MM2SLengthRegister); got != 0x0005eb00 {
		t.Errorf("Read32 = 0x%x, expected 0x5eb00", got)
	}

	// the backing memory sees the native-endian word
	if mem[MM2SLengthRegister] == 0 && mem[MM2SLengthRegister+1] == 0 &&
		mem[MM2SLengthRegister+2] == 0 && mem[MM2SLengthRegister+3] == 0 {
		t.Error("write did not reach the mapped window")
	}

	if regs.Size() != 0x60 {
		t.Errorf("Size() = %d, expected 0x60", regs.Size())
	}
}

func TestMappedRegistersPanicsOutsideWindow(t *testing.T) {
	regs := NewMappedRegisters(make([]byte, 8))

	tests := []struct {
		name   string
		offset uint32
	}{
		{"past end", 8},
		{"straddles end", 6},
		{"unaligned", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for offset 0x%x", tt.offset)
				}
			}()
			regs.Read32(tt.offset)
		})
	}
}
