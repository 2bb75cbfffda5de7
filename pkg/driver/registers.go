package driver

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Registers is a 32-bit register file addressed by byte offset.
//
// Implementations must not cache, merge or reorder accesses: every Read32
// reaches the device and every Write32 is issued in program order.
type Registers interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// MappedRegisters accesses a memory-mapped register window.
//
// Accesses go through sync/atomic so the compiler can neither hoist nor
// elide them, which is what the hardware needs from a "volatile" pointer.
type MappedRegisters struct {
	mem []byte
}

// NewMappedRegisters wraps an mmap'd register window
func NewMappedRegisters(mem []byte) *MappedRegisters {
	return &MappedRegisters{mem: mem}
}

// Size returns the size of the register window in bytes
func (r *MappedRegisters) Size() int {
	return len(r.mem)
}

func (r *MappedRegisters) word(offset uint32) *uint32 {
	if offset%4 != 0 || int(offset)+4 > len(r.mem) {
		panic(fmt.Sprintf("register offset 0x%x outside %d byte window", offset, len(r.mem)))
	}
	return (*uint32)(unsafe.Pointer(&r.mem[offset]))
}

// Read32 implements Registers
func (r *MappedRegisters) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(r.word(offset))
}

// Write32 implements Registers
func (r *MappedRegisters) Write32(offset uint32, value uint32) {
	atomic.StoreUint32(r.word(offset), value)
}
