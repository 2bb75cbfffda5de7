// Package sim simulates the title IP and the AXI DMA engine in memory so
// the driver stack can run without hardware.
package sim

import (
	"sync"
)

// Access is one recorded register access
type Access struct {
	Write  bool
	Offset uint32
	Value  uint32
}

// WriteHook observes a register write and returns the value the register
// holds afterwards. It runs without the register file lock held.
type WriteHook func(offset, old, value uint32) uint32

// RegisterFile is an in-memory driver.Registers that records every access
type RegisterFile struct {
	mu   sync.Mutex
	regs map[uint32]uint32
	log  []Access
	hook WriteHook
}

// NewRegisterFile returns an empty register file
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{regs: make(map[uint32]uint32)}
}

// SetHook installs the write hook
func (r *RegisterFile) SetHook(h WriteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = h
}

// Read32 implements driver.Registers
func (r *RegisterFile) Read32(offset uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.regs[offset]
	r.log = append(r.log, Access{Offset: offset, Value: v})
	return v
}

// Write32 implements driver.Registers
func (r *RegisterFile) Write32(offset uint32, value uint32) {
	r.mu.Lock()
	old := r.regs[offset]
	r.regs[offset] = value
	r.log = append(r.log, Access{Write: true, Offset: offset, Value: value})
	hook := r.hook
	r.mu.Unlock()

	if hook == nil {
		return
	}
	if stored := hook(offset, old, value); stored != value {
		r.Set(offset, stored)
	}
}

// Peek reads a register without recording the access
func (r *RegisterFile) Peek(offset uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[offset]
}

// Set writes a register without recording the access or running the hook.
// It models the hardware changing its own state.
func (r *RegisterFile) Set(offset uint32, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[offset] = value
}

// Log returns a copy of every recorded access
func (r *RegisterFile) Log() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Access, len(r.log))
	copy(out, r.log)
	return out
}

// Writes returns the recorded writes in order
func (r *RegisterFile) Writes() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Access
	for _, a := range r.log {
		if a.Write {
			out = append(out, a)
		}
	}
	return out
}

// WritesTo returns the values written to offset in order
func (r *RegisterFile) WritesTo(offset uint32) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint32
	for _, a := range r.log {
		if a.Write && a.Offset == offset {
			out = append(out, a.Value)
		}
	}
	return out
}

// ClearLog forgets recorded accesses
func (r *RegisterFile) ClearLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
