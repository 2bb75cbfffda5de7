package driver

import "fmt"

// DmaDataDirection represents DMA transfer direction
type DmaDataDirection uint32

const (
	DmaNone       DmaDataDirection = 0
	DmaToDevice   DmaDataDirection = 1 // MM2S, memory to stream
	DmaFromDevice DmaDataDirection = 2 // S2MM, stream to memory
)

// String returns the AXI DMA channel name for the direction
func (d DmaDataDirection) String() string {
	switch d {
	case DmaNone:
		return "none"
	case DmaToDevice:
		return "MM2S"
	case DmaFromDevice:
		return "S2MM"
	default:
		return fmt.Sprintf("direction(%d)", uint32(d))
	}
}

// MapInfo describes one memory region of a UIO device as reported by
// /sys/class/uio/uioN/maps/mapM
type MapInfo struct {
	Name   string
	Addr   uint64
	Size   uint64
	Offset uint64
}

// End returns the last physical address covered by the region
func (m MapInfo) End() uint64 {
	if m.Size == 0 {
		return m.Addr
	}
	return m.Addr + m.Size - 1
}
