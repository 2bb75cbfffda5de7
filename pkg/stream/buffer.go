package stream

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Default locations of the u-dma-buf driver
const (
	UdmabufSysfsClass = "/sys/class/u-dma-buf"
	UdmabufDevDir     = "/dev"
)

// TransferBuffer is the single DMA-capable buffer shared by the host and
// the DMA engine. It is physically contiguous, uncached, has a fixed
// capacity and is zeroed when opened and when closed.
type TransferBuffer struct {
	data     []byte
	physAddr uint64
	device   *driver.DeviceFile
	name     string
	mu       sync.Mutex
	mapped   bool
	closed   bool
}

// OpenUdmabuf opens the u-dma-buf named name (for example "udmabuf0") and
// maps MaxPacketLen bytes of it.
func OpenUdmabuf(name string) (*TransferBuffer, error) {
	return OpenUdmabufAt(UdmabufSysfsClass, UdmabufDevDir, name, driver.MaxPacketLen)
}

// OpenUdmabufAt is OpenUdmabuf with explicit sysfs and /dev roots
func OpenUdmabufAt(sysfsClass, devDir, name string, capacity int) (*TransferBuffer, error) {
	if capacity <= 0 {
		return nil, driver.NewError(driver.StatusInvalidArgument, "buffer capacity must be positive")
	}
	attrDir := filepath.Join(sysfsClass, name)

	physAddr, err := readSysfsUint(filepath.Join(attrDir, "phys_addr"))
	if err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusResourceUnavailable, "reading phys_addr of "+name, err)
	}
	if physAddr > 0xffffffff {
		// only the low address registers are programmed
		return nil, driver.NewError(driver.StatusResourceUnavailable,
			fmt.Sprintf("%s at 0x%x is not 32-bit addressable", name, physAddr))
	}
	size, err := readSysfsUint(filepath.Join(attrDir, "size"))
	if err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusResourceUnavailable, "reading size of "+name, err)
	}
	if size < uint64(capacity) {
		return nil, driver.NewError(driver.StatusResourceUnavailable,
			fmt.Sprintf("%s holds %d bytes, need %d", name, size, capacity))
	}

	dev, err := driver.OpenDevice(filepath.Join(devDir, name))
	if err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusResourceUnavailable, "opening "+name, err)
	}
	data, err := dev.MapRegion(0, capacity)
	if err != nil {
		dev.Close()
		return nil, driver.NewErrorWithCause(driver.StatusResourceUnavailable, "mapping "+name, err)
	}

	buf := &TransferBuffer{
		data:     data,
		physAddr: physAddr,
		device:   dev,
		name:     name,
		mapped:   true,
	}
	buf.Zero()
	return buf, nil
}

// NewMemBuffer returns a heap-backed TransferBuffer that reports physAddr
// as its bus address. It stands in for real DMA memory in simulation and
// tests.
func NewMemBuffer(capacity int, physAddr uint64) *TransferBuffer {
	return &TransferBuffer{
		data:     make([]byte, capacity),
		physAddr: physAddr,
		name:     "mem",
	}
}

// Data returns the whole buffer
func (b *TransferBuffer) Data() []byte {
	return b.data
}

// PhysAddr returns the bus address the DMA engine uses for the buffer
func (b *TransferBuffer) PhysAddr() uint64 {
	return b.physAddr
}

// Cap returns the fixed buffer capacity in bytes
func (b *TransferBuffer) Cap() int {
	return len(b.data)
}

// Name returns the backing buffer name
func (b *TransferBuffer) Name() string {
	return b.name
}

// Expose returns the first n bytes of the buffer for direct, zero-copy
// access. n <= 0 exposes the whole buffer. Requests larger than the
// capacity fail with StatusTransferOverrun and expose nothing.
func (b *TransferBuffer) Expose(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, driver.NewError(driver.StatusClosed, "exposing buffer")
	}
	if n <= 0 {
		n = len(b.data)
	}
	if n > len(b.data) {
		return nil, driver.NewError(driver.StatusTransferOverrun,
			fmt.Sprintf("exposing %d bytes of a %d byte buffer", n, len(b.data)))
	}
	return b.data[:n:n], nil
}

// WriteAt copies p into the buffer at off. A write that would not fit is
// rejected whole with StatusTransferOverrun.
func (b *TransferBuffer) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, driver.NewError(driver.StatusClosed, "writing buffer")
	}
	if off < 0 || off+int64(len(p)) > int64(len(b.data)) {
		return 0, driver.NewError(driver.StatusTransferOverrun,
			fmt.Sprintf("writing %d bytes at %d into a %d byte buffer", len(p), off, len(b.data)))
	}
	return copy(b.data[off:], p), nil
}

// ReadAt copies buffer contents at off into p
func (b *TransferBuffer) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, driver.NewError(driver.StatusClosed, "reading buffer")
	}
	if off < 0 || off+int64(len(p)) > int64(len(b.data)) {
		return 0, driver.NewError(driver.StatusTransferOverrun,
			fmt.Sprintf("reading %d bytes at %d from a %d byte buffer", len(p), off, len(b.data)))
	}
	return copy(p, b.data[off:]), nil
}

// Zero clears the buffer
func (b *TransferBuffer) Zero() {
	clear(b.data)
}

// Close zeroes the buffer and releases the mapping
func (b *TransferBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	clear(b.data)

	if !b.mapped {
		return nil
	}
	b.mapped = false
	if err := driver.UnmapRegion(b.data); err != nil {
		b.device.Close()
		return fmt.Errorf("unmapping %s: %w", b.name, err)
	}
	b.data = nil
	return b.device.Close()
}

func readSysfsUint(path string) (uint64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 64)
}
