package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Move is one recorded FakeMover transfer
type Move struct {
	Direction driver.DmaDataDirection
	Addr      uint64
	Length    int
}

// FakeMover records DMA transfers instead of starting them
type FakeMover struct {
	mu     sync.Mutex
	moves  []Move
	failOn driver.DmaDataDirection
}

// NewFakeMover creates a mover that accepts every transfer
func NewFakeMover() *FakeMover {
	return &FakeMover{}
}

// FailOn makes transfers in direction fail
func (m *FakeMover) FailOn(direction driver.DmaDataDirection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = direction
}

// Transfer records the transfer
func (m *FakeMover) Transfer(direction driver.DmaDataDirection, addr uint64, length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != driver.DmaNone && direction == m.failOn {
		return errors.New("fake transfer error")
	}
	m.moves = append(m.moves, Move{Direction: direction, Addr: addr, Length: length})
	return nil
}

// Moves returns the recorded transfers
func (m *FakeMover) Moves() []Move {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Move(nil), m.moves...)
}

// FakeBuffer reports a fixed bus address
type FakeBuffer struct {
	Addr uint64
}

// PhysAddr returns the bus address
func (b FakeBuffer) PhysAddr() uint64 {
	return b.Addr
}

// FakeUioDevice describes one device for MockUioSysfs
type FakeUioDevice struct {
	Name string
	Maps []driver.MapInfo
	// NoNode leaves out the /dev entry
	NoNode bool
}

// MockUioSysfs builds a /sys/class/uio tree and matching /dev nodes under
// a temporary directory and returns both roots. Device i becomes uioi and
// its node is a one page regular file.
func MockUioSysfs(t *testing.T, devices ...FakeUioDevice) (sysfs, dev string) {
	t.Helper()

	root := t.TempDir()
	sysfs = filepath.Join(root, "sys", "class", "uio")
	dev = filepath.Join(root, "dev")
	for _, dir := range []string{sysfs, dev} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	for i, d := range devices {
		node := fmt.Sprintf("uio%d", i)
		dir := filepath.Join(sysfs, node)
		writeFile(t, filepath.Join(dir, "name"), d.Name+"\n")
		for j, m := range d.Maps {
			mapDir := filepath.Join(dir, "maps", fmt.Sprintf("map%d", j))
			writeFile(t, filepath.Join(mapDir, "addr"), fmt.Sprintf("0x%08x\n", m.Addr))
			writeFile(t, filepath.Join(mapDir, "size"), fmt.Sprintf("0x%08x\n", m.Size))
			writeFile(t, filepath.Join(mapDir, "offset"), fmt.Sprintf("0x%x\n", m.Offset))
			if m.Name != "" {
				writeFile(t, filepath.Join(mapDir, "name"), m.Name+"\n")
			}
		}
		if !d.NoNode {
			// a page of backing so register windows can be mapped
			path := filepath.Join(dev, node)
			writeFile(t, path, "")
			if err := os.Truncate(path, 4096); err != nil {
				t.Fatalf("failed to size %s: %v", path, err)
			}
		}
	}
	return sysfs, dev
}

// MockUdmabuf builds /sys/class/u-dma-buf/<name>/{phys_addr,size} under a
// temporary directory and a sparse regular file standing in for
// <dev>/<name>. Returns the sysfs root.
func MockUdmabuf(t *testing.T, dev, name string, physAddr uint64, size int) string {
	t.Helper()

	sysfs := filepath.Join(t.TempDir(), "sys", "class", "u-dma-buf")
	writeFile(t, filepath.Join(sysfs, name, "phys_addr"), fmt.Sprintf("0x%x\n", physAddr))
	writeFile(t, filepath.Join(sysfs, name, "size"), fmt.Sprintf("%d\n", size))

	path := filepath.Join(dev, name)
	writeFile(t, path, "")
	if err := os.Truncate(path, int64(size)); err != nil {
		t.Fatalf("failed to size %s: %v", path, err)
	}
	return sysfs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
