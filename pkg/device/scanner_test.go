//go:build unit

package device

import (
	"errors"
	"testing"

	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/testutil"
)

func TestScanFindsDevicesInMockSysfs(t *testing.T) {
	sysfs, dev := testutil.MockUioSysfs(t,
		testutil.FakeUioDevice{Name: "title_ip", Maps: []driver.MapInfo{{Addr: 0x43c00000, Size: 0x10000}}},
		testutil.FakeUioDevice{Name: "dma_ip", Maps: []driver.MapInfo{{Name: "regs", Addr: 0x40400000, Size: 0x10000}}},
	)

	devices, err := NewScannerAt(sysfs, dev).Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, found %d", len(devices))
	}

	if devices[0].Name != "title_ip" || devices[0].Index != 0 {
		t.Errorf("device 0 = %+v", devices[0])
	}
	if len(devices[1].Maps) != 1 || devices[1].Maps[0].Addr != 0x40400000 || devices[1].Maps[0].Name != "regs" {
		t.Errorf("device 1 maps = %+v", devices[1].Maps)
	}
	if devices[0].Maps[0].Size != 0x10000 {
		t.Errorf("map size = 0x%x, expected 0x10000", devices[0].Maps[0].Size)
	}
}

func TestScanSkipsDevicesWithoutNode(t *testing.T) {
	sysfs, dev := testutil.MockUioSysfs(t,
		testutil.FakeUioDevice{Name: "title_ip", NoNode: true},
		testutil.FakeUioDevice{Name: "dma_ip"},
	)

	devices, err := NewScannerAt(sysfs, dev).Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "dma_ip" {
		t.Errorf("devices = %+v, expected only dma_ip", devices)
	}
}

func TestScanEmptyWhenNoDevices(t *testing.T) {
	sysfs, dev := testutil.MockUioSysfs(t)

	devices, err := NewScannerAt(sysfs, dev).Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected 0 devices, found %d", len(devices))
	}
}

func TestScanMissingSysfsIsEmpty(t *testing.T) {
	devices, err := NewScannerAt(t.TempDir()+"/nope", t.TempDir()).Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected 0 devices, found %d", len(devices))
	}
}

func TestFindMatchesNameExactly(t *testing.T) {
	sysfs, dev := testutil.MockUioSysfs(t,
		testutil.FakeUioDevice{Name: "title_ip_frame"},
		testutil.FakeUioDevice{Name: "title_ip"},
	)
	s := NewScannerAt(sysfs, dev)

	got, err := s.Find("title_ip")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got.Index != 1 {
		t.Errorf("Find(title_ip) returned uio%d, expected uio1", got.Index)
	}

	// names built at runtime must match too, not only identical literals
	name := string([]byte("title_ip_frame"))
	got, err = s.Find(name)
	if err != nil || got.Index != 0 {
		t.Errorf("Find(%q) = uio%d, %v", name, got.Index, err)
	}

	_, err = s.Find("title")
	if !errors.Is(err, ErrNoDevices) || !driver.IsStatus(err, driver.StatusNotFound) {
		t.Errorf("Find(title) = %v, expected not found", err)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.sysfsPath != "/sys/class/uio" {
		t.Errorf("unexpected sysfs path: %s", scanner.sysfsPath)
	}
	if scanner.devPath != "/dev" {
		t.Errorf("unexpected dev path: %s", scanner.devPath)
	}
}
