package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Default sysfs and /dev locations of UIO devices
const (
	UioSysfsClass = "/sys/class/uio"
	UioDevDir     = "/dev"
)

// UioDevice contains discovered device information
type UioDevice struct {
	Index int
	Name  string
	Path  string
	Maps  []driver.MapInfo
}

// DeviceScanner scans for UIO devices
type DeviceScanner struct {
	sysfsPath string
	devPath   string
}

// NewScanner creates a scanner over the default locations
func NewScanner() *DeviceScanner {
	return &DeviceScanner{
		sysfsPath: UioSysfsClass,
		devPath:   UioDevDir,
	}
}

// NewScannerAt creates a scanner over explicit sysfs and /dev roots
func NewScannerAt(sysfsPath, devPath string) *DeviceScanner {
	return &DeviceScanner{sysfsPath: sysfsPath, devPath: devPath}
}

// Scan finds all UIO devices that have a device node, ordered by index
func (s *DeviceScanner) Scan() ([]UioDevice, error) {
	if s.sysfsPath == "" {
		s.sysfsPath = UioSysfsClass
	}
	if s.devPath == "" {
		s.devPath = UioDevDir
	}

	entries, err := os.ReadDir(s.sysfsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.sysfsPath, err)
	}

	var devices []UioDevice
	for _, entry := range entries {
		// sysfs class entries are symlinks, so IsDir is not checked
		index, ok := uioIndex(entry.Name())
		if !ok {
			continue
		}
		devPath := filepath.Join(s.devPath, entry.Name())
		if _, err := os.Stat(devPath); err != nil {
			continue
		}

		dir := filepath.Join(s.sysfsPath, entry.Name())
		name, err := readAttr(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		maps, err := readMaps(filepath.Join(dir, "maps"))
		if err != nil {
			return nil, fmt.Errorf("failed to read maps of %s: %w", entry.Name(), err)
		}
		devices = append(devices, UioDevice{
			Index: index,
			Name:  name,
			Path:  devPath,
			Maps:  maps,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices, nil
}

// Find returns the device whose name equals name exactly
func (s *DeviceScanner) Find(name string) (UioDevice, error) {
	devices, err := s.Scan()
	if err != nil {
		return UioDevice{}, err
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return UioDevice{}, driver.NewErrorWithCause(driver.StatusNotFound,
		fmt.Sprintf("UIO device %q", name), ErrNoDevices)
}

// Scan uses the default scanner to find all UIO devices
func Scan() ([]UioDevice, error) {
	return NewScanner().Scan()
}

func uioIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "uio")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func readAttr(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func readUintAttr(path string) (uint64, error) {
	s, err := readAttr(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 0, 64)
}

// readMaps reads mapN directories in index order. A device without maps
// has none.
func readMaps(dir string) ([]driver.MapInfo, error) {
	var maps []driver.MapInfo
	for i := 0; ; i++ {
		mapDir := filepath.Join(dir, fmt.Sprintf("map%d", i))
		if _, err := os.Stat(mapDir); err != nil {
			break
		}
		var m driver.MapInfo
		var err error
		if m.Addr, err = readUintAttr(filepath.Join(mapDir, "addr")); err != nil {
			return nil, err
		}
		if m.Size, err = readUintAttr(filepath.Join(mapDir, "size")); err != nil {
			return nil, err
		}
		// offset and name are missing on older kernels
		m.Offset, _ = readUintAttr(filepath.Join(mapDir, "offset"))
		m.Name, _ = readAttr(filepath.Join(mapDir, "name"))
		maps = append(maps, m)
	}
	return maps, nil
}
