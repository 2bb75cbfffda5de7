package driver

import (
	"context"
	"encoding/binary"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// irqPollInterval bounds how long WaitInterrupt sleeps in poll(2) before it
// rechecks its context.
const irqPollInterval = 100 * time.Millisecond

// DeviceFile represents an open UIO device file descriptor
type DeviceFile struct {
	fd   int
	path string
}

// OpenDevice opens a UIO device by path
func OpenDevice(path string) (*DeviceFile, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_SYNC, 0)
	if err != nil {
		return nil, wrapSyscallError(err, "opening device "+path)
	}
	return &DeviceFile{fd: fd, path: path}, nil
}

// Close closes the device file
func (d *DeviceFile) Close() error {
	if d.fd >= 0 {
		err := unix.Close(d.fd)
		d.fd = -1
		if err != nil {
			return NewErrorWithCause(StatusDriverOperationFailed, "closing device", err)
		}
	}
	return nil
}

// Fd returns the file descriptor
func (d *DeviceFile) Fd() int {
	return d.fd
}

// Path returns the device path
func (d *DeviceFile) Path() string {
	return d.path
}

// MapRegion maps UIO memory region index into the process. UIO selects the
// region through the mmap offset: region N lives at N pages.
func (d *DeviceFile) MapRegion(index int, size int) ([]byte, error) {
	if d.fd < 0 {
		return nil, NewError(StatusClosed, "mapping region")
	}
	if size <= 0 {
		return nil, NewError(StatusInvalidArgument, "mapping region of zero size")
	}
	mem, err := unix.Mmap(d.fd, int64(index*os.Getpagesize()), size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, wrapSyscallError(err, "mmap "+d.path)
	}
	return mem, nil
}

// UnmapRegion releases a mapping returned by MapRegion
func UnmapRegion(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return wrapSyscallError(err, "munmap")
	}
	return nil
}

// EnableInterrupt arms (or masks) the interrupt line behind this UIO node.
// uio_pdrv_genirq masks the line after every delivery, so it must be
// re-armed after each event.
func (d *DeviceFile) EnableInterrupt(enable bool) error {
	var buf [4]byte
	v := uint32(UioIrqDisable)
	if enable {
		v = UioIrqEnable
	}
	binary.LittleEndian.PutUint32(buf[:], v)
	if _, err := unix.Write(d.fd, buf[:]); err != nil {
		return wrapSyscallError(err, "enabling interrupt on "+d.path)
	}
	return nil
}

// WaitInterrupt blocks until the UIO node reports an interrupt and returns
// the total event count. It returns ctx.Err() once ctx is done.
func (d *DeviceFile) WaitInterrupt(ctx context.Context) (uint32, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := unix.Poll(fds, int(irqPollInterval/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, wrapSyscallError(err, "poll "+d.path)
		}
		if n == 0 {
			continue
		}

		var buf [4]byte
		if _, err := unix.Read(d.fd, buf[:]); err != nil {
			return 0, wrapSyscallError(err, "reading interrupt count from "+d.path)
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}
}
