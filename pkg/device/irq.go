package device

import (
	"context"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// IRQLine is the interrupt line of one UIO device. It satisfies
// control.InterruptLine.
type IRQLine struct {
	name  string
	df    *driver.DeviceFile
	owned bool
}

// OpenIRQLine opens the UIO node of dev for its interrupt
func OpenIRQLine(dev UioDevice) (*IRQLine, error) {
	df, err := driver.OpenDevice(dev.Path)
	if err != nil {
		return nil, err
	}
	return &IRQLine{name: dev.Name, df: df, owned: true}, nil
}

// sharedIRQLine uses the interrupt of an already open device file
func sharedIRQLine(name string, df *driver.DeviceFile) *IRQLine {
	return &IRQLine{name: name, df: df}
}

// Name returns the UIO device name
func (l *IRQLine) Name() string {
	return l.name
}

// Enable arms the line
func (l *IRQLine) Enable() error {
	return l.df.EnableInterrupt(true)
}

// Wait blocks until the line fires and returns the event count
func (l *IRQLine) Wait(ctx context.Context) (uint32, error) {
	return l.df.WaitInterrupt(ctx)
}

// Close masks the line and closes the node if the line owns it
func (l *IRQLine) Close() error {
	if !l.owned {
		return nil
	}
	l.df.EnableInterrupt(false)
	return l.df.Close()
}
