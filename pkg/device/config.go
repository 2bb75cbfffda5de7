package device

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/stream"
)

// Environment variables overriding Config fields
const (
	EnvTitleName      = "TITLE_IP_NAME"
	EnvTitleFrameName = "TITLE_IP_FRAME_NAME"
	EnvDmaName        = "TITLE_DMA_NAME"
	EnvDmaMM2SName    = "TITLE_DMA_MM2S_NAME"
	EnvDmaS2MMName    = "TITLE_DMA_S2MM_NAME"
	EnvDmaInterrupts  = "TITLE_DMA_INTERRUPTS"
	EnvUdmabuf        = "TITLE_UDMABUF"
	EnvTimeout        = "TITLE_TIMEOUT"
	EnvUioSysfs       = "TITLE_UIO_SYSFS"
	EnvDevDir         = "TITLE_DEV_DIR"
)

// Config selects the devices that make up a title system
type Config struct {
	// TitleName is the UIO name of the accelerator register window. Its
	// interrupt is the command-done line.
	TitleName string
	// TitleFrameName is the UIO name carrying the frame-done line.
	TitleFrameName string
	// DmaName is the UIO name of the DMA register window.
	DmaName string
	// DmaMM2SName and DmaS2MMName carry the DMA channel interrupts. They
	// are only opened when DmaInterrupts is set.
	DmaMM2SName   string
	DmaS2MMName   string
	DmaInterrupts bool
	// Udmabuf is the u-dma-buf backing the transfer buffer.
	Udmabuf string
	// Timeout bounds completion waits, see control.Options.
	Timeout time.Duration

	UioSysfs     string
	DevDir       string
	UdmabufSysfs string
}

// DefaultConfig returns the configuration of the reference design
func DefaultConfig() Config {
	return Config{
		TitleName:      driver.DefaultTitleName,
		TitleFrameName: driver.DefaultTitleFrameName,
		DmaName:        driver.DefaultDmaName,
		DmaMM2SName:    driver.DefaultDmaMM2SName,
		DmaS2MMName:    driver.DefaultDmaS2MMName,
		Udmabuf:        driver.DefaultUdmabufName,
		Timeout:        control.DefaultTimeout,
		UioSysfs:       UioSysfsClass,
		DevDir:         UioDevDir,
		UdmabufSysfs:   stream.UdmabufSysfsClass,
	}
}

// ApplyEnv overrides fields from environment variables read via lookup.
// A nil lookup reads the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	strs := []struct {
		env string
		dst *string
	}{
		{EnvTitleName, &c.TitleName},
		{EnvTitleFrameName, &c.TitleFrameName},
		{EnvDmaName, &c.DmaName},
		{EnvDmaMM2SName, &c.DmaMM2SName},
		{EnvDmaS2MMName, &c.DmaS2MMName},
		{EnvUdmabuf, &c.Udmabuf},
		{EnvUioSysfs, &c.UioSysfs},
		{EnvDevDir, &c.DevDir},
	}
	for _, s := range strs {
		if v, ok := lookup(s.env); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvDmaInterrupts); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDmaInterrupts, err)
		}
		c.DmaInterrupts = b
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks that every required device name is set
func (c Config) Validate() error {
	required := map[string]string{
		"title name":       c.TitleName,
		"title frame name": c.TitleFrameName,
		"dma name":         c.DmaName,
		"udmabuf name":     c.Udmabuf,
	}
	for what, v := range required {
		if v == "" {
			return driver.NewError(driver.StatusInvalidArgument, what+" is empty")
		}
	}
	if c.DmaInterrupts && (c.DmaMM2SName == "" || c.DmaS2MMName == "") {
		return driver.NewError(driver.StatusInvalidArgument, "dma interrupt names are empty")
	}
	return nil
}

// Scanner returns a scanner over the configured locations
func (c Config) Scanner() *DeviceScanner {
	return NewScannerAt(c.UioSysfs, c.DevDir)
}
