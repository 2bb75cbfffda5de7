package device

import "errors"

// Errors for device operations
var (
	ErrNoDevices      = errors.New("no matching UIO device found")
	ErrDetached       = errors.New("device is detached")
	ErrInvalidState   = errors.New("invalid system state")
	ErrAlreadyServing = errors.New("system already serving interrupts")
	ErrNotServing     = errors.New("system not serving interrupts")
)
