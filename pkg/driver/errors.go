package driver

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Status represents a title driver operation status code
type Status int

// Status codes reported by the driver and the dispatcher
const (
	StatusSuccess               Status = 0
	StatusInvalidArgument       Status = 1
	StatusInvalidCommand        Status = 2
	StatusInvalidPreset         Status = 3
	StatusResourceUnavailable   Status = 4
	StatusTransferOverrun       Status = 5
	StatusHardwareHang          Status = 6
	StatusNotFound              Status = 7
	StatusDriverOperationFailed Status = 8
	StatusInterrupted           Status = 9
	StatusClosed                Status = 10
	StatusOutOfHostMemory       Status = 11
	StatusPermissionDenied      Status = 12
)

var statusMessages = map[Status]string{
	StatusSuccess:               "success",
	StatusInvalidArgument:       "invalid argument",
	StatusInvalidCommand:        "invalid command",
	StatusInvalidPreset:         "invalid resolution preset",
	StatusResourceUnavailable:   "resource unavailable",
	StatusTransferOverrun:       "transfer exceeds buffer capacity",
	StatusHardwareHang:          "hardware did not signal completion",
	StatusNotFound:              "not found",
	StatusDriverOperationFailed: "driver operation failed",
	StatusInterrupted:           "interrupted",
	StatusClosed:                "closed",
	StatusOutOfHostMemory:       "out of host memory",
	StatusPermissionDenied:      "permission denied",
}

// String returns the human-readable status message
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status (%d)", int(s))
}

// TitleError represents an error from the title driver or dispatcher
type TitleError struct {
	Status  Status
	Context string
	Cause   error
}

// Error implements the error interface
func (e *TitleError) Error() string {
	if e.Context != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Context, e.Status.String(), e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Context, e.Status.String())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Status.String(), e.Cause)
	}
	return e.Status.String()
}

// Unwrap returns the underlying cause
func (e *TitleError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target status
func (e *TitleError) Is(target error) bool {
	var titleErr *TitleError
	if errors.As(target, &titleErr) {
		return e.Status == titleErr.Status
	}
	return false
}

// NewError creates a new TitleError with the given status
func NewError(status Status, context string) *TitleError {
	return &TitleError{
		Status:  status,
		Context: context,
	}
}

// NewErrorWithCause creates a new TitleError with an underlying cause
func NewErrorWithCause(status Status, context string, cause error) *TitleError {
	return &TitleError{
		Status:  status,
		Context: context,
		Cause:   cause,
	}
}

// StatusOf extracts the Status carried by err, or StatusDriverOperationFailed
// when err is not a TitleError. A nil error is StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var titleErr *TitleError
	if errors.As(err, &titleErr) {
		return titleErr.Status
	}
	return StatusDriverOperationFailed
}

// IsStatus reports whether err carries the given status
func IsStatus(err error, status Status) bool {
	return err != nil && StatusOf(err) == status
}

// ErrnoToStatus converts a Linux errno to a driver status
func ErrnoToStatus(errno unix.Errno) Status {
	switch errno {
	case unix.ENOMEM:
		return StatusOutOfHostMemory
	case unix.EBUSY, unix.ENODEV, unix.ENXIO:
		return StatusResourceUnavailable
	case unix.EACCES, unix.EPERM:
		return StatusPermissionDenied
	case unix.ENOENT:
		return StatusNotFound
	case unix.EINVAL:
		return StatusInvalidArgument
	case unix.EINTR:
		return StatusInterrupted
	case unix.EBADF:
		return StatusClosed
	default:
		return StatusDriverOperationFailed
	}
}

// StatusFromErrno creates a TitleError from an errno
func StatusFromErrno(errno unix.Errno, context string) *TitleError {
	return &TitleError{
		Status:  ErrnoToStatus(errno),
		Context: context,
		Cause:   errno,
	}
}

// wrapSyscallError turns a syscall failure into a TitleError, mapping the
// errno when there is one.
func wrapSyscallError(err error, context string) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return StatusFromErrno(errno, context)
	}
	return NewErrorWithCause(StatusDriverOperationFailed, context, err)
}
