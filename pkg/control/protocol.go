// Package control implements the title IP command protocol: command and
// preset validation, transfer sizing, the dispatcher that sequences DMA,
// command register writes and completion waits, and the interrupt handlers
// that complete them.
package control

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Target selects which title IP register a request writes
type Target int

const (
	// TargetCommand is the primary command path: validate, size, DMA,
	// write the command register, wait for completion.
	TargetCommand Target = 0
	// TargetParameter writes the parameter register and returns at once.
	TargetParameter Target = 1
)

// String returns the target name
func (t Target) String() string {
	switch t {
	case TargetCommand:
		return "command"
	case TargetParameter:
		return "parameter"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Request is one command submission
type Request struct {
	// Code is the command code, or the raw parameter value when Target is
	// TargetParameter.
	Code uint32
	// Preset selects the resolution profile for preset-dependent commands.
	Preset Preset
	// Side is the text length in code units for LoadText.
	Side int
	// Target selects the command or the parameter register.
	Target Target
}

// NewCommand builds a primary-path request
func NewCommand(kind CommandKind, preset Preset) Request {
	return Request{Code: kind.Code(), Preset: preset, Target: TargetCommand}
}

// NewTextCommand builds a LoadText request for n code units
func NewTextCommand(n int) Request {
	return Request{Code: LoadText.Code(), Side: n, Target: TargetCommand}
}

// NewParameter builds a parameter-register write
func NewParameter(value uint32) Request {
	return Request{Code: value, Target: TargetParameter}
}

// String formats the request in the text protocol
func (r Request) String() string {
	second := int(r.Preset)
	if r.Target == TargetCommand && CommandKind(r.Code) == LoadText {
		second = r.Side
	}
	return fmt.Sprintf("%d,%d,%d", r.Code, second, int(r.Target))
}

// ParseRequest parses the text protocol "code,arg,target".
//
// code is the command code (decimal, or 0x-prefixed hex). arg is the preset
// index, or the text length for LoadText. target is 0 for the command path
// and 1 for a parameter write. Missing trailing fields default to 0.
// Surrounding whitespace and a trailing NUL are ignored.
func ParseRequest(s string) (Request, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")
	if s == "" {
		return Request{}, driver.NewError(driver.StatusInvalidArgument, "empty request")
	}
	fields := strings.Split(s, ",")
	if len(fields) > 3 {
		return Request{}, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("request %q has %d fields", s, len(fields)))
	}
	vals := [3]int64{}
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 0, 64)
		if err != nil {
			return Request{}, driver.NewErrorWithCause(driver.StatusInvalidArgument,
				fmt.Sprintf("field %d of %q", i, s), err)
		}
		vals[i] = v
	}

	// negative codes wrap like the 32-bit register write they end up as
	if vals[0] < math.MinInt32 || vals[0] > math.MaxUint32 {
		return Request{}, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("value %d does not fit 32 bits", vals[0]))
	}
	if vals[1] < math.MinInt32 || vals[1] > math.MaxInt32 {
		return Request{}, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("argument %d out of range", vals[1]))
	}

	req := Request{
		Code:   uint32(vals[0]),
		Preset: Preset(vals[1]),
		Side:   int(vals[1]),
	}
	switch vals[2] {
	case 0:
		req.Target = TargetCommand
	case 1:
		req.Target = TargetParameter
	default:
		return Request{}, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("target %d is neither 0 nor 1", vals[2]))
	}
	return req, nil
}
