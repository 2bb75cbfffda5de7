package control

import (
	"fmt"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Transfer describes the DMA movement that precedes a command
type Transfer struct {
	Length    int
	Direction driver.DmaDataDirection
}

// None reports whether the command moves no data
func (t Transfer) None() bool {
	return t.Length == 0
}

// SizeFor returns the transfer a command needs. side carries the text
// length, in 16-bit code units, for LoadText and is ignored otherwise;
// preset is ignored by commands that do not depend on it.
//
// SizeFor has no side effects and always returns the same result for the
// same input.
func SizeFor(kind CommandKind, preset Preset, side int) (Transfer, error) {
	if kind.NeedsPreset() && !preset.Valid() {
		return Transfer{}, driver.NewError(driver.StatusInvalidPreset,
			fmt.Sprintf("%s with preset %d", kind, int(preset)))
	}

	switch kind {
	case LoadLetterData:
		return toDevice(driver.LetterDataLen), nil
	case LoadLetterMatrix:
		return toDevice(preset.LetterMatrixBytes()), nil
	case LoadText:
		if side < 0 {
			return Transfer{}, driver.NewError(driver.StatusInvalidArgument,
				fmt.Sprintf("text length %d", side))
		}
		if side > driver.MaxPacketLen/2 {
			return Transfer{}, driver.NewError(driver.StatusTransferOverrun,
				fmt.Sprintf("text of %d code units", side))
		}
		return toDevice(2 * side), nil
	case LoadPosition:
		return toDevice(driver.PositionLen), nil
	case LoadPhoto:
		return toDevice(preset.FrameBytes()), nil
	case SendFromBram:
		return Transfer{Length: preset.FrameBytes(), Direction: driver.DmaFromDevice}, nil
	case Process, Reset:
		return Transfer{Direction: driver.DmaNone}, nil
	default:
		return Transfer{}, driver.NewError(driver.StatusInvalidCommand, kind.String())
	}
}

func toDevice(n int) Transfer {
	return Transfer{Length: n, Direction: driver.DmaToDevice}
}
