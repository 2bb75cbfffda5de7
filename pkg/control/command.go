package control

import (
	"fmt"
	"strings"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// CommandKind is one of the eight title IP commands
type CommandKind uint32

const (
	LoadLetterData   = CommandKind(driver.CmdLoadLetterData)
	LoadLetterMatrix = CommandKind(driver.CmdLoadLetterMatrix)
	LoadText         = CommandKind(driver.CmdLoadText)
	LoadPosition     = CommandKind(driver.CmdLoadPosition)
	LoadPhoto        = CommandKind(driver.CmdLoadPhoto)
	Process          = CommandKind(driver.CmdProcessing)
	SendFromBram     = CommandKind(driver.CmdSendFromBram)
	Reset            = CommandKind(driver.CmdReset)
)

var kindNames = map[CommandKind]string{
	LoadLetterData:   "load-letter-data",
	LoadLetterMatrix: "load-letter-matrix",
	LoadText:         "load-text",
	LoadPosition:     "load-position",
	LoadPhoto:        "load-photo",
	Process:          "process",
	SendFromBram:     "send-from-bram",
	Reset:            "reset",
}

// Kinds returns every command kind in code order
func Kinds() []CommandKind {
	return []CommandKind{
		LoadLetterData, LoadLetterMatrix, LoadText, LoadPosition,
		LoadPhoto, Process, SendFromBram, Reset,
	}
}

// ParseCommandKind validates a raw command code
func ParseCommandKind(code uint32) (CommandKind, error) {
	k := CommandKind(code)
	if _, ok := kindNames[k]; !ok {
		return 0, driver.NewError(driver.StatusInvalidCommand, fmt.Sprintf("command 0x%x", code))
	}
	return k, nil
}

// KindByName looks a command kind up by its String form. Underscores are
// accepted in place of dashes.
func KindByName(name string) (CommandKind, bool) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// String returns the command name
func (k CommandKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("command(0x%x)", uint32(k))
}

// Code returns the value written to the command register
func (k CommandKind) Code() uint32 {
	return uint32(k)
}

// NeedsPreset reports whether the transfer size depends on the preset
func (k CommandKind) NeedsPreset() bool {
	return k == LoadLetterMatrix || k == LoadPhoto || k == SendFromBram
}

// MovesData reports whether the command is preceded by a DMA transfer
func (k CommandKind) MovesData() bool {
	return k != Process && k != Reset
}

// Preset selects one of the five resolution profiles
type Preset int

// ParsePreset validates a preset index
func ParsePreset(i int) (Preset, error) {
	p := Preset(i)
	if !p.Valid() {
		return 0, driver.NewError(driver.StatusInvalidPreset,
			fmt.Sprintf("preset %d not in 0..%d", i, driver.PresetCount-1))
	}
	return p, nil
}

// Presets returns all presets
func Presets() []Preset {
	ps := make([]Preset, driver.PresetCount)
	for i := range ps {
		ps[i] = Preset(i)
	}
	return ps
}

// Valid reports whether p is a known preset
func (p Preset) Valid() bool {
	return p >= 0 && int(p) < driver.PresetCount
}

// Depth returns the output BRAM row count
func (p Preset) Depth() int {
	return driver.BramDepth[p]
}

// Width returns the pixel width
func (p Preset) Width() int {
	return driver.PixelWidth[p]
}

// FrameBytes returns the size of a photo or rendered frame at this preset
func (p Preset) FrameBytes() int {
	return p.Depth() * p.Width() * driver.PhotoChannels * driver.PhotoBytesPerChannel
}

// LetterMatrixBytes returns the size of the letter matrix at this preset
func (p Preset) LetterMatrixBytes() int {
	return driver.LetterMatrixWords[p] * 2
}

// String returns a short description such as "D2 (1280x50)"
func (p Preset) String() string {
	if !p.Valid() {
		return fmt.Sprintf("D%d (invalid)", int(p))
	}
	return fmt.Sprintf("D%d (%dx%d)", int(p), p.Width(), p.Depth())
}
