package driver

// Title IP register offsets, relative to the accelerator register window
const (
	TitleCommandRegister   = 0x00
	TitleParameterRegister = 0x04 // AXI offset of the secondary parameter register
)

// Title IP command codes, written verbatim to TitleCommandRegister
const (
	CmdLoadLetterData   uint32 = 0x0001
	CmdLoadLetterMatrix uint32 = 0x0002
	CmdLoadText         uint32 = 0x0004
	CmdLoadPosition     uint32 = 0x0008
	CmdLoadPhoto        uint32 = 0x0010
	CmdProcessing       uint32 = 0x0020
	CmdSendFromBram     uint32 = 0x0040
	CmdReset            uint32 = 0x0080
)

// AXI DMA register offsets (simple/direct register mode)
const (
	MM2SControlRegister = 0x00
	MM2SStatusRegister  = 0x04
	MM2SSourceAddress   = 0x18
	MM2SLengthRegister  = 0x28

	S2MMControlRegister = 0x30
	S2MMStatusRegister  = 0x34
	S2MMDestAddress     = 0x48
	S2MMLengthRegister  = 0x58

	// DmaChannelBlockOffset is the distance between the MM2S and S2MM blocks
	DmaChannelBlockOffset = S2MMControlRegister - MM2SControlRegister
)

// DMACR (control register) bits
const (
	DmaCrRunStop  uint32 = 1 << 0
	DmaCrReset    uint32 = 1 << 2
	DmaCrIocIrqEn uint32 = 1 << 12
	DmaCrErrIrqEn uint32 = 1 << 14

	DmaCrIrqEnable = DmaCrIocIrqEn | DmaCrErrIrqEn
)

// DMASR (status register) bits
const (
	DmaSrHalted uint32 = 1 << 0
	DmaSrIdle   uint32 = 1 << 1
	DmaSrIocIrq uint32 = 1 << 12
	DmaSrErrIrq uint32 = 1 << 14

	// DmaSrIrqMask is the write-1-to-clear acknowledge pattern (0x5000)
	DmaSrIrqMask = DmaSrIocIrq | DmaSrErrIrq
)

// Fixed payload lengths in bytes. Every payload word is 16 bits wide.
const (
	LetterDataLen = 214 * 2
	PositionLen   = 106 * 2
)

// LetterMatrixWords holds the letter matrix size, in 16-bit words, per
// resolution preset.
var LetterMatrixWords = [PresetCount]int{16602, 22716, 29792, 37569, 46423}

// PresetCount is the number of resolution presets the title IP supports
const PresetCount = 5

// BramDepth is the number of output BRAM rows per resolution preset
var BramDepth = [PresetCount]int{101, 67, 50, 40, 33}

// PixelWidth is the frame width in pixels per resolution preset
var PixelWidth = [PresetCount]int{640, 960, 1280, 1600, 1920}

// Photo payload layout
const (
	PhotoChannels        = 3
	PhotoBytesPerChannel = 2
)

// MaxPacketLen is the capacity of the transfer buffer: the deepest BRAM by
// the widest preset, three 16-bit channels per pixel.
const MaxPacketLen = 101 * 1920 * PhotoChannels * PhotoBytesPerChannel

// UIO constants
const (
	UioMapSize    = 4096 // default register window when sysfs does not report one
	UioIrqEnable  = 1
	UioIrqDisable = 0
)

// Default device capability strings, matched against the UIO name attribute
const (
	DefaultTitleName      = "title_ip"
	DefaultTitleFrameName = "title_ip_frame"
	DefaultDmaName        = "dma_ip"
	DefaultDmaMM2SName    = "dma_ip_mm2s"
	DefaultDmaS2MMName    = "dma_ip_s2mm"
	DefaultUdmabufName    = "udmabuf0"
)
