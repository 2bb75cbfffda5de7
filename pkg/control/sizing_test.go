//go:build unit

package control

import (
	"testing"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

func TestSizeFor(t *testing.T) {
	tests := []struct {
		name   string
		kind   CommandKind
		preset Preset
		side   int
		length int
		dir    driver.DmaDataDirection
	}{
		{"letter data", LoadLetterData, 0, 0, 428, driver.DmaToDevice},
		{"letter data ignores preset", LoadLetterData, 9, 0, 428, driver.DmaToDevice},
		{"letter matrix D0", LoadLetterMatrix, 0, 0, 33204, driver.DmaToDevice},
		{"letter matrix D2", LoadLetterMatrix, 2, 0, 59584, driver.DmaToDevice},
		{"letter matrix D4", LoadLetterMatrix, 4, 0, 92846, driver.DmaToDevice},
		{"text", LoadText, 0, 12, 24, driver.DmaToDevice},
		{"empty text", LoadText, 0, 0, 0, driver.DmaToDevice},
		{"position", LoadPosition, 0, 0, 212, driver.DmaToDevice},
		{"photo D0", LoadPhoto, 0, 0, 387840, driver.DmaToDevice},
		{"photo D1", LoadPhoto, 1, 0, 385920, driver.DmaToDevice},
		{"photo D4", LoadPhoto, 4, 0, 380160, driver.DmaToDevice},
		{"send from bram D3", SendFromBram, 3, 0, 384000, driver.DmaFromDevice},
		{"process", Process, 0, 0, 0, driver.DmaNone},
		{"reset", Reset, 0, 0, 0, driver.DmaNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SizeFor(tt.kind, tt.preset, tt.side)
			if err != nil {
				t.Fatalf("SizeFor failed: %v", err)
			}
			if tt.length > 0 && got.Direction != tt.dir {
				t.Errorf("direction = %s, expected %s", got.Direction, tt.dir)
			}
			if got.Length != tt.length {
				t.Errorf("length = %d, expected %d", got.Length, tt.length)
			}
			if got.Length > driver.MaxPacketLen {
				t.Errorf("length %d exceeds MaxPacketLen %d", got.Length, driver.MaxPacketLen)
			}
		})
	}
}

func TestSizeForRejects(t *testing.T) {
	tests := []struct {
		name   string
		kind   CommandKind
		preset Preset
		side   int
		status driver.Status
	}{
		{"photo preset 5", LoadPhoto, 5, 0, driver.StatusInvalidPreset},
		{"matrix preset -1", LoadLetterMatrix, -1, 0, driver.StatusInvalidPreset},
		{"send preset 7", SendFromBram, 7, 0, driver.StatusInvalidPreset},
		{"negative text", LoadText, 0, -1, driver.StatusInvalidArgument},
		{"oversized text", LoadText, 0, driver.MaxPacketLen/2 + 1, driver.StatusTransferOverrun},
		{"unknown kind", CommandKind(0x3), 0, 0, driver.StatusInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SizeFor(tt.kind, tt.preset, tt.side)
			if !driver.IsStatus(err, tt.status) {
				t.Errorf("SizeFor = %v, expected %s", err, tt.status)
			}
		})
	}
}

func TestSizeForLargestTextFits(t *testing.T) {
	got, err := SizeFor(LoadText, 0, driver.MaxPacketLen/2)
	if err != nil {
		t.Fatalf("SizeFor failed: %v", err)
	}
	if got.Length != driver.MaxPacketLen {
		t.Errorf("length = %d, expected %d", got.Length, driver.MaxPacketLen)
	}
}

func TestSizeForIsPure(t *testing.T) {
	for _, k := range Kinds() {
		for _, p := range Presets() {
			a, errA := SizeFor(k, p, 7)
			b, errB := SizeFor(k, p, 7)
			if a != b || (errA == nil) != (errB == nil) {
				t.Errorf("SizeFor(%s, %d) differs between calls", k, int(p))
			}
		}
	}
}
