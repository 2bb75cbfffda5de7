package payload

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
)

const pixelBytes = driver.PhotoChannels * driver.PhotoBytesPerChannel

// EncodePhoto scales img to the preset's width by depth and packs it
// row-major, three 16-bit little-endian channels per pixel (R, G, B).
func EncodePhoto(img image.Image, preset control.Preset) ([]byte, error) {
	if !preset.Valid() {
		return nil, driver.NewError(driver.StatusInvalidPreset, fmt.Sprintf("preset %d", int(preset)))
	}
	w, h := preset.Width(), preset.Depth()

	scaled := image.NewNRGBA64(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]byte, preset.FrameBytes())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := scaled.NRGBA64At(x, y)
			i := (y*w + x) * driver.PhotoChannels
			driver.PutWord(out, i, c.R)
			driver.PutWord(out, i+1, c.G)
			driver.PutWord(out, i+2, c.B)
		}
	}
	return out, nil
}

// DecodeFrame unpacks a frame produced at preset. b may be longer than the
// frame; the excess is ignored.
func DecodeFrame(b []byte, preset control.Preset) (*image.NRGBA64, error) {
	if !preset.Valid() {
		return nil, driver.NewError(driver.StatusInvalidPreset, fmt.Sprintf("preset %d", int(preset)))
	}
	if len(b) < preset.FrameBytes() {
		return nil, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("frame of %d bytes, %s needs %d", len(b), preset, preset.FrameBytes()))
	}
	w, h := preset.Width(), preset.Depth()

	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * driver.PhotoChannels
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: driver.Word(b, i),
				G: driver.Word(b, i+1),
				B: driver.Word(b, i+2),
				A: 0xffff,
			})
		}
	}
	return img, nil
}
