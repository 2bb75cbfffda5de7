package payload

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// Format is an image file format for frame export
type Format int

const (
	FormatPNG Format = iota
	FormatBMP
	FormatGIF
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatGIF:
		return "gif"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat looks a format up by name
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	case "gif":
		return FormatGIF, nil
	default:
		return 0, driver.NewError(driver.StatusInvalidArgument, "unknown image format "+name)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to PNG
func FormatFromPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return FormatPNG
	}
	return f
}

// WriteImage encodes img to w. GIF output is reduced to a 256 colour
// median-cut palette and dithered.
func WriteImage(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatGIF:
		q := quantize.MedianCutQuantizer{}
		p := q.Quantize(make([]color.Color, 0, 256), img)
		dst := image.NewPaletted(img.Bounds(), p)
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, img.Bounds().Min)
		return gif.Encode(w, dst, nil)
	default:
		return driver.NewError(driver.StatusInvalidArgument, "unsupported format "+format.String())
	}
}

// ReadImage decodes a PNG, JPEG, GIF or BMP image
func ReadImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusInvalidArgument, "decoding image", err)
	}
	return img, nil
}
