// Package payload builds the byte streams the title IP consumes and decodes
// the frames it produces. Every payload is a sequence of 16-bit
// little-endian words.
package payload

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeText converts s to UTF-16LE code units. It returns the encoded
// bytes and the number of code units, which is the LoadText length.
func EncodeText(s string) ([]byte, int, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, 0, driver.NewErrorWithCause(driver.StatusInvalidArgument, "encoding text", err)
	}
	return b, driver.WordCount(len(b)), nil
}

// DecodeText converts UTF-16LE code units back to a string
func DecodeText(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", driver.NewErrorWithCause(driver.StatusInvalidArgument, "decoding text", err)
	}
	return string(out), nil
}
