package payload

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// EncodeWords packs 16-bit words little-endian
func EncodeWords(words []uint16) []byte {
	b := make([]byte, len(words)*2)
	driver.PutWords(b, words)
	return b
}

// ReadWords parses a word list: decimal or 0x-prefixed values separated by
// whitespace or commas. Text after '#' on a line is ignored.
func ReadWords(r io.Reader) ([]uint16, error) {
	var words []uint16
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.FieldsFunc(text, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == '\r'
		})
		for _, f := range fields {
			v, err := strconv.ParseUint(f, 0, 16)
			if err != nil {
				return nil, driver.NewErrorWithCause(driver.StatusInvalidArgument,
					fmt.Sprintf("line %d: word %q", line, f), err)
			}
			words = append(words, uint16(v))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading words: %w", err)
	}
	return words, nil
}

// CheckLength verifies that b is exactly want bytes long
func CheckLength(what string, b []byte, want int) error {
	if len(b) != want {
		return driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("%s is %d bytes, expected %d", what, len(b), want))
	}
	return nil
}
