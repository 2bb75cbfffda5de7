package driver

import "encoding/binary"

// The title IP consumes and produces 16-bit little-endian words. These
// helpers move words in and out of the byte-addressed transfer buffer.

// WordCount returns the number of whole 16-bit words in n bytes
func WordCount(n int) int {
	return n / 2
}

// PutWords packs words into dst and returns the number of bytes written.
// It stops at whichever of dst or words runs out first.
func PutWords(dst []byte, words []uint16) int {
	n := len(words)
	if limit := len(dst) / 2; n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], words[i])
	}
	return n * 2
}

// Words unpacks src into 16-bit words. A trailing odd byte is ignored.
func Words(src []byte) []uint16 {
	words := make([]uint16, WordCount(len(src)))
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(src[i*2:])
	}
	return words
}

// PutWord stores a single word at word index i of dst
func PutWord(dst []byte, i int, w uint16) {
	binary.LittleEndian.PutUint16(dst[i*2:], w)
}

// Word loads the word at word index i of src
func Word(src []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(src[i*2:])
}
