// Package padding recognizes runs of filler bytes: erased flash (0xFF), zeroed
// gaps, and the like.
package padding

import "bytes"

// IsUniform returns true if every byte in `data` equals the first one. An empty
// slice is uniform by convention, so callers can treat "nothing here" and
// "only filler here" the same way.
func IsUniform(data []byte) bool {
	if len(data) < 2 {
		return true
	}

	// Comparing the slice against itself shifted by one byte is equivalent to
	// checking each byte against its neighbor, but lets the runtime use its
	// vectorized memcmp.
	return bytes.Equal(data[1:], data[:len(data)-1])
}

// IsUniformOf returns true if `data` is non-empty and consists only of `fill`.
func IsUniformOf(data []byte, fill byte) bool {
	return len(data) > 0 && data[0] == fill && IsUniform(data)
}

// Fill returns a new slice of `size` copies of `fill`.
func Fill(size int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, size)
}
