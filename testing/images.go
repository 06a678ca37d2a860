package fvtest

import (
	"bytes"
	"io"
	"testing"

	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// LoadImage returns a stream over a copy of `imageBytes`.
//
//   - Writes to the stream do not affect `imageBytes`.
//   - While the stream can be written to, its size is fixed to `len(imageBytes)`.
//     Attempting to write past the end of this buffer will trigger an error.
func LoadImage(t *testing.T, imageBytes []byte) io.ReadWriteSeeker {
	require.Greater(t, len(imageBytes), 0, "image is empty")
	return bytesextra.NewReadWriteSeeker(bytes.Clone(imageBytes))
}

// LoadCompressedImage takes an LZMA-compressed firmware image and returns a
// stream to access the uncompressed data. The test fails if the image doesn't
// decompress to exactly `expectedSize` bytes.
func LoadCompressedImage(
	t *testing.T, compressedImageBytes []byte, expectedSize uint,
) io.ReadWriteSeeker {
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := (&compression.LZMA{}).Decode(compressedImageBytes)
	require.NoError(t, err)

	require.Equal(
		t,
		expectedSize,
		uint(len(imageBytes)),
		"uncompressed image is wrong size",
	)
	return bytesextra.NewReadWriteSeeker(imageBytes)
}

// Placement puts `Data` at `Offset` in an image built by [BuildImage].
type Placement struct {
	Offset int
	Data   []byte
}

// BuildImage creates an image of `size` bytes filled with 0xff, then copies
// each placement into it. Placements may not overlap or run past the end.
func BuildImage(t *testing.T, size int, placements ...Placement) []byte {
	image := bytes.Repeat([]byte{0xff}, size)
	end := 0
	for _, placement := range placements {
		require.GreaterOrEqualf(
			t, placement.Offset, end, "placement at %#x overlaps the previous one", placement.Offset)
		end = placement.Offset + len(placement.Data)
		require.LessOrEqualf(
			t, end, size, "placement at %#x runs past the end of the image", placement.Offset)
		copy(image[placement.Offset:], placement.Data)
	}
	return image
}
