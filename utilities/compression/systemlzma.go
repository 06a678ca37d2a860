package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os/exec"
)

// SystemLZMA encodes by running the system's xz executable, which is faster and
// generally compresses better than the Go encoder. Decoding always uses the Go
// decoder; see Decode for why.
type SystemLZMA struct {
	XZPath string
}

// Name returns the type of compression employed.
func (c *SystemLZMA) Name() string {
	return "LZMA"
}

// Decode decodes a byte slice of LZMA data.
//
// xz treats a stream with both a known size and an end marker as corrupt (it
// still decodes it but exits with status 1), and it can't tell the two cases
// apart from the outside. The Go decoder has no such problem.
func (c *SystemLZMA) Decode(encodedData []byte) ([]byte, error) {
	return (&LZMA{}).Decode(encodedData)
}

// Encode encodes a byte slice with LZMA.
func (c *SystemLZMA) Encode(decodedData []byte) ([]byte, error) {
	cmd := exec.Command(c.XZPath, "--format=lzma", "-7", "--stdout")
	cmd.Stdin = bytes.NewReader(decodedData)
	stderr := bytes.Buffer{}
	cmd.Stderr = &stderr

	encodedData, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", c.XZPath, err, stderr.String())
	}
	if len(encodedData) < 13 {
		return nil, fmt.Errorf(
			"%s produced %d bytes, too short for an LZMA header", c.XZPath, len(encodedData))
	}

	// xz always writes "unknown size" (all ones) into the header and terminates
	// the stream with an end marker. EDK2 would try to allocate 2^64-1 bytes
	// for that, so put the real size in. The end marker stays; EDK2 stops at
	// the declared size and never reads it.
	binary.LittleEndian.PutUint64(encodedData[5:13], uint64(len(decodedData)))
	return encodedData, nil
}
