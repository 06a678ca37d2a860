package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// LZMA is the pure-Go LZMA codec.
type LZMA struct{}

// Name returns the type of compression employed.
func (c *LZMA) Name() string {
	return "LZMA"
}

// Decode decodes a byte slice of classic .lzma data.
func (c *LZMA) Decode(encodedData []byte) ([]byte, error) {
	reader, err := lzma.NewReader(bytes.NewReader(encodedData))
	if err != nil {
		return nil, fmt.Errorf("bad LZMA header: %w", err)
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("LZMA stream corrupted after %d bytes: %w", len(decoded), err)
	}
	return decoded, nil
}

// Encode encodes a byte slice with LZMA, writing the uncompressed size into the
// header and omitting the end-of-stream marker.
//
// Empty input is the exception. The encoder treats a size of zero as "unknown"
// and writes all ones instead, so the stream is terminated with an end marker
// and the header patched to say zero, the same as [SystemLZMA] output.
func (c *LZMA) Encode(decodedData []byte) ([]byte, error) {
	buffer := bytes.Buffer{}
	config := lzma.WriterConfig{
		SizeInHeader: true,
		Size:         int64(len(decodedData)),
		EOSMarker:    false,
	}
	if len(decodedData) == 0 {
		config.SizeInHeader = false
		config.Size = 0
		config.EOSMarker = true
	}

	writer, err := config.NewWriter(&buffer)
	if err != nil {
		return nil, err
	}
	if _, err = writer.Write(decodedData); err != nil {
		return nil, err
	}
	if err = writer.Close(); err != nil {
		return nil, err
	}

	encodedData := buffer.Bytes()
	if len(decodedData) == 0 {
		binary.LittleEndian.PutUint64(encodedData[5:13], 0)
	}
	return encodedData, nil
}
