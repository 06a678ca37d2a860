// Package guid implements the 128-bit identifiers used throughout UEFI
// firmware images.
//
// On disk a GUID is stored in a mixed-endian layout: the first three fields are
// little-endian integers (32, 16, and 16 bits), and the remaining eight bytes
// are stored as-is. The canonical text form prints each field as if it were a
// big-endian number, so "8c8ce578-8a3d-4f1c-9935-896185c32dd3" is stored as
//
//	78 e5 8c 8c 3d 8a 1c 4f 99 35 89 61 85 c3 2d d3
package guid

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/fvkit"
	"github.com/google/uuid"
)

// Size is the number of bytes a GUID occupies on disk.
const Size = 16

// GUID holds the raw on-disk bytes of an identifier. It's a value type; two
// GUIDs are the same identifier if and only if they compare equal with ==.
type GUID [Size]byte

// Zero is the all-zeroes GUID.
var Zero = GUID{}

// Ones is the all-ones GUID. A firmware file with this GUID is padding, and an
// erased flash region reads as a sequence of these.
var Ones = GUID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Decode reads a GUID from `buf` starting at `offset`. It fails with
// [fvkit.ErrTruncatedInput] if fewer than 16 bytes remain.
func Decode(buf []byte, offset int) (GUID, error) {
	var g GUID
	if offset < 0 || offset > len(buf) || len(buf)-offset < Size {
		return g, fvkit.Errorf(
			fvkit.ErrTruncatedInput,
			"GUID at offset %#x needs %d bytes, %d available",
			offset,
			Size,
			max(len(buf)-offset, 0),
		)
	}
	copy(g[:], buf[offset:offset+Size])
	return g, nil
}

// Encode returns the on-disk representation of the GUID. It's the exact
// inverse of [Decode].
func (g GUID) Encode() []byte {
	out := make([]byte, Size)
	copy(out, g[:])
	return out
}

// Fields returns the five fields of the canonical text form, in order.
func (g GUID) Fields() (uint32, uint16, uint16, uint16, [6]byte) {
	var node [6]byte
	copy(node[:], g[10:])
	return binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		binary.BigEndian.Uint16(g[8:10]),
		node
}

// String returns the canonical lowercase 8-4-4-4-12 form.
func (g GUID) String() string {
	a, b, c, d, e := g.Fields()
	return fmt.Sprintf(
		"%08x-%04x-%04x-%04x-%02x%02x%02x%02x%02x%02x",
		a, b, c, d, e[0], e[1], e[2], e[3], e[4], e[5])
}

// Parse converts the canonical text form into a GUID. Upper- and lowercase hex
// digits are both accepted, as are the brace-wrapped and "urn:uuid:" forms.
func Parse(s string) (GUID, error) {
	var g GUID
	u, err := uuid.Parse(s)
	if err != nil {
		return g, fvkit.ErrInvalidArgument.Wrap(err)
	}

	// uuid.UUID stores every field big-endian; swap the first three.
	g[0], g[1], g[2], g[3] = u[3], u[2], u[1], u[0]
	g[4], g[5] = u[5], u[4]
	g[6], g[7] = u[7], u[6]
	copy(g[8:], u[8:])
	return g, nil
}

// MustParse is like [Parse] but panics if the string can't be parsed. It's
// meant for package-level constants.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}
