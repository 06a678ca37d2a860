// Package compression provides the codecs used for compressed payloads inside
// firmware images.
//
// UEFI marks a compressed payload by wrapping it in a GUID-defined section; the
// GUID names the algorithm. EDK2 firmware overwhelmingly uses LZMA, stored in
// the "classic" .lzma container:
//
//	offset  size  field
//	0       1     properties byte (lc/lp/pb)
//	1       4     dictionary size
//	5       8     uncompressed size (little-endian, never the -1 "unknown" value)
//	13      ...   compressed stream, no end-of-stream marker
//
// EDK2's decompressor allocates exactly the uncompressed size from the header,
// so every encoder here must write a real size into the header. The xz tool
// doesn't do that on its own, so [SystemLZMA] patches its output.
//
// Only LZMA is registered by default. Any other algorithm GUID is reported by
// [Registry.Lookup] as unsupported, and callers are expected to surface that
// section without expanding it.
package compression
