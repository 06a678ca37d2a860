package ffs

import (
	"fmt"

	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// DefaultMaxDepth is the default limit on how deeply volumes and compressed
// sections may nest inside each other.
const DefaultMaxDepth = 16

// Diagnostic is a problem found while parsing that didn't stop the parse.
type Diagnostic struct {
	// Path locates the structure in the tree, e.g. "volume/file[3]/section[0]".
	Path string
	// Offset is the absolute offset of the structure in the input. Inside
	// decompressed data (any path containing "decompressed") it's relative to
	// the start of the decompressed buffer instead.
	Offset int64
	Err    error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s @ %#x: %s", d.Path, d.Offset, d.Err)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Parser turns bytes into volumes, files, and sections. A Parser accumulates
// diagnostics across calls and isn't safe for concurrent use; create one per
// goroutine.
type Parser struct {
	// Compression resolves the algorithm of GUID-defined sections. If nil, no
	// compressed section is expanded.
	Compression *compression.Registry
	// Log receives a warning for every diagnostic, and debug messages about
	// progress. Defaults to the logrus standard logger.
	Log *logrus.Entry
	// MaxDepth limits nesting of volumes within sections within volumes. Zero
	// means DefaultMaxDepth.
	MaxDepth int

	diagnostics []Diagnostic
}

// NewParser creates a parser that expands sections compressed with any
// algorithm in `registry`.
func NewParser(registry *compression.Registry) *Parser {
	return &Parser{Compression: registry}
}

// Diagnostics returns every diagnostic recorded so far, in the order they were
// found.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diagnostics
}

// Warnings combines every diagnostic into one error, or returns nil if there
// were none.
func (p *Parser) Warnings() error {
	var result *multierror.Error
	for _, diagnostic := range p.diagnostics {
		result = multierror.Append(result, diagnostic)
	}
	return result.ErrorOrNil()
}

func (p *Parser) log() *logrus.Entry {
	if p.Log == nil {
		p.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return p.Log
}

func (p *Parser) maxDepth() int {
	if p.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return p.MaxDepth
}

// cursor tracks where in the tree and in the input a container's bytes came
// from, so diagnostics can point at them.
type cursor struct {
	path string
	// base is the offset of the container's first byte, see Diagnostic.Offset.
	base  int64
	depth int
}

func (c cursor) child(segment string, relativeOffset int) cursor {
	path := segment
	if c.path != "" {
		path = c.path + "/" + segment
	}
	return cursor{path: path, base: c.base + int64(relativeOffset), depth: c.depth}
}

// nested is a child cursor one level deeper in the nesting limit.
func (c cursor) nested(segment string, relativeOffset int) cursor {
	next := c.child(segment, relativeOffset)
	next.depth++
	return next
}

// rebased is a child cursor for data that doesn't exist verbatim in the input.
func (c cursor) rebased(segment string) cursor {
	next := c.nested(segment, 0)
	next.base = 0
	return next
}

// diagnostic attributes `err` to the structure at `relativeOffset` from the
// cursor.
func (c cursor) diagnostic(relativeOffset int, err error) Diagnostic {
	return Diagnostic{
		Path:   c.path,
		Offset: c.base + int64(relativeOffset),
		Err:    err,
	}
}

// warn records `err` as a diagnostic. If `err` is already a Diagnostic it keeps
// its own path and offset, which are more precise than the caller's.
func (p *Parser) warn(at cursor, relativeOffset int, err error) {
	diagnostic, located := err.(Diagnostic)
	if !located {
		diagnostic = at.diagnostic(relativeOffset, err)
	}

	p.diagnostics = append(p.diagnostics, diagnostic)
	p.log().WithFields(logrus.Fields{
		"path":   diagnostic.Path,
		"offset": fmt.Sprintf("%#x", diagnostic.Offset),
	}).Warn(diagnostic.Err.Error())
}

func (p *Parser) debug(at cursor, relativeOffset int, format string, args ...any) {
	p.log().WithFields(logrus.Fields{
		"path":   at.path,
		"offset": fmt.Sprintf("%#x", at.base+int64(relativeOffset)),
	}).Debugf(format, args...)
}
