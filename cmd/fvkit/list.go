package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dargueta/fvkit/ffs"
	"github.com/dargueta/fvkit/image"
	"github.com/dargueta/fvkit/regions"
	"github.com/docker/go-units"
)

// treePrinter writes an indented outline of a parsed image.
type treePrinter struct {
	out io.Writer
	err error
}

func (p *treePrinter) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.out, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func printImage(out io.Writer, img *image.Image) error {
	p := &treePrinter{out: out}
	for i, entry := range img.Entries {
		region := entry.Region
		p.line(
			0,
			"%s %s @ %#x (%s)",
			image.RegionPath(i),
			region.Kind,
			region.Offset,
			units.BytesSize(float64(len(region.Data))),
		)
		if region.Kind == regions.KindVolume && entry.Volume != nil {
			p.volume(1, entry.Volume)
		}
	}

	p.line(
		0,
		"%s of %s identified",
		units.BytesSize(float64(img.Coverage.ClaimedBytes())),
		units.BytesSize(float64(img.Size)),
	)
	for _, gap := range img.Coverage.Unclaimed() {
		p.line(1, "unidentified: %#x-%#x", gap.Offset, gap.Offset+gap.Length)
	}
	return p.err
}

func (p *treePrinter) volume(depth int, volume *ffs.Volume) {
	if volume.Opaque {
		p.line(depth, "opaque volume %s: %s", volume.GUID, volume.OpaqueReason)
		return
	}

	p.line(depth, "volume %s, %d files", volume.GUID, len(volume.Files))
	for i, file := range volume.Files {
		name := ""
		if file.Name != "" {
			name = fmt.Sprintf(" %q", file.Name)
		}
		p.line(
			depth+1,
			"file[%d] %s %s%s (%s)",
			i,
			file.GUID,
			file.Type,
			name,
			units.BytesSize(float64(file.Size)),
		)
		p.sections(depth+2, file.Sections)
	}
}

func (p *treePrinter) sections(depth int, sections []*ffs.Section) {
	for i, section := range sections {
		p.line(depth, "section[%d] %s (%s)", i, section.Type, units.BytesSize(float64(section.Size)))
		if section.GUIDDefined != nil && !section.GUIDDefined.Expanded {
			p.line(depth+1, "not expanded: %s", section.GUIDDefined.Algorithm)
		}
		if section.Volume != nil {
			p.volume(depth+1, section.Volume)
		}
		p.sections(depth+1, section.Children)
	}
}
