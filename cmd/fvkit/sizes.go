package main

import (
	"strconv"
	"strings"

	"github.com/dargueta/fvkit"
	"github.com/docker/go-units"
)

// parseSize reads a size or offset given on the command line. It accepts
// integers in any base Go understands ("4096", "0x1000", "0o10000") and
// human-readable binary sizes ("4k", "16MiB").
func parseSize(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if value, err := strconv.ParseInt(text, 0, 64); err == nil {
		if value < 0 {
			return 0, fvkit.Errorf(fvkit.ErrInvalidArgument, "size %q is negative", text)
		}
		return value, nil
	}

	value, err := units.RAMInBytes(text)
	if err != nil {
		return 0, fvkit.ErrInvalidArgument.Wrap(err)
	}
	if value < 0 {
		return 0, fvkit.Errorf(fvkit.ErrInvalidArgument, "size %q is negative", text)
	}
	return value, nil
}

// parseOptionalSize is parseSize, except an empty string means zero.
func parseOptionalSize(text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	return parseSize(text)
}
