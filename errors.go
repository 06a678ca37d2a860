package fvkit

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FirmwareError is the error type returned by every parsing and building
// routine in this module. Use [errors.Is] against the Err* values below to
// find out what kind of problem occurred.
type FirmwareError interface {
	error
	WithMessage(message string) FirmwareError
	Wrap(err error) FirmwareError
}

type baseFirmwareError string

const rootError = baseFirmwareError("")

// ErrTruncatedInput means fewer bytes were available than a header declares.
var ErrTruncatedInput = rootError.WithMessage("Truncated input")

// ErrInvalidLength means a declared size is smaller than the header it implies,
// or zero where a non-zero value is required.
var ErrInvalidLength = rootError.WithMessage("Invalid length")

// ErrOverflow means a declared extent runs past the end of its container.
var ErrOverflow = rootError.WithMessage("Extent exceeds container")

// ErrUnsupportedCompression means a GUID-defined section names an algorithm
// there's no codec for.
var ErrUnsupportedCompression = rootError.WithMessage("Unsupported compression algorithm")

// ErrVolumeTooSmall means the packed files don't fit in the requested volume
// size.
var ErrVolumeTooSmall = rootError.WithMessage("Volume too small for its contents")

// ErrUnknownVolumeFormat means the volume's format GUID isn't one of the
// standard file system GUIDs. This is never fatal; the volume is kept as an
// opaque blob.
var ErrUnknownVolumeFormat = rootError.WithMessage("Unknown volume format")

// ErrCorruptedData means a recognized codec couldn't decode a payload.
var ErrCorruptedData = rootError.WithMessage("Corrupted encoded data")

// ErrRecursionLimit means volumes and compressed sections are nested deeper
// than the parser's limit. The too-deep part is left unparsed.
var ErrRecursionLimit = rootError.WithMessage("Nesting too deep")

// ErrInvalidArgument means a caller passed a bad value to a builder, a
// manifest field was wrong, or a command-line option made no sense.
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")

func (e baseFirmwareError) Error() string {
	return string(e)
}

func (e baseFirmwareError) RootCause() FirmwareError {
	return e
}

func (e baseFirmwareError) WithMessage(message string) FirmwareError {
	return customFirmwareError{
		message:       message,
		originalError: e,
	}
}

func (e baseFirmwareError) Wrap(err error) FirmwareError {
	return customFirmwareError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customFirmwareError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customFirmwareError) Error() string {
	return e.message
}

func (e customFirmwareError) WithMessage(message string) FirmwareError {
	return customFirmwareError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customFirmwareError) Wrap(err error) FirmwareError {
	return customFirmwareError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customFirmwareError) Unwrap() error {
	return e.originalError
}

// Errorf creates a new error of the same kind as `kind` with a formatted
// message appended, e.g. "Extent exceeds container: file at 0x48 ...".
func Errorf(kind FirmwareError, format string, args ...any) FirmwareError {
	return kind.WithMessage(fmt.Sprintf(format, args...))
}
