package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is matched by errors for unknown file suffixes.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMalformedInput is matched by errors for recognized files that fail to parse.
	ErrMalformedInput = errors.New("malformed input")
)

// UnsupportedError names the rejected suffix.
type UnsupportedError struct{ Ext string }

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported file type %s (%s)", describeExt(e.Ext), unsupportedHint())
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupportedFormat }

// MalformedError wraps the underlying parse failure.
type MalformedError struct {
	Format string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s file: %v", e.Format, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedInput }

func malformed(format string, err error) error {
	return &MalformedError{Format: format, Err: err}
}
