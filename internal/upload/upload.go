// Package upload models a named byte stream handed to the loader.
//
// An Upload is read at most twice: one Peek for encoding detection, which
// restores the read position with an explicit seek, followed by one full
// parse through Reader.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Upload is a named, seekable byte stream. It is never written to.
type Upload struct {
	Name string
	src  io.ReadSeeker
	size int64
}

// New wraps a seekable reader under the given file name.
func New(name string, src io.ReadSeeker) *Upload {
	return &Upload{Name: name, src: src, size: -1}
}

// FromBytes wraps an in-memory buffer.
func FromBytes(name string, b []byte) *Upload {
	return &Upload{Name: name, src: bytes.NewReader(b), size: int64(len(b))}
}

// Open reads a file from disk into memory and returns it as an Upload.
func Open(path string) (*Upload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return FromBytes(filepath.Base(path), b), nil
}

// Ext returns the lowercased final dot-suffix of Name without the dot, or ""
// when the name carries no suffix.
func (u *Upload) Ext() string {
	i := strings.LastIndex(u.Name, ".")
	if i < 0 || i == len(u.Name)-1 {
		return ""
	}
	return strings.ToLower(u.Name[i+1:])
}

// Size returns the byte length if known, or -1.
func (u *Upload) Size() int64 { return u.size }

// Peek reads everything from the current position and seeks back to it, so
// the same bytes can be read again through Reader.
func (u *Upload) Peek() ([]byte, error) {
	start, err := u.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locate read position: %w", err)
	}
	b, err := io.ReadAll(u.src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if _, err := u.src.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("restore read position: %w", err)
	}
	if u.size < 0 {
		u.size = int64(len(b))
	}
	return b, nil
}

// Reader returns the underlying stream positioned where the last Peek left it.
func (u *Upload) Reader() io.ReadSeeker { return u.src }
