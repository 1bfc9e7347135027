// Package charset guesses the character encoding of raw text and decodes it
// to UTF-8.
package charset

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// Common labels.
const (
	ASCII = "ascii"
	UTF8  = "utf-8"
)

// Detection is a best-effort encoding guess. Confidence is 0-100.
type Detection struct {
	Label      string
	Confidence int
	// Fallback is true when Label was substituted because the statistical
	// guess fell below Options.MinConfidence or names no known decoder.
	Fallback bool
	// Guessed holds the original statistical guess when Fallback is true.
	Guessed string
}

// Options tunes Detect. The zero value accepts any guess.
type Options struct {
	// MinConfidence below which FallbackLabel replaces the guess. 0 disables.
	MinConfidence int
	// FallbackLabel used when the guess is too weak. Empty means utf-8.
	FallbackLabel string
}

// Detect returns the most probable encoding of b. It never fails and always
// returns a non-empty label; the guess may be wrong for short or ambiguous
// input.
func Detect(b []byte) Detection {
	return DetectWith(b, Options{})
}

// DetectWith is Detect with a confidence floor. A guess that Lookup cannot
// resolve (chardet's visual Arabic and Hebrew EBCDIC variants) is replaced
// the same way as a weak one.
func DetectWith(b []byte, opt Options) Detection {
	return settle(guess(b), opt)
}

func settle(d Detection, opt Options) Detection {
	_, err := Lookup(d.Label)
	if err != nil || (opt.MinConfidence > 0 && d.Confidence < opt.MinConfidence) {
		fb := opt.FallbackLabel
		if fb == "" {
			fb = UTF8
		}
		return Detection{Label: fb, Confidence: d.Confidence, Fallback: true, Guessed: d.Label}
	}
	return d
}

func guess(b []byte) Detection {
	if isASCII(b) {
		return Detection{Label: ASCII, Confidence: 100}
	}
	if utf8.Valid(b) {
		return Detection{Label: UTF8, Confidence: 99}
	}
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || res == nil || res.Charset == "" {
		return Detection{Label: UTF8, Confidence: 0}
	}
	return Detection{Label: res.Charset, Confidence: res.Confidence}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Lookup resolves a label to an encoding. WHATWG names are tried first, then
// IANA names, which covers the labels chardet emits (e.g. "GB-18030").
func Lookup(label string) (encoding.Encoding, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		return nil, fmt.Errorf("empty encoding label")
	}
	switch strings.ToUpper(name) {
	case "ASCII", "UTF-8", "UTF8":
		return unicode.UTF8, nil
	case "UTF-32", "UTF32", "UTF-32BE", "UTF32BE":
		return utf32.UTF32(utf32.BigEndian, utf32.UseBOM), nil
	case "UTF-32LE", "UTF32LE":
		return utf32.UTF32(utf32.LittleEndian, utf32.UseBOM), nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	alt := strings.ReplaceAll(name, "-", "")
	for _, n := range []string{name, alt} {
		if enc, err := ianaindex.IANA.Encoding(n); err == nil && enc != nil {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("unknown encoding %q", label)
}

// NewReader decodes r from the labelled encoding into UTF-8. A leading
// byte-order mark is consumed.
func NewReader(r io.Reader, label string) (io.Reader, error) {
	enc, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	if isUTF32(label) {
		// FF FE 00 00 would read as a UTF-16LE mark; the decoder handles its own.
		return transform.NewReader(r, enc.NewDecoder()), nil
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

func isUTF32(label string) bool {
	return strings.HasPrefix(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(label)), "-", ""), "UTF32")
}
