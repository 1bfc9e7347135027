// Package loader turns an uploaded file into a typed table. The loader is
// chosen by the lowercased final suffix of the upload name.
package loader

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/charset"
	"github.com/KaramelBytes/datalens-cli/internal/table"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
)

// Format loads one family of file types.
type Format interface {
	Name() string
	CanLoad(ext string) bool
	Load(u *upload.Upload, opt Options) (*Result, error)
}

// Options controls parsing.
type Options struct {
	// Delimiter for delimited text. 0 means ','.
	Delimiter rune
	// MaxRows keeps at most this many data rows; 0 means unlimited.
	MaxRows int
	// SheetName selects a workbook sheet by name. Empty means the first sheet.
	SheetName string
	// Charset tunes encoding detection for delimited text.
	Charset charset.Options
}

// Result is a loaded table plus what was learned while loading it.
type Result struct {
	Table  *table.Table
	Format string
	// Encoding is set for delimited text only.
	Encoding *charset.Detection
	// Sheet is the workbook sheet that was read.
	Sheet  string
	Sheets []string
	// TotalRows counts data rows in the source, including rows dropped by MaxRows.
	TotalRows int
}

// Truncated reports whether MaxRows dropped rows.
func (r *Result) Truncated() bool { return r.Table != nil && r.TotalRows > r.Table.NumRows() }

var registry []Format

// Register adds a format implementation to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Extensions lists the suffixes accepted by registered formats.
func Extensions() []string {
	var out []string
	for _, ext := range []string{"csv", "xlsx", "xls"} {
		if lookup(ext) != nil {
			out = append(out, ext)
		}
	}
	return out
}

func lookup(ext string) Format {
	for _, f := range registry {
		if f.CanLoad(ext) {
			return f
		}
	}
	return nil
}

// Load parses u into a Table. Unknown suffixes fail with ErrUnsupportedFormat;
// recognized files that cannot be parsed fail with ErrMalformedInput. No
// partial table is ever returned.
func Load(u *upload.Upload, opt Options) (*Result, error) {
	ext := u.Ext()
	f := lookup(ext)
	if f == nil {
		return nil, &UnsupportedError{Ext: ext}
	}
	res, err := f.Load(u, opt)
	if err != nil {
		return nil, err
	}
	res.Format = f.Name()
	return res, nil
}

// LoadFile opens path and loads it.
func LoadFile(path string, opt Options) (*Result, error) {
	u, err := upload.Open(path)
	if err != nil {
		return nil, err
	}
	return Load(u, opt)
}

func init() {
	Register(csvFormat{})
	Register(workbookFormat{name: "xlsx"})
	Register(workbookFormat{name: "xls"})
}

// limitRecords applies MaxRows and returns the kept records and the total count.
func limitRecords(records [][]string, maxRows int) ([][]string, int) {
	total := len(records)
	if maxRows > 0 && total > maxRows {
		return records[:maxRows], total
	}
	return records, total
}

func describeExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return "." + strings.ToLower(ext)
}

func unsupportedHint() string {
	exts := Extensions()
	for i, e := range exts {
		exts[i] = "." + e
	}
	return fmt.Sprintf("supported: %s", strings.Join(exts, ", "))
}
