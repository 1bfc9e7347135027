package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/KaramelBytes/datalens-cli/internal/charset"
	"github.com/KaramelBytes/datalens-cli/internal/table"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
)

type csvFormat struct{}

func (csvFormat) Name() string { return "csv" }

func (csvFormat) CanLoad(ext string) bool { return ext == "csv" }

// Load sniffs the encoding over the whole upload, then decodes and parses it
// in a single pass.
func (csvFormat) Load(u *upload.Upload, opt Options) (*Result, error) {
	raw, err := u.Peek()
	if err != nil {
		return nil, err
	}
	det := charset.DetectWith(raw, opt.Charset)
	dec, err := charset.NewReader(u.Reader(), det.Label)
	if err != nil {
		return nil, malformed("csv", err)
	}

	r := csv.NewReader(dec)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if opt.Delimiter != 0 {
		r.Comma = opt.Delimiter
	}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("csv", errors.New("no columns to parse from file"))
		}
		return nil, malformed("csv", fmt.Errorf("read header: %w", err))
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, malformed("csv", fmt.Errorf("read row %d: %w", len(records)+1, err))
		}
		if len(rec) > len(header) {
			return nil, malformed("csv", fmt.Errorf("row %d: expected %d fields, saw %d: %w",
				len(records)+1, len(header), len(rec), table.ErrRaggedRow))
		}
		records = append(records, rec)
	}

	kept, total := limitRecords(records, opt.MaxRows)
	t, err := table.FromRecords(header, kept)
	if err != nil {
		return nil, malformed("csv", err)
	}
	return &Result{Table: t, Encoding: &det, TotalRows: total}, nil
}
