package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/table"
)

// Options controls summary construction.
type Options struct {
	// Name and FileType label the dataset in reports.
	Name     string
	FileType string
	// HeadRows is the preview length; 0 means DefaultHeadRows.
	HeadRows int
	// TopValues caps frequency lists for object columns; 0 means 8, negative disables.
	TopValues int
	// SourceRows is the row count before any row limit was applied, if larger.
	SourceRows int
}

// Summary is the derived, read-only view of a table that is shown to the user
// and embedded into prompts.
type Summary struct {
	Name       string         `json:"name,omitempty"`
	FileType   string         `json:"file_type,omitempty"`
	Rows       int            `json:"total_rows"`
	Cols       int            `json:"total_columns"`
	SourceRows int            `json:"source_rows,omitempty"`
	Columns    []string       `json:"columns"`
	Head       *table.Table   `json:"-"`
	Stats      []ColumnStats  `json:"basic_stats"`
	Types      []ColumnType   `json:"data_types"`
	Missing    []MissingCount `json:"missing_values"`
	Top        []TopValues    `json:"top_values,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// TopValues lists the most frequent values of an object column.
type TopValues struct {
	Name   string          `json:"name"`
	Unique int             `json:"unique"`
	Values []CategoryCount `json:"values"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Build derives a Summary from t.
func Build(t *table.Table, opt Options) *Summary {
	s := &Summary{
		Name:     opt.Name,
		FileType: strings.ToUpper(opt.FileType),
		Rows:     t.NumRows(),
		Cols:     t.NumCols(),
		Columns:  append([]string(nil), t.Columns...),
		Head:     Head(t, opt.HeadRows),
		Stats:    Describe(t),
		Types:    ColumnTypes(t),
		Missing:  MissingCounts(t),
	}
	if opt.SourceRows > s.Rows {
		s.SourceRows = opt.SourceRows
		s.Warnings = append(s.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", s.Rows, opt.SourceRows))
	}
	limit := opt.TopValues
	if limit == 0 {
		limit = 8
	}
	if limit > 0 {
		for j, name := range t.Columns {
			if t.Types[j] != table.DTypeObject {
				continue
			}
			if tv, ok := topValues(name, t.Column(j), limit); ok {
				s.Top = append(s.Top, tv)
			}
		}
	}
	return s
}

const maxTopValueLen = 64

func topValues(name string, col []table.Value, limit int) (TopValues, bool) {
	cats := map[string]int{}
	for _, v := range col {
		if v.IsMissing() {
			continue
		}
		cats[v.String()]++
	}
	if len(cats) == 0 {
		return TopValues{}, false
	}
	// Long free-text values count toward Unique but are not listed.
	tops := make([]CategoryCount, 0, len(cats))
	for k, n := range cats {
		if len(k) > maxTopValueLen {
			continue
		}
		tops = append(tops, CategoryCount{Value: k, Count: n})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return TopValues{Name: name, Unique: len(cats), Values: tops}, true
}

// MissingTotal sums missing cells over all columns.
func (s *Summary) MissingTotal() int {
	var n int
	for _, m := range s.Missing {
		n += m.Count
	}
	return n
}

// SampleRows returns the head rows as plain Go values, nil for missing cells.
func (s *Summary) SampleRows() [][]any {
	if s.Head == nil {
		return nil
	}
	out := make([][]any, len(s.Head.Rows))
	for i, r := range s.Head.Rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = v.Interface()
		}
		out[i] = row
	}
	return out
}

// MarshalJSON adds the head rows as "sample_data".
func (s *Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		*alias
		Sample [][]any `json:"sample_data"`
	}{(*alias)(s), s.SampleRows()})
}
