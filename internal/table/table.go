// Package table holds the in-memory form of an uploaded dataset: ordered,
// uniquely named columns and ordered rows of tagged cell values.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DType is the inferred scalar type of a whole column.
type DType string

const (
	DTypeInt64   DType = "int64"
	DTypeFloat64 DType = "float64"
	DTypeBool    DType = "bool"
	DTypeObject  DType = "object"
)

// Numeric reports whether the column takes part in descriptive statistics.
func (d DType) Numeric() bool { return d == DTypeInt64 || d == DTypeFloat64 }

// ErrRaggedRow is returned when a row holds more fields than there are columns.
var ErrRaggedRow = errors.New("row has more fields than header")

// Table is an immutable snapshot once built. Every row holds exactly one
// Value per column.
type Table struct {
	Columns []string
	Types   []DType
	Rows    [][]Value
}

// New validates the shape invariants and returns a Table.
func New(columns []string, types []DType, rows [][]Value) (*Table, error) {
	if len(types) != len(columns) {
		return nil, fmt.Errorf("%d types for %d columns", len(types), len(columns))
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i+1, len(r), len(columns))
		}
	}
	return &Table{Columns: columns, Types: types, Rows: rows}, nil
}

func (t *Table) NumRows() int { return len(t.Rows) }
func (t *Table) NumCols() int { return len(t.Columns) }

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the j-th column's values.
func (t *Table) Column(j int) []Value {
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out
}

// FromRecords builds a typed Table from a header and raw string records, the
// shape produced by CSV readers and workbook sheets. Short records are padded
// with Missing; longer records fail with ErrRaggedRow.
func FromRecords(header []string, records [][]string) (*Table, error) {
	cols := UniqueNames(header)
	ncol := len(cols)
	raw := make([][]string, len(records))
	cells := make([][]Value, len(records))
	for i, rec := range records {
		if len(rec) > ncol {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d: %w", i+1, ncol, len(rec), ErrRaggedRow)
		}
		rr := make([]string, ncol)
		copy(rr, rec)
		raw[i] = rr
		row := make([]Value, ncol)
		for j := 0; j < len(rec); j++ {
			row[j] = ParseCell(rec[j])
		}
		cells[i] = row
	}
	types := make([]DType, ncol)
	for j := 0; j < ncol; j++ {
		types[j] = coerceColumn(cells, raw, j)
	}
	return New(cols, types, cells)
}

// coerceColumn decides the column dtype and rewrites cells so that every
// non-missing value matches it: integers widen to reals in float columns,
// and mixed columns fall back to their source text.
func coerceColumn(cells [][]Value, raw [][]string, j int) DType {
	var ints, reals, bools, texts, missing int
	for _, r := range cells {
		switch r[j].Kind() {
		case KindInteger:
			ints++
		case KindReal:
			reals++
		case KindBoolean:
			bools++
		case KindText:
			texts++
		case KindMissing:
			missing++
		}
	}
	present := ints + reals + bools + texts
	switch {
	case len(cells) == 0:
		return DTypeObject
	case present == 0:
		return DTypeFloat64
	case texts == 0 && bools == 0:
		if reals == 0 && missing == 0 {
			return DTypeInt64
		}
		for _, r := range cells {
			if f, ok := r[j].Float(); ok && r[j].Kind() == KindInteger {
				r[j] = Real(f)
			}
		}
		return DTypeFloat64
	case bools == present && missing == 0:
		return DTypeBool
	case bools == present:
		return DTypeObject
	}
	for i, r := range cells {
		if !r[j].IsMissing() {
			r[j] = Text(raw[i][j])
		}
	}
	return DTypeObject
}

// UniqueNames trims header names, names blank headers "Unnamed: i" and
// suffixes repeats as name.1, name.2, ...
func UniqueNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for n := used[base]; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = base + "." + strconv.Itoa(n)
			used[base] = n + 1
		}
		used[name] = 1
		out[i] = name
	}
	return out
}
