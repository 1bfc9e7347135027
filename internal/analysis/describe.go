// Package analysis derives read-only summaries from a loaded table: the
// leading rows, descriptive statistics of numeric columns, column dtypes and
// missing-value counts. Every function is pure and leaves the table untouched.
package analysis

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/KaramelBytes/datalens-cli/internal/table"
)

// DefaultHeadRows is the preview length used when none is configured.
const DefaultHeadRows = 5

// ColumnStats holds the descriptive statistics of one numeric column. Fields
// other than Count are NaN when the column has no values; Std is NaN with
// fewer than two values.
type ColumnStats struct {
	Name  string
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// MarshalJSON writes NaN statistics as null.
func (s ColumnStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
		Mean  any    `json:"mean"`
		Std   any    `json:"std"`
		Min   any    `json:"min"`
		Q25   any    `json:"25%"`
		Q50   any    `json:"50%"`
		Q75   any    `json:"75%"`
		Max   any    `json:"max"`
	}{s.Name, s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.Q25), num(s.Q50), num(s.Q75), num(s.Max)})
}

func num(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// ColumnType pairs a column with its inferred dtype.
type ColumnType struct {
	Name  string      `json:"name"`
	DType table.DType `json:"dtype"`
}

// MissingCount is the number of Missing cells in a column.
type MissingCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Head returns a table holding the first n rows of t, or all rows when t is
// shorter. A non-positive n selects DefaultHeadRows.
func Head(t *table.Table, n int) *table.Table {
	if n <= 0 {
		n = DefaultHeadRows
	}
	if n > t.NumRows() {
		n = t.NumRows()
	}
	rows := make([][]table.Value, n)
	for i := 0; i < n; i++ {
		rows[i] = append([]table.Value(nil), t.Rows[i]...)
	}
	return &table.Table{
		Columns: append([]string(nil), t.Columns...),
		Types:   append([]table.DType(nil), t.Types...),
		Rows:    rows,
	}
}

// Describe computes statistics for every int64 and float64 column, in column
// order. Other columns are skipped. Quantiles use linear interpolation and
// Std is the sample standard deviation.
func Describe(t *table.Table) []ColumnStats {
	var out []ColumnStats
	for j, name := range t.Columns {
		if !t.Types[j].Numeric() {
			continue
		}
		out = append(out, describeColumn(name, t.Column(j)))
	}
	return out
}

func describeColumn(name string, col []table.Value) ColumnStats {
	nan := math.NaN()
	s := ColumnStats{Name: name, Mean: nan, Std: nan, Min: nan, Q25: nan, Q50: nan, Q75: nan, Max: nan}

	vals := make([]float64, 0, len(col))
	var mean, m2 float64
	for _, v := range col {
		x, ok := v.Float()
		if !ok {
			continue
		}
		vals = append(vals, x)
		// Welford update
		delta := x - mean
		mean += delta / float64(len(vals))
		m2 += delta * (x - mean)
	}
	s.Count = len(vals)
	if s.Count == 0 {
		return s
	}
	s.Mean = mean
	if s.Count > 1 {
		s.Std = math.Sqrt(m2 / float64(s.Count-1))
	}
	sort.Float64s(vals)
	s.Min = vals[0]
	s.Max = vals[len(vals)-1]
	s.Q25 = quantile(vals, 0.25)
	s.Q50 = quantile(vals, 0.5)
	s.Q75 = quantile(vals, 0.75)
	return s
}

// ColumnTypes lists the dtype of every column in order.
func ColumnTypes(t *table.Table) []ColumnType {
	out := make([]ColumnType, len(t.Columns))
	for j, name := range t.Columns {
		out[j] = ColumnType{Name: name, DType: t.Types[j]}
	}
	return out
}

// MissingCounts lists the missing count of every column in order, zeros
// included.
func MissingCounts(t *table.Table) []MissingCount {
	out := make([]MissingCount, len(t.Columns))
	for j, name := range t.Columns {
		out[j].Name = name
	}
	for _, r := range t.Rows {
		for j, v := range r {
			if v.IsMissing() {
				out[j].Count++
			}
		}
	}
	return out
}

// NonZero drops entries with a zero count.
func NonZero(counts []MissingCount) []MissingCount {
	var out []MissingCount
	for _, c := range counts {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	return out
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
