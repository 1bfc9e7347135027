package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/datalens-cli/internal/table"
)

var statNames = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

func statValues(c ColumnStats) []string {
	return []string{
		strconv.Itoa(c.Count),
		formatStat(c.Mean), formatStat(c.Std), formatStat(c.Min),
		formatStat(c.Q25), formatStat(c.Q50), formatStat(c.Q75), formatStat(c.Max),
	}
}

func formatStat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", f)
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", s.Name))
	}
	if s.FileType != "" {
		b.WriteString(fmt.Sprintf("File type: %s\n", s.FileType))
	}
	if s.SourceRows > s.Rows {
		b.WriteString(fmt.Sprintf("Rows: ~%d (processed %d)\n", s.SourceRows, s.Rows))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", s.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", s.Cols))

	b.WriteString("[COLUMNS]\n")
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = safeName(c)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\n")

	b.WriteString("[DATA TYPES]\n")
	for _, t := range s.Types {
		b.WriteString(fmt.Sprintf("- %s: %s\n", safeName(t.Name), t.DType))
	}

	if len(s.Stats) > 0 {
		b.WriteString("\n[BASIC STATISTICS]\n")
		header := []string{"stat"}
		for _, c := range s.Stats {
			header = append(header, safeName(c.Name))
		}
		rows := make([][]string, len(statNames))
		for i, stat := range statNames {
			rows[i] = []string{stat}
		}
		for _, c := range s.Stats {
			for i, v := range statValues(c) {
				rows[i] = append(rows[i], v)
			}
		}
		writeMarkdownTable(&b, header, rows)
	}

	if len(s.Top) > 0 {
		b.WriteString("\n[TOP VALUES]\n")
		for _, tv := range s.Top {
			b.WriteString(fmt.Sprintf("- %s: ", safeName(tv.Name)))
			for i, kv := range tv.Values {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
			if tv.Unique > len(tv.Values) {
				b.WriteString(fmt.Sprintf("; unique=%d", tv.Unique))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n[MISSING VALUES]\n")
	if missing := NonZero(s.Missing); len(missing) == 0 {
		b.WriteString("none\n")
	} else {
		for _, m := range missing {
			b.WriteString(fmt.Sprintf("- %s: %d\n", safeName(m.Name), m.Count))
		}
	}

	if s.Head != nil && s.Head.NumRows() > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		header := make([]string, len(s.Head.Columns))
		for i, c := range s.Head.Columns {
			header[i] = safeName(c)
		}
		writeMarkdownTable(&b, header, cellStrings(s.Head, 80))
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range s.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(header, " | "))
	b.WriteString(" |\n|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("| ")
		for i, v := range r {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(v))
		}
		b.WriteString(" |\n")
	}
}

func cellStrings(t *table.Table, maxLen int) [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(r))
		for j, v := range r {
			val := v.String()
			if maxLen > 3 && len(val) > maxLen {
				val = val[:maxLen-3] + "..."
			}
			row[j] = val
		}
		out[i] = row
	}
	return out
}

// HeadText renders the preview rows as an aligned text grid with a leading
// row index.
func (s *Summary) HeadText() string {
	if s.Head == nil {
		return ""
	}
	header := append([]string{""}, s.Head.Columns...)
	rows := cellStrings(s.Head, 40)
	for i := range rows {
		rows[i] = append([]string{strconv.Itoa(i)}, rows[i]...)
	}
	return grid(header, rows)
}

// DescribeText renders the statistics with one row per statistic and one
// column per numeric column.
func (s *Summary) DescribeText() string {
	if len(s.Stats) == 0 {
		return ""
	}
	header := []string{""}
	for _, c := range s.Stats {
		header = append(header, c.Name)
	}
	rows := make([][]string, len(statNames))
	for i, stat := range statNames {
		rows[i] = []string{stat}
	}
	for _, c := range s.Stats {
		for i, v := range statValues(c) {
			rows[i] = append(rows[i], v)
		}
	}
	return grid(header, rows)
}

// TypesText renders one "name  dtype" line per column.
func (s *Summary) TypesText() string {
	rows := make([][]string, len(s.Types))
	for i, t := range s.Types {
		rows[i] = []string{t.Name, string(t.DType)}
	}
	return grid(nil, rows)
}

// MissingText renders columns with missing values. It is empty when there
// are none.
func (s *Summary) MissingText() string {
	missing := NonZero(s.Missing)
	if len(missing) == 0 {
		return ""
	}
	rows := make([][]string, len(missing))
	for i, m := range missing {
		rows[i] = []string{m.Name, strconv.Itoa(m.Count)}
	}
	return grid(nil, rows)
}

func grid(header []string, rows [][]string) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	if header != nil {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
