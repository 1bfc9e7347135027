package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/datalens-cli/internal/table"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}
)

// workbookFormat reads spreadsheet files. The container is recognized from
// its leading bytes, so a .xls that is really an OOXML package still loads.
type workbookFormat struct{ name string }

func (w workbookFormat) Name() string { return w.name }

func (w workbookFormat) CanLoad(ext string) bool { return ext == w.name }

func (w workbookFormat) Load(u *upload.Upload, opt Options) (*Result, error) {
	head, err := u.Peek()
	if err != nil {
		return nil, err
	}
	var (
		sheet  string
		sheets []string
		rows   [][]string
	)
	switch {
	case bytes.HasPrefix(head, zipMagic):
		sheet, sheets, rows, err = readXLSX(u.Reader(), opt.SheetName)
	case bytes.HasPrefix(head, oleMagic):
		sheet, sheets, rows, err = readXLS(u.Reader(), opt.SheetName)
	default:
		err = errors.New("not a spreadsheet workbook")
	}
	if err != nil {
		return nil, malformed(w.name, err)
	}

	res := &Result{Sheet: sheet, Sheets: sheets}
	if len(rows) == 0 {
		t, _ := table.New(nil, nil, nil)
		res.Table = t
		return res, nil
	}
	header, records := widen(rows[0], rows[1:])
	kept, total := limitRecords(records, opt.MaxRows)
	t, err := table.FromRecords(header, kept)
	if err != nil {
		return nil, malformed(w.name, err)
	}
	res.Table = t
	res.TotalRows = total
	return res, nil
}

func readXLSX(r io.Reader, want string) (string, []string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	sheet, err := pickSheet(sheets, want)
	if err != nil {
		return "", sheets, nil, err
	}
	shown, err := f.GetRows(sheet)
	if err != nil {
		return "", sheets, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", sheets, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	rows := make([][]string, len(raw))
	for i, r := range raw {
		cells := make([]string, len(r))
		for j, v := range r {
			cells[j] = v
			if i < len(shown) && j < len(shown[i]) && shown[i][j] != v && keepDisplayText(f, sheet, i, j) {
				cells[j] = shown[i][j]
			}
		}
		rows[i] = cells
	}
	return sheet, sheets, trimTrailingBlankRows(rows), nil
}

// keepDisplayText reports whether a cell whose formatted text differs from
// its stored value should load as the formatted text. Numbers load from the
// stored value so "1,234.50" or "25.00%" stay numeric; booleans, dates and
// times keep what the sheet shows.
func keepDisplayText(f *excelize.File, sheet string, row, col int) bool {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return false
	}
	if typ, err := f.GetCellType(sheet, cell); err == nil && (typ == excelize.CellTypeBool || typ == excelize.CellTypeDate) {
		return true
	}
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	st, err := f.GetStyle(idx)
	if err != nil || st == nil {
		return false
	}
	if st.CustomNumFmt != nil {
		return isDateFormatCode(*st.CustomNumFmt)
	}
	return isDateNumFmt(st.NumFmt)
}

// isDateNumFmt matches the built-in number format ids for dates and times,
// including the East Asian ones.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode looks for date or time tokens in a custom format code,
// ignoring quoted literals, escaped or padding characters and bracketed
// sections such as colors and currency locales. Bracketed elapsed time like
// [h] or [mm] counts as time.
func isDateFormatCode(code string) bool {
	var (
		quoted  bool
		escaped bool
		bracket *strings.Builder
	)
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case quoted:
			quoted = r != '"'
		case bracket != nil:
			if r != ']' {
				bracket.WriteRune(r)
				continue
			}
			if in := bracket.String(); in != "" && strings.Trim(in, "hms") == "" {
				return true
			}
			bracket = nil
		case r == '\\', r == '_', r == '*':
			escaped = true
		case r == '"':
			quoted = true
		case r == '[':
			bracket = &strings.Builder{}
		case strings.ContainsRune("ymdhs", r):
			return true
		}
	}
	return false
}

// readXLS reads a legacy BIFF workbook. The decoder panics on some corrupt
// inputs; those are reported as errors. Numbers come back as their stored
// value, so no display formatting needs undoing here.
func readXLS(r io.ReadSeeker, want string) (sheet string, sheets []string, rows [][]string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("decode workbook: %v", p)
		}
	}()
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return "", nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	idx := -1
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheets = append(sheets, ws.Name)
	}
	sheet, err = pickSheet(sheets, want)
	if err != nil {
		return "", sheets, nil, err
	}
	for i, name := range sheets {
		if name == sheet {
			idx = i
			break
		}
	}
	ws := wb.GetSheet(idx)
	if ws == nil {
		return "", sheets, nil, fmt.Errorf("sheet %q unreadable", sheet)
	}
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := sheetRow(ws, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			if j < row.FirstCol() {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return sheet, sheets, trimTrailingBlankRows(rows), nil
}

// sheetRow returns nil for rows the sheet never stored.
func sheetRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if strings.EqualFold(s, want) {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found; available sheets: %s", want, strings.Join(sheets, ", "))
}

// trimTrailingBlankRows drops rows at the end of a sheet that hold no text,
// and leading blank rows before the header.
func trimTrailingBlankRows(rows [][]string) [][]string {
	blank := func(r []string) bool {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				return false
			}
		}
		return true
	}
	for len(rows) > 0 && blank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	return rows
}

// widen pads the header so no record is longer than it. Sheets omit trailing
// empty cells, so a data cell past the last header cell gets an unnamed column.
func widen(header []string, records [][]string) ([]string, [][]string) {
	width := len(header)
	for _, r := range records {
		if len(r) > width {
			width = len(r)
		}
	}
	if width > len(header) {
		h := make([]string, width)
		copy(h, header)
		header = h
	}
	return header, records
}
