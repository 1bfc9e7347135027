package table

import (
	"strconv"
	"strings"
)

// missingMarkers are the cell spellings read as Missing.
var missingMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// ParseCell classifies one raw field. Surrounding whitespace is ignored for
// classification; Text cells keep the raw string.
func ParseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if _, ok := missingMarkers[s]; ok {
		return Missing()
	}
	switch s {
	case "True", "TRUE", "true":
		return Boolean(true)
	case "False", "FALSE", "false":
		return Boolean(false)
	}
	if looksNumeric(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Integer(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Real(f)
		}
	}
	return Text(raw)
}

// looksNumeric rejects forms strconv accepts but tabular sources do not use
// as numbers, such as hex floats and underscores.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			l := strings.ToLower(s)
			return l == "inf" || l == "-inf" || l == "+inf" || l == "infinity" || l == "-infinity"
		}
	}
	return true
}
