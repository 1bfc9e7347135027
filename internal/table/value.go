package table

import (
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindText
	KindInteger
	KindReal
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero value is Missing.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

func Missing() Value        { return Value{} }
func Text(s string) Value   { return Value{kind: KindText, s: s} }
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }
func Real(f float64) Value  { return Value{kind: KindReal, f: f} }
func Boolean(b bool) Value  { return Value{kind: KindBoolean, b: b} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric value of Integer and Real cells.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindReal:
		return v.f, true
	case KindMissing, KindText, KindBoolean:
		return 0, false
	default:
		return 0, false
	}
}

// Int returns the payload of an Integer cell.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInteger }

// Str returns the payload of a Text cell.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindText }

// Bool returns the payload of a Boolean cell.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBoolean }

// String renders the cell the way it is shown in previews and prompts.
func (v Value) String() string {
	switch v.kind {
	case KindMissing:
		return "NaN"
	case KindText:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return FormatFloat(v.f)
	case KindBoolean:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

// Interface returns the payload as a plain Go value, nil for Missing.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindInteger:
		return v.i
	case KindReal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil
		}
		return v.f
	case KindBoolean:
		return v.b
	case KindMissing:
		return nil
	default:
		return nil
	}
}

// FormatFloat prints whole floats with a trailing ".0" so they stay
// distinguishable from integers.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return s
		}
	}
	return s + ".0"
}
