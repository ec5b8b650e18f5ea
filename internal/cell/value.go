// Package cell defines the typed value stored in a spreadsheet cell and the
// rule chain that infers it from raw CSV text.
package cell

import (
	"math"
	"strconv"
)

// Kind identifies which payload of a Value is active.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindInt
	KindFloat
	KindBool
	KindText
)

var kindNames = [...]string{
	KindEmpty: "empty",
	KindInt:   "integer",
	KindFloat: "float",
	KindBool:  "boolean",
	KindText:  "text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged union holding exactly one of: nothing, an int64, a
// float64, a bool or a string. The zero Value is Empty.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

// Empty returns a Value with no content.
func Empty() Value { return Value{} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Text returns a string Value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Kind reports the active kind.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v holds no content.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsText returns the string payload.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// String renders v the way a spreadsheet shows it under the "General"
// number format. Empty renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return FormatGeneral(v.f)
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindText:
		return v.s
	default:
		return ""
	}
}

// FormatGeneral formats f in spreadsheet "General" style: integral values
// print without a decimal point, everything else uses the shortest
// round-tripping representation.
func FormatGeneral(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'G', -1, 64)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}
