package cell

// infer.go turns a trimmed CSV field into a typed Value.
//
// The rule chain is intentionally simple and order dependent:
//
//  1. ""                        -> Empty
//  2. "\"...\"" (len > 1)       -> strip one layer of quotes, continue
//  3. contains '.'              -> float64, or fall through to rule 5
//  4. no '.'                    -> int64, or fall through to rule 5
//  5. true/false (any case)     -> Bool
//  6. anything else             -> Text (the unquoted string)
//
// Known quirks kept for compatibility with files produced by earlier versions
// of the converter:
//   - leading zeros are lost ("007" -> 7)
//   - a '.' never falls back to integer parsing ("1.2.3" -> Text)
//   - exponent notation without '.' is text ("1e5" -> Text)
//   - numbers outside the int64/float64 range are text

import (
	"strconv"
	"strings"
)

// Infer converts field into a Value. It never fails: content that does not
// parse as a number or boolean becomes Text.
func Infer(field string) Value {
	if field == "" {
		return Empty()
	}

	s := Unquote(field)

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f)
		}
	} else if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}

	switch {
	case strings.EqualFold(s, "true"):
		return Bool(true)
	case strings.EqualFold(s, "false"):
		return Bool(false)
	}

	return Text(s)
}

// InferAll infers every field of a parsed line after Trim.
func InferAll(fields []string) []Value {
	values := make([]Value, len(fields))
	for i, f := range fields {
		values[i] = Infer(Trim(f))
	}
	return values
}

// Trim removes leading and trailing ASCII control and space characters
// (U+0000 through U+0020). Other Unicode spaces such as U+00A0 are kept.
func Trim(field string) string {
	return strings.TrimFunc(field, func(r rune) bool { return r <= ' ' })
}

// Unquote removes exactly one pair of surrounding double quotes.
// Strings shorter than two bytes or not quoted on both ends are returned as is.
func Unquote(s string) string {
	if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
