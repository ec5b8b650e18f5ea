// Package csvline splits a single line of delimited text into fields.
//
// The tokenizer works on one physical line at a time; it never joins lines,
// so a quoted field cannot span a line break. Quoting rules:
//
//   - A '"' toggles quoted mode.
//   - Inside quotes, '""' is an escaped quote and yields one literal '"'.
//   - A delimiter outside quotes closes the current field.
//   - An unterminated quote is accepted; the rest of the line is quoted content.
//
// Delimiters may be longer than one byte (e.g. "||" or "\t;").
package csvline

import (
	"errors"
	"strings"
)

// DefaultDelimiter is used when the caller does not supply one.
const DefaultDelimiter = ","

// ErrEmptyDelimiter is returned when a zero-length delimiter is supplied.
var ErrEmptyDelimiter = errors.New("csv delimiter must not be empty")

// ValidateDelimiter checks that delim can be used by ParseLine.
func ValidateDelimiter(delim string) error {
	if delim == "" {
		return ErrEmptyDelimiter
	}
	return nil
}

// Parser splits lines on a fixed, pre-validated delimiter.
type Parser struct {
	delim string
}

// NewParser returns a Parser for delim.
func NewParser(delim string) (Parser, error) {
	if err := ValidateDelimiter(delim); err != nil {
		return Parser{}, err
	}
	return Parser{delim: delim}, nil
}

// Delimiter returns the delimiter the parser splits on.
func (p Parser) Delimiter() string {
	return p.delim
}

// Parse splits line into fields.
func (p Parser) Parse(line string) []string {
	return ParseLine(line, p.delim)
}

// ParseLine splits line into fields separated by delim.
//
// The result always has at least one element: an empty line yields a single
// empty field and a trailing delimiter yields a trailing empty field. A
// line containing N unquoted delimiters yields exactly N+1 fields.
//
// An empty delim is treated as DefaultDelimiter; use NewParser to reject it.
func ParseLine(line, delim string) []string {
	if delim == "" {
		delim = DefaultDelimiter
	}

	var (
		fields   = make([]string, 0, strings.Count(line, delim)+1)
		field    strings.Builder
		inQuotes bool
		single   = len(delim) == 1
	)

	for i := 0; i < len(line); {
		c := line[i]

		if c == '"' {
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i += 2
				continue
			}
			inQuotes = !inQuotes
			i++
			continue
		}

		if !inQuotes {
			if single {
				if c == delim[0] {
					fields = append(fields, field.String())
					field.Reset()
					i++
					continue
				}
			} else if strings.HasPrefix(line[i:], delim) {
				fields = append(fields, field.String())
				field.Reset()
				i += len(delim)
				continue
			}
		}

		field.WriteByte(c)
		i++
	}

	return append(fields, field.String())
}
