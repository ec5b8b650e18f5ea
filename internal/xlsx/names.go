package xlsx

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
)

// Worksheet limits of the format.
const (
	MaxRows         = 1048576
	MaxColumns      = 16384
	MaxSheetNameLen = 31
	MaxCellTextLen  = 32767
)

// ColumnName converts a zero-based column index to letters: 0 -> A, 26 -> AA.
func ColumnName(col int) string {
	var b [4]byte
	i := len(b)
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		i--
		b[i] = byte('A' + (n-1)%26)
	}
	return string(b[i:])
}

// CellRef returns the A1-style reference for zero-based row and column.
func CellRef(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row+1)
}

// ValidateSheetName checks name against the workbook naming rules.
func ValidateSheetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSheetName)
	}
	if utf8.RuneCountInString(name) > MaxSheetNameLen {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidSheetName, name, MaxSheetNameLen)
	}
	if strings.ContainsAny(name, `[]:*?/\`) {
		return fmt.Errorf("%w: %q contains one of []:*?/\\", ErrInvalidSheetName, name)
	}
	if name[0] == '\'' || name[len(name)-1] == '\'' {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrInvalidSheetName, name)
	}
	return nil
}

// validateWorkbook checks every sheet before any part is written.
func validateWorkbook(wb *sheet.Workbook) error {
	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return encodingErr("xl/workbook.xml", ErrNoSheets)
	}

	seen := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		if err := ValidateSheetName(s.Name); err != nil {
			return encodingErr("xl/workbook.xml", err)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return encodingErr("xl/workbook.xml", fmt.Errorf("%w: duplicate name %q", ErrInvalidSheetName, s.Name))
		}
		seen[key] = true

		if s.Len() > MaxRows {
			return encodingErr(s.Name, fmt.Errorf("%w: %d > %d", ErrTooManyRows, s.Len(), MaxRows))
		}
		if n := s.MaxColumns(); n > MaxColumns {
			return encodingErr(s.Name, fmt.Errorf("%w: %d > %d", ErrTooManyColumns, n, MaxColumns))
		}
	}
	return nil
}

// clampText drops characters XML 1.0 cannot carry and truncates s to the
// maximum number of characters a cell holds.
func clampText(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return !isXMLChar(r) }) >= 0 {
		s = strings.Map(func(r rune) rune {
			if isXMLChar(r) {
				return r
			}
			return -1
		}, s)
	}
	if len(s) <= MaxCellTextLen || utf8.RuneCountInString(s) <= MaxCellTextLen {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxCellTextLen {
			return s[:i]
		}
		n++
	}
	return s
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= utf8.MaxRune:
		return true
	}
	return false
}
