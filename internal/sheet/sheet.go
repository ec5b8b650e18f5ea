// Package sheet holds the in-memory tabular model built during a conversion.
//
// A Workbook is created per conversion, filled row by row, handed to an
// encoder once and then discarded. Nothing in this package is safe for
// concurrent mutation; it is never shared between conversions.
package sheet

import "github.com/JonMunkholm/csv2xlsx/internal/cell"

// DefaultSheetName is the name of the single sheet produced by a conversion.
const DefaultSheetName = "Data"

// Row is one input line's values in their original order.
type Row []cell.Value

// Sheet is a named, ordered list of rows. Rows may differ in length.
type Sheet struct {
	Name string
	rows []Row
}

// AppendRow adds values as the next row and returns its zero-based index.
// The slice is retained, not copied.
func (s *Sheet) AppendRow(values []cell.Value) int {
	s.rows = append(s.rows, Row(values))
	return len(s.rows) - 1
}

// Rows returns all rows in insertion order. Callers must not modify them.
func (s *Sheet) Rows() []Row {
	return s.rows
}

// Row returns the row at index i.
func (s *Sheet) Row(i int) (Row, bool) {
	if i < 0 || i >= len(s.rows) {
		return nil, false
	}
	return s.rows[i], true
}

// Len returns the number of rows.
func (s *Sheet) Len() int {
	return len(s.rows)
}

// FirstRow returns the first row; ok is false when the sheet is empty.
// Column auto-fit is driven by the width of this row.
func (s *Sheet) FirstRow() (Row, bool) {
	return s.Row(0)
}

// MaxColumns returns the length of the longest row.
func (s *Sheet) MaxColumns() int {
	n := 0
	for _, r := range s.rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Workbook is an ordered collection of sheets.
type Workbook struct {
	sheets []*Sheet
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{}
}

// NewSheet appends an empty sheet named name and returns it.
// Name validity is checked by the encoder, not here.
func (wb *Workbook) NewSheet(name string) *Sheet {
	s := &Sheet{Name: name}
	wb.sheets = append(wb.sheets, s)
	return s
}

// Sheets returns the sheets in creation order.
func (wb *Workbook) Sheets() []*Sheet {
	return wb.sheets
}

// Sheet returns the first sheet named name.
func (wb *Workbook) Sheet(name string) (*Sheet, bool) {
	for _, s := range wb.sheets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// RowCount returns the total number of rows across all sheets.
func (wb *Workbook) RowCount() int {
	n := 0
	for _, s := range wb.sheets {
		n += s.Len()
	}
	return n
}
