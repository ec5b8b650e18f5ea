package xlsx

import (
	"errors"
	"fmt"
)

// EncodingError reports a failure while writing part of the spreadsheet
// package. No bytes are returned alongside it.
type EncodingError struct {
	Part string // package part being written, e.g. "xl/worksheets/sheet1.xml"
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("xlsx encoding error: %v", e.Err)
	}
	return fmt.Sprintf("xlsx encoding error in %s: %v", e.Part, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func encodingErr(part string, err error) *EncodingError {
	return &EncodingError{Part: part, Err: err}
}

var (
	// ErrUnknownEngine is returned by NewEncoder for an unrecognised name.
	ErrUnknownEngine = errors.New("unknown xlsx engine")

	// ErrInvalidSheetName is wrapped by EncodingError when a sheet name
	// cannot be stored in a workbook.
	ErrInvalidSheetName = errors.New("invalid sheet name")

	// ErrNoSheets is wrapped by EncodingError for a workbook without sheets.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrTooManyRows is wrapped by EncodingError when a sheet exceeds the
	// row limit of the format.
	ErrTooManyRows = errors.New("too many rows for one worksheet")

	// ErrTooManyColumns is wrapped by EncodingError when a row exceeds the
	// column limit of the format.
	ErrTooManyColumns = errors.New("too many columns for one worksheet")
)
