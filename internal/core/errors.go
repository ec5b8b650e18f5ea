package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUTF8 reports input bytes that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("input is not valid UTF-8")

	// ErrLineTooLong reports a line exceeding Options.MaxLineBytes.
	ErrLineTooLong = errors.New("line exceeds maximum length")
)

// ReadError reports input that could not be read or decoded.
// Line is 1-based; 0 means the failure happened before any line was read.
type ReadError struct {
	Line int
	Err  error
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("read error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("read error: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

var (
	// ErrNoFile is returned when a request carries no input file.
	ErrNoFile = errors.New("no file provided")

	// ErrFileTooLarge is returned when the input exceeds the upload limit.
	ErrFileTooLarge = errors.New("file too large")
)
