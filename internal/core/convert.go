package core

// convert.go is the conversion facade: CSV bytes in, XLSX bytes out.
//
// Every physical input line becomes exactly one row. Fields are split with
// csvline, trimmed, then typed with cell.Infer. There is no header handling
// and no multi-line quoted fields.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"github.com/JonMunkholm/csv2xlsx/internal/cell"
	"github.com/JonMunkholm/csv2xlsx/internal/csvline"
	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
)

// initialLineBuffer is the starting scanner buffer; it grows up to
// Options.MaxLineBytes.
const initialLineBuffer = 64 * 1024

// Convert reads delimited text from r and returns a complete XLSX document
// with a single sheet named sheet.DefaultSheetName.
func Convert(r io.Reader, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	wb, err := ReadWorkbook(r, opts)
	if err != nil {
		return nil, err
	}
	enc, err := opts.encoder()
	if err != nil {
		return nil, err
	}
	return enc.Encode(wb)
}

// ReadWorkbook parses r into an in-memory workbook without encoding it.
func ReadWorkbook(r io.Reader, opts Options) (*sheet.Workbook, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	parser, err := csvline.NewParser(opts.Delimiter)
	if err != nil {
		return nil, err
	}

	in, err := decodeInput(r, opts)
	if err != nil {
		return nil, &ReadError{Err: err}
	}

	wb := sheet.NewWorkbook()
	s := wb.NewSheet(sheet.DefaultSheetName)

	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = math.MaxInt
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, min(initialLineBuffer, maxLine)), maxLine)
	sc.Split(scanLines)

	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		if !utf8.Valid(text) {
			return nil, &ReadError{Line: line, Err: ErrInvalidUTF8}
		}
		s.AppendRow(cell.InferAll(parser.Parse(string(text))))
	}

	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &ReadError{Line: line + 1, Err: ErrLineTooLong}
		}
		return nil, &ReadError{Line: line + 1, Err: err}
	}

	return wb, nil
}

// ConvertFile converts the file at inPath and writes the result to outPath.
// It returns the number of rows written.
func ConvertFile(inPath, outPath string, opts Options) (int, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	opts = opts.withDefaults()
	wb, err := ReadWorkbook(f, opts)
	if err != nil {
		return 0, err
	}

	enc, err := opts.encoder()
	if err != nil {
		return 0, err
	}
	data, err := enc.Encode(wb)
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("write output: %w", err)
	}
	return wb.RowCount(), nil
}
