// Package xlsx serializes a sheet.Workbook into an Office Open XML
// spreadsheet (.xlsx).
//
// Two engines are available. NativeEncoder writes the package parts itself
// through an ArchiveWriter; ExcelizeEncoder delegates to excelize. Both map
// values the same way:
//
//	Empty  -> cell without a value
//	Int    -> numeric cell
//	Float  -> numeric cell
//	Bool   -> boolean cell
//	Text   -> shared string
//
// Both size the columns of the first row from rendered cell text. Any write
// failure aborts the encode with an *EncodingError and no bytes.
package xlsx

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
)

// Engine names accepted by NewEncoder.
const (
	EngineNative   = "native"
	EngineExcelize = "excelize"
)

// DefaultApplication is written to docProps/app.xml.
const DefaultApplication = "csv2xlsx"

// Encoder turns a workbook into spreadsheet bytes.
type Encoder interface {
	Encode(wb *sheet.Workbook) ([]byte, error)
}

// Options tune encoding. The zero value sizes columns from the first row.
type Options struct {
	// AutoFitRows is how many leading rows are sampled for column widths.
	// Values below 1 sample only the first row.
	AutoFitRows int
}

// NewEncoder returns the encoder for engine ("" selects the native one).
func NewEncoder(engine string, opts Options) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineNative:
		return &NativeEncoder{Options: opts}, nil
	case EngineExcelize:
		return &ExcelizeEncoder{Options: opts}, nil
	default:
		return nil, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownEngine, engine, EngineNative, EngineExcelize)
	}
}

// Encode writes wb with the native engine and default options.
func Encode(wb *sheet.Workbook) ([]byte, error) {
	return (&NativeEncoder{}).Encode(wb)
}

type part struct {
	path string
	data []byte
}

// NativeEncoder builds the package part by part.
type NativeEncoder struct {
	Options

	// NewArchive creates the archive for one Encode call.
	// Defaults to NewZipArchive.
	NewArchive func() ArchiveWriter

	// Application overrides DefaultApplication.
	Application string
}

// Encode implements Encoder.
func (e *NativeEncoder) Encode(wb *sheet.Workbook) ([]byte, error) {
	if err := validateWorkbook(wb); err != nil {
		return nil, err
	}

	newArchive := e.NewArchive
	if newArchive == nil {
		newArchive = NewZipArchive
	}
	app := e.Application
	if app == "" {
		app = DefaultApplication
	}

	sheets := wb.Sheets()
	ss := newSharedStrings()

	// Worksheets are rendered first so the shared string table is complete
	// before the manifest decides whether to reference it.
	worksheets := make([][]byte, len(sheets))
	for i, s := range sheets {
		worksheets[i] = worksheetXML(s, ColumnWidths(s, e.AutoFitRows), ss)
	}
	withStrings := !ss.empty()

	parts := []part{
		{PartContentTypes, contentTypesXML(len(sheets), withStrings)},
		{PartRootRels, rootRelsXML()},
		{PartAppProps, appPropsXML(app)},
		{PartWorkbook, workbookXML(sheets)},
		{PartWorkbookRels, workbookRelsXML(len(sheets), withStrings)},
		{PartStyles, stylesXML()},
	}
	for i, data := range worksheets {
		parts = append(parts, part{WorksheetPart(i), data})
	}
	if withStrings {
		parts = append(parts, part{PartSharedStrings, sharedStringsXML(ss)})
	}

	archive := newArchive()
	for _, p := range parts {
		if err := archive.AddEntry(p.path, p.data); err != nil {
			return nil, encodingErr(p.path, err)
		}
	}

	out, err := archive.Finish()
	if err != nil {
		return nil, encodingErr("", err)
	}
	return out, nil
}
