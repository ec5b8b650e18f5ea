package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/csv2xlsx/internal/cell"
	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
)

// ExcelizeEncoder writes workbooks through excelize's stream writer.
type ExcelizeEncoder struct {
	Options
}

// Encode implements Encoder.
func (e *ExcelizeEncoder) Encode(wb *sheet.Workbook) (out []byte, err error) {
	if err := validateWorkbook(wb); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			out, err = nil, encodingErr("", cerr)
		}
	}()

	for i, s := range wb.Sheets() {
		part := WorksheetPart(i)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return nil, encodingErr(PartWorkbook, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, encodingErr(PartWorkbook, err)
		}

		if err := e.writeSheet(f, s); err != nil {
			return nil, encodingErr(part, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, encodingErr("", err)
	}
	return buf.Bytes(), nil
}

func (e *ExcelizeEncoder) writeSheet(f *excelize.File, s *sheet.Sheet) error {
	sw, err := f.NewStreamWriter(s.Name)
	if err != nil {
		return err
	}

	// Column widths must be set before the first row is streamed.
	for col, w := range ColumnWidths(s, e.AutoFitRows) {
		if w <= 0 {
			continue
		}
		if err := sw.SetColWidth(col+1, col+1, w); err != nil {
			return fmt.Errorf("column %s width: %w", ColumnName(col), err)
		}
	}

	for r, row := range s.Rows() {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = excelizeValue(v)
		}
		if err := sw.SetRow(CellRef(r, 0), values); err != nil {
			return fmt.Errorf("row %d: %w", r+1, err)
		}
	}

	return sw.Flush()
}

// excelizeValue maps a cell value to the Go type excelize stores natively.
// Empty maps to nil, which the stream writer skips.
func excelizeValue(v cell.Value) interface{} {
	switch v.Kind() {
	case cell.KindInt:
		i, _ := v.AsInt()
		return i
	case cell.KindFloat:
		f, _ := v.AsFloat()
		return f
	case cell.KindBool:
		b, _ := v.AsBool()
		return b
	case cell.KindText:
		s, _ := v.AsText()
		return clampText(s)
	default:
		return nil
	}
}
