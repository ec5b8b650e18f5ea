package xlsx

// parts.go renders the XML parts of a SpreadsheetML package.

import (
	"bytes"
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csv2xlsx/internal/cell"
	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

	nsMain          = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsExtended      = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"

	relOfficeDocument = nsRelationships + "/officeDocument"
	relExtendedProps  = nsRelationships + "/extended-properties"
	relWorksheet      = nsRelationships + "/worksheet"
	relStyles         = nsRelationships + "/styles"
	relSharedStrings  = nsRelationships + "/sharedStrings"

	ctRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ctWorkbook      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ctWorksheet     = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctStyles        = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	ctSharedStrings = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	ctExtended      = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
)

// Part paths inside the package.
const (
	PartContentTypes  = "[Content_Types].xml"
	PartRootRels      = "_rels/.rels"
	PartAppProps      = "docProps/app.xml"
	PartWorkbook      = "xl/workbook.xml"
	PartWorkbookRels  = "xl/_rels/workbook.xml.rels"
	PartStyles        = "xl/styles.xml"
	PartSharedStrings = "xl/sharedStrings.xml"
)

// WorksheetPart returns the path of the i-th (zero-based) worksheet.
func WorksheetPart(i int) string {
	return "xl/worksheets/sheet" + strconv.Itoa(i+1) + ".xml"
}

// sharedStrings deduplicates text cells into an indexed table.
type sharedStrings struct {
	index map[string]int
	list  []string
	refs  int
}

func newSharedStrings() *sharedStrings {
	return &sharedStrings{index: make(map[string]int)}
}

func (ss *sharedStrings) add(s string) int {
	ss.refs++
	if i, ok := ss.index[s]; ok {
		return i
	}
	i := len(ss.list)
	ss.index[s] = i
	ss.list = append(ss.list, s)
	return i
}

func (ss *sharedStrings) empty() bool {
	return len(ss.list) == 0
}

func escape(b *bytes.Buffer, s string) {
	// bytes.Buffer writes cannot fail
	_ = xml.EscapeText(b, []byte(s))
}

func contentTypesXML(sheetCount int, withStrings bool) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="` + nsContentTypes + `">`)
	b.WriteString(`<Default Extension="rels" ContentType="` + ctRelationships + `"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Override PartName="/` + PartWorkbook + `" ContentType="` + ctWorkbook + `"/>`)
	for i := 0; i < sheetCount; i++ {
		b.WriteString(`<Override PartName="/` + WorksheetPart(i) + `" ContentType="` + ctWorksheet + `"/>`)
	}
	b.WriteString(`<Override PartName="/` + PartStyles + `" ContentType="` + ctStyles + `"/>`)
	if withStrings {
		b.WriteString(`<Override PartName="/` + PartSharedStrings + `" ContentType="` + ctSharedStrings + `"/>`)
	}
	b.WriteString(`<Override PartName="/` + PartAppProps + `" ContentType="` + ctExtended + `"/>`)
	b.WriteString(`</Types>`)
	return b.Bytes()
}

func rootRelsXML() []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="` + nsPackageRels + `">`)
	b.WriteString(`<Relationship Id="rId1" Type="` + relOfficeDocument + `" Target="` + PartWorkbook + `"/>`)
	b.WriteString(`<Relationship Id="rId2" Type="` + relExtendedProps + `" Target="` + PartAppProps + `"/>`)
	b.WriteString(`</Relationships>`)
	return b.Bytes()
}

func appPropsXML(application string) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<Properties xmlns="` + nsExtended + `"><Application>`)
	escape(&b, application)
	b.WriteString(`</Application></Properties>`)
	return b.Bytes()
}

func workbookXML(sheets []*sheet.Sheet) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<workbook xmlns="` + nsMain + `" xmlns:r="` + nsRelationships + `">`)
	b.WriteString(`<bookViews><workbookView activeTab="0"/></bookViews><sheets>`)
	for i, s := range sheets {
		id := strconv.Itoa(i + 1)
		b.WriteString(`<sheet name="`)
		escape(&b, s.Name)
		b.WriteString(`" sheetId="` + id + `" r:id="rId` + id + `"/>`)
	}
	b.WriteString(`</sheets></workbook>`)
	return b.Bytes()
}

// workbookRelsXML numbers worksheets rId1..rIdN, then styles and strings.
func workbookRelsXML(sheetCount int, withStrings bool) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="` + nsPackageRels + `">`)
	for i := 0; i < sheetCount; i++ {
		b.WriteString(`<Relationship Id="rId` + strconv.Itoa(i+1) + `" Type="` + relWorksheet +
			`" Target="` + strings.TrimPrefix(WorksheetPart(i), "xl/") + `"/>`)
	}
	b.WriteString(`<Relationship Id="rId` + strconv.Itoa(sheetCount+1) + `" Type="` + relStyles + `" Target="styles.xml"/>`)
	if withStrings {
		b.WriteString(`<Relationship Id="rId` + strconv.Itoa(sheetCount+2) + `" Type="` + relSharedStrings + `" Target="sharedStrings.xml"/>`)
	}
	b.WriteString(`</Relationships>`)
	return b.Bytes()
}

// stylesXML is the smallest stylesheet spreadsheet applications accept
// without repair: one font, the two mandatory fills, one border, one xf.
func stylesXML() []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<styleSheet xmlns="` + nsMain + `">`)
	b.WriteString(`<fonts count="1"><font><sz val="11"/><name val="Calibri"/><family val="2"/></font></fonts>`)
	b.WriteString(`<fills count="2"><fill><patternFill patternType="none"/></fill><fill><patternFill patternType="gray125"/></fill></fills>`)
	b.WriteString(`<borders count="1"><border><left/><right/><top/><bottom/><diagonal/></border></borders>`)
	b.WriteString(`<cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs>`)
	b.WriteString(`<cellXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0" xfId="0"/></cellXfs>`)
	b.WriteString(`<cellStyles count="1"><cellStyle name="Normal" xfId="0" builtinId="0"/></cellStyles>`)
	b.WriteString(`</styleSheet>`)
	return b.Bytes()
}

func sharedStringsXML(ss *sharedStrings) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<sst xmlns="` + nsMain + `" count="` + strconv.Itoa(ss.refs) +
		`" uniqueCount="` + strconv.Itoa(len(ss.list)) + `">`)
	for _, s := range ss.list {
		writeText(&b, s)
	}
	b.WriteString(`</sst>`)
	return b.Bytes()
}

func writeText(b *bytes.Buffer, s string) {
	if s != strings.TrimSpace(s) {
		b.WriteString(`<si><t xml:space="preserve">`)
	} else {
		b.WriteString(`<si><t>`)
	}
	escape(b, s)
	b.WriteString(`</t></si>`)
}

// worksheetXML renders one sheet. Text cells are interned into ss.
func worksheetXML(s *sheet.Sheet, widths []float64, ss *sharedStrings) []byte {
	var b bytes.Buffer
	b.Grow(64 * (s.Len() + 1))

	b.WriteString(xmlHeader)
	b.WriteString(`<worksheet xmlns="` + nsMain + `" xmlns:r="` + nsRelationships + `">`)

	dim := "A1"
	if cols := s.MaxColumns(); s.Len() > 0 && cols > 0 {
		dim = "A1:" + CellRef(s.Len()-1, cols-1)
	}
	b.WriteString(`<dimension ref="` + dim + `"/>`)
	b.WriteString(`<sheetViews><sheetView workbookViewId="0"/></sheetViews>`)
	b.WriteString(`<sheetFormatPr defaultRowHeight="15"/>`)

	writeCols(&b, widths)

	if s.Len() == 0 {
		b.WriteString(`<sheetData/>`)
	} else {
		b.WriteString(`<sheetData>`)
		for r, row := range s.Rows() {
			writeRow(&b, r, row, ss)
		}
		b.WriteString(`</sheetData>`)
	}

	b.WriteString(`</worksheet>`)
	return b.Bytes()
}

func writeCols(b *bytes.Buffer, widths []float64) {
	started := false
	for col, w := range widths {
		if w <= 0 {
			continue
		}
		if !started {
			b.WriteString(`<cols>`)
			started = true
		}
		n := strconv.Itoa(col + 1)
		b.WriteString(`<col min="` + n + `" max="` + n + `" width="` +
			strconv.FormatFloat(w, 'f', -1, 64) + `" customWidth="1"/>`)
	}
	if started {
		b.WriteString(`</cols>`)
	}
}

func writeRow(b *bytes.Buffer, r int, row sheet.Row, ss *sharedStrings) {
	b.WriteString(`<row r="` + strconv.Itoa(r+1) + `">`)
	for c, v := range row {
		ref := CellRef(r, c)
		switch v.Kind() {
		case cell.KindInt:
			i, _ := v.AsInt()
			b.WriteString(`<c r="` + ref + `"><v>` + strconv.FormatInt(i, 10) + `</v></c>`)
		case cell.KindFloat:
			f, _ := v.AsFloat()
			if math.IsNaN(f) || math.IsInf(f, 0) {
				// not representable as xsd:double in a cell; keep the text
				idx := ss.add(v.String())
				b.WriteString(`<c r="` + ref + `" t="s"><v>` + strconv.Itoa(idx) + `</v></c>`)
				continue
			}
			b.WriteString(`<c r="` + ref + `"><v>` + formatNumber(f) + `</v></c>`)
		case cell.KindBool:
			val := "0"
			if t, _ := v.AsBool(); t {
				val = "1"
			}
			b.WriteString(`<c r="` + ref + `" t="b"><v>` + val + `</v></c>`)
		case cell.KindText:
			s, _ := v.AsText()
			idx := ss.add(clampText(s))
			b.WriteString(`<c r="` + ref + `" t="s"><v>` + strconv.Itoa(idx) + `</v></c>`)
		default:
			b.WriteString(`<c r="` + ref + `"/>`)
		}
	}
	b.WriteString(`</row>`)
}

// formatNumber renders f as an xsd:double lexical value.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
