package xlsx

// autofit.go estimates column widths from rendered cell text.
//
// Widths are measured in character cells rather than font metrics: most
// runes count as one cell, East Asian wide and fullwidth runes count as two.
// Only the columns present in the first row are sized. Columns whose sampled
// values are all empty keep the default width (reported as 0).

import (
	"math"

	"golang.org/x/text/width"

	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
)

const (
	// widthPadding is added to the widest value so text does not touch the
	// cell border.
	widthPadding = 1.71

	// MaxColumnWidth is the largest width the format accepts.
	MaxColumnWidth = 255.0
)

// ColumnWidths returns one width per column of the first row of s, computed
// from the first sampleRows rows (at least one). An empty sheet yields nil.
func ColumnWidths(s *sheet.Sheet, sampleRows int) []float64 {
	first, ok := s.FirstRow()
	if !ok || len(first) == 0 {
		return nil
	}

	if sampleRows < 1 {
		sampleRows = 1
	}
	rows := s.Rows()
	if sampleRows < len(rows) {
		rows = rows[:sampleRows]
	}

	widest := make([]int, len(first))
	for _, row := range rows {
		for col := 0; col < len(widest) && col < len(row); col++ {
			if w := TextWidth(row[col].String()); w > widest[col] {
				widest[col] = w
			}
		}
	}

	widths := make([]float64, len(widest))
	for col, w := range widest {
		if w == 0 {
			continue
		}
		widths[col] = math.Min(MaxColumnWidth, math.Round((float64(w)+widthPadding)*100)/100)
	}
	return widths
}

// TextWidth returns the display width of s in character cells.
func TextWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
