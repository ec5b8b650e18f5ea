package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/csv2xlsx/internal/cell"
	"github.com/JonMunkholm/csv2xlsx/internal/csvline"
	"github.com/JonMunkholm/csv2xlsx/internal/sheet"
	"github.com/JonMunkholm/csv2xlsx/internal/xlsx"
)

// rowsOf reads input with opts and returns the rows of the single sheet.
func rowsOf(t *testing.T, input string, opts Options) []sheet.Row {
	t.Helper()
	wb, err := ReadWorkbook(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ReadWorkbook() error = %v", err)
	}
	s, ok := wb.Sheet(sheet.DefaultSheetName)
	if !ok {
		t.Fatalf("sheet %q missing", sheet.DefaultSheetName)
	}
	return s.Rows()
}

func assertRows(t *testing.T, got []sheet.Row, want [][]cell.Value) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Errorf("row %d: got %d cells %v, want %d %v", i, len(got[i]), got[i], len(want[i]), want[i])
			continue
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %v (%s), want %v (%s)",
					i, j, got[i][j], got[i][j].Kind(), want[i][j], want[i][j].Kind())
			}
		}
	}
}

func TestReadWorkbook_EndToEnd(t *testing.T) {
	rows := rowsOf(t, "name,age\nAda,36\nBob,\"41\"\n", Options{Delimiter: ","})
	assertRows(t, rows, [][]cell.Value{
		{cell.Text("name"), cell.Text("age")},
		{cell.Text("Ada"), cell.Int(36)},
		{cell.Text("Bob"), cell.Int(41)},
	})
}

func TestReadWorkbook_OneRowPerLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]cell.Value
	}{
		{
			name:  "three lines keep order",
			input: "1,a\n2,b\n3,c",
			want: [][]cell.Value{
				{cell.Int(1), cell.Text("a")},
				{cell.Int(2), cell.Text("b")},
				{cell.Int(3), cell.Text("c")},
			},
		},
		{
			name:  "blank line is a single empty cell",
			input: "a\n\nb\n",
			want: [][]cell.Value{
				{cell.Text("a")},
				{cell.Empty()},
				{cell.Text("b")},
			},
		},
		{
			name:  "trailing delimiter keeps empty cell",
			input: "a,b,",
			want: [][]cell.Value{
				{cell.Text("a"), cell.Text("b"), cell.Empty()},
			},
		},
		{
			name:  "CRLF and lone CR",
			input: "1\r\n2\r3",
			want: [][]cell.Value{
				{cell.Int(1)},
				{cell.Int(2)},
				{cell.Int(3)},
			},
		},
		{
			name:  "fields are trimmed",
			input: "  7 , x ,  true  ",
			want: [][]cell.Value{
				{cell.Int(7), cell.Text("x"), cell.Bool(true)},
			},
		},
		{
			name:  "ragged rows",
			input: "a\nb,c,d\n",
			want: [][]cell.Value{
				{cell.Text("a")},
				{cell.Text("b"), cell.Text("c"), cell.Text("d")},
			},
		},
		{
			name:  "quoted delimiter",
			input: `"a,b",3.5`,
			want: [][]cell.Value{
				{cell.Text("a,b"), cell.Float(3.5)},
			},
		},
		{
			name:  "leading zeros are lost",
			input: "007,1.50",
			want: [][]cell.Value{
				{cell.Int(7), cell.Float(1.5)},
			},
		},
		{
			name:  "empty input",
			input: "",
			want:  [][]cell.Value{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, rowsOf(t, tt.input, Options{}), tt.want)
		})
	}
}

func TestReadWorkbook_Delimiters(t *testing.T) {
	for _, delim := range []string{",", ";", "\t", "|", "||", "<>"} {
		t.Run(fmt.Sprintf("%q", delim), func(t *testing.T) {
			input := strings.Join([]string{"1", "x", "", "2.5"}, delim)
			rows := rowsOf(t, input, Options{Delimiter: delim})
			assertRows(t, rows, [][]cell.Value{
				{cell.Int(1), cell.Text("x"), cell.Empty(), cell.Float(2.5)},
			})
		})
	}
}

func TestReadWorkbook_Encodings(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		opts  Options
		want  [][]cell.Value
	}{
		{
			name:  "utf-8 BOM does not leak into first cell",
			input: []byte("\xEF\xBB\xBF42,x"),
			want:  [][]cell.Value{{cell.Int(42), cell.Text("x")}},
		},
		{
			name:  "windows-1252",
			input: []byte("caf\xE9,\x80 5"),
			opts:  Options{Encoding: "windows-1252"},
			want:  [][]cell.Value{{cell.Text("café"), cell.Text("€ 5")}},
		},
		{
			name:  "sanitized invalid bytes",
			input: []byte("a\xFFb,1"),
			opts:  Options{SanitizeUTF8: true},
			want:  [][]cell.Value{{cell.Text("a?b"), cell.Int(1)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, rowsOf(t, string(tt.input), tt.opts), tt.want)
		})
	}
}

func TestReadWorkbook_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     Options
		wantErr  error
		wantLine int
	}{
		{
			name:     "invalid utf-8 is a read error",
			input:    "ok\nbad\xFF\n",
			wantErr:  ErrInvalidUTF8,
			wantLine: 2,
		},
		{
			name:     "line too long",
			input:    "short\n" + strings.Repeat("x", 200) + "\n",
			opts:     Options{MaxLineBytes: 64},
			wantErr:  ErrLineTooLong,
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWorkbook(strings.NewReader(tt.input), tt.opts)
			var re *ReadError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want *ReadError", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if re.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", re.Line, tt.wantLine)
			}
		})
	}
}

func TestReadWorkbook_LongLineUnlimitedByDefault(t *testing.T) {
	long := strings.Repeat("x", 2<<20)
	wb, err := ReadWorkbook(strings.NewReader("head\n"+long+"\n"), Options{})
	if err != nil {
		t.Fatalf("ReadWorkbook() error = %v", err)
	}
	s, _ := wb.Sheet(sheet.DefaultSheetName)
	row, ok := s.Row(1)
	if !ok || len(row) != 1 {
		t.Fatalf("row 2 = %v", row)
	}
	if got, _ := row[0].AsText(); len(got) != len(long) {
		t.Errorf("field length = %d, want %d", len(got), len(long))
	}
}

func TestReadWorkbook_UnreadableInput(t *testing.T) {
	_, err := ReadWorkbook(iotest.ErrReader(errors.New("disk gone")), Options{})
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *ReadError", err)
	}
	if !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("error %q does not carry the cause", err)
	}
}

func TestReadWorkbook_InvalidOptions(t *testing.T) {
	if _, err := ReadWorkbook(strings.NewReader("a"), Options{Encoding: "klingon"}); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("error = %v, want ErrUnsupportedEncoding", err)
	}
	if _, err := ReadWorkbook(strings.NewReader("a"), Options{Engine: "poi"}); !errors.Is(err, xlsx.ErrUnknownEngine) {
		t.Errorf("error = %v, want ErrUnknownEngine", err)
	}
}

func TestConvert_OpensAsSpreadsheet(t *testing.T) {
	for _, engine := range []string{xlsx.EngineNative, xlsx.EngineExcelize} {
		t.Run(engine, func(t *testing.T) {
			data, err := Convert(strings.NewReader("name,age\nAda,36\nBob,\"41\"\n"), Options{Engine: engine})
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}

			f, err := excelize.OpenReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("OpenReader() error = %v", err)
			}
			defer f.Close()

			if got := f.GetSheetList(); len(got) != 1 || got[0] != sheet.DefaultSheetName {
				t.Fatalf("sheets = %v, want [%s]", got, sheet.DefaultSheetName)
			}
			rows, err := f.GetRows(sheet.DefaultSheetName)
			if err != nil {
				t.Fatal(err)
			}
			want := [][]string{{"name", "age"}, {"Ada", "36"}, {"Bob", "41"}}
			if fmt.Sprint(rows) != fmt.Sprint(want) {
				t.Errorf("rows = %v, want %v", rows, want)
			}

			typ, err := f.GetCellType(sheet.DefaultSheetName, "B2")
			if err != nil {
				t.Fatal(err)
			}
			if typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
				t.Errorf("B2 stored as string (%v), want number", typ)
			}
		})
	}
}

func TestConvert_EmptyInput(t *testing.T) {
	data, err := Convert(strings.NewReader(""), Options{})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet.DefaultSheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(*sheet.Workbook) ([]byte, error) {
	return nil, &xlsx.EncodingError{Part: "xl/workbook.xml", Err: errors.New("disk full")}
}

func TestConvert_PropagatesEncodingError(t *testing.T) {
	data, err := Convert(strings.NewReader("a"), Options{Encoder: failingEncoder{}})
	if data != nil {
		t.Error("partial output returned")
	}
	var ee *xlsx.EncodingError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *xlsx.EncodingError", err)
	}
}

func TestConvert_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := fmt.Sprintf("id,n\n%d,%d\n", i, i*i)
			wb, err := ReadWorkbook(strings.NewReader(input), Options{})
			if err != nil {
				errs <- err
				return
			}
			s, _ := wb.Sheet(sheet.DefaultSheetName)
			row, _ := s.Row(1)
			if row[1] != cell.Int(int64(i*i)) {
				errs <- fmt.Errorf("goroutine %d got %v", i, row[1])
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.xlsx")
	if err := os.WriteFile(in, []byte("a;1\nb;2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := ConvertFile(in, out, Options{Delimiter: ";"})
	if err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	if _, err := excelize.OpenFile(out); err != nil {
		t.Errorf("output does not open: %v", err)
	}

	if _, err := ConvertFile(filepath.Join(dir, "missing.csv"), out, Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing input error = %v, want ErrNotExist", err)
	}
}

func TestOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := Options{}.withDefaults()
		if o.Delimiter != csvline.DefaultDelimiter || o.Encoding != DefaultEncoding ||
			o.AutoFitRows != 1 || o.Engine != xlsx.EngineNative || o.MaxLineBytes != 0 {
			t.Errorf("withDefaults() = %+v", o)
		}
	})

	t.Run("merge keeps request values", func(t *testing.T) {
		base := Options{Delimiter: ";", Encoding: "windows-1252", AutoFitRows: 10, Engine: xlsx.EngineExcelize}
		got := Options{Delimiter: "|"}.Merge(base)
		if got.Delimiter != "|" || got.Encoding != "windows-1252" || got.AutoFitRows != 10 || got.Engine != xlsx.EngineExcelize {
			t.Errorf("Merge() = %+v", got)
		}
	})

	t.Run("engine name", func(t *testing.T) {
		tests := []struct {
			opts Options
			want string
		}{
			{Options{}, xlsx.EngineNative},
			{Options{Engine: "Excelize"}, xlsx.EngineExcelize},
			{Options{Encoder: &xlsx.ExcelizeEncoder{}}, xlsx.EngineExcelize},
			{Options{Encoder: &xlsx.NativeEncoder{}}, xlsx.EngineNative},
		}
		for _, tt := range tests {
			if got := tt.opts.EngineName(); got != tt.want {
				t.Errorf("EngineName(%+v) = %q, want %q", tt.opts, got, tt.want)
			}
		}
	})
}
