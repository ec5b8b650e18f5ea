package core

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/JonMunkholm/csv2xlsx/internal/csvline"
	"github.com/JonMunkholm/csv2xlsx/internal/xlsx"
)

// DefaultEncoding is the input character set assumed when none is given.
const DefaultEncoding = "utf-8"


// ErrUnsupportedEncoding is returned for a character set name that cannot
// be resolved.
var ErrUnsupportedEncoding = errors.New("unsupported input encoding")

// Options control one conversion. The zero value is usable: comma
// delimiter, strict UTF-8 input, first-row auto-fit, native encoder.
type Options struct {
	// Delimiter separates fields; may be longer than one character.
	Delimiter string

	// Encoding names the input character set using WHATWG labels
	// ("utf-8", "windows-1252", "iso-8859-1", "utf-16le", "shift_jis", ...).
	Encoding string

	// SanitizeUTF8 replaces invalid UTF-8 bytes with '?' instead of failing
	// the conversion with a ReadError. Only applies to UTF-8 input.
	SanitizeUTF8 bool

	// MaxLineBytes is the longest accepted input line. Zero means no
	// limit beyond available memory.
	MaxLineBytes int

	// AutoFitRows is the number of leading rows sampled for column widths.
	AutoFitRows int

	// Engine names the encoder used when Encoder is nil
	// (xlsx.EngineNative or xlsx.EngineExcelize).
	Engine string

	// Encoder overrides the spreadsheet encoder.
	Encoder xlsx.Encoder
}

// DefaultOptions returns the options used when a caller supplies nothing.
func DefaultOptions() Options {
	return Options{
		Delimiter:    csvline.DefaultDelimiter,
		Encoding:     DefaultEncoding,
		AutoFitRows:  1,
		Engine:       xlsx.EngineNative,
	}
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Delimiter == "" {
		o.Delimiter = d.Delimiter
	}
	if strings.TrimSpace(o.Encoding) == "" {
		o.Encoding = d.Encoding
	}
	if o.AutoFitRows < 1 {
		o.AutoFitRows = d.AutoFitRows
	}
	if strings.TrimSpace(o.Engine) == "" {
		o.Engine = d.Engine
	}
	return o
}

// Validate reports option values that can never succeed.
func (o Options) Validate() error {
	o = o.withDefaults()
	if err := csvline.ValidateDelimiter(o.Delimiter); err != nil {
		return err
	}
	if !isUTF8(o.Encoding) {
		if _, err := htmlindex.Get(o.Encoding); err != nil {
			return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, o.Encoding)
		}
	}
	if o.Encoder == nil {
		if _, err := o.encoder(); err != nil {
			return err
		}
	}
	return nil
}

// Merge returns o with every unset field taken from base.
func (o Options) Merge(base Options) Options {
	if o.Delimiter == "" {
		o.Delimiter = base.Delimiter
	}
	if strings.TrimSpace(o.Encoding) == "" {
		o.Encoding = base.Encoding
	}
	if !o.SanitizeUTF8 {
		o.SanitizeUTF8 = base.SanitizeUTF8
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = base.MaxLineBytes
	}
	if o.AutoFitRows < 1 {
		o.AutoFitRows = base.AutoFitRows
	}
	if strings.TrimSpace(o.Engine) == "" {
		o.Engine = base.Engine
	}
	if o.Encoder == nil {
		o.Encoder = base.Encoder
	}
	return o
}

// EngineName reports which encoder a conversion with o would use.
func (o Options) EngineName() string {
	switch e := o.Encoder.(type) {
	case nil:
		return strings.ToLower(strings.TrimSpace(o.withDefaults().Engine))
	case *xlsx.NativeEncoder:
		return xlsx.EngineNative
	case *xlsx.ExcelizeEncoder:
		return xlsx.EngineExcelize
	default:
		return fmt.Sprintf("%T", e)
	}
}

// encoder returns the configured encoder or builds one from Engine.
func (o Options) encoder() (xlsx.Encoder, error) {
	if o.Encoder != nil {
		return o.Encoder, nil
	}
	return xlsx.NewEncoder(o.Engine, xlsx.Options{AutoFitRows: o.AutoFitRows})
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	}
	return false
}
