package core

// streaming.go prepares the raw input stream for line reading.
//
// The readers here wrap io.Reader so the input is never loaded twice:
//
//   - skipBOM drops a leading UTF-8 byte order mark (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader tracks bytes consumed for conversion statistics
//   - decodeInput transcodes legacy character sets to UTF-8
//
// Use decodeInput to apply them in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
// Read errors hit while peeking are reported by the first Read.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer replaces every byte that is not part of a valid UTF-8
// sequence with '?'. Multi-byte sequences split across reads are handled.
type UTF8Sanitizer struct {
	br       *bufio.Reader
	carry    []byte // encoded rune that did not fit the caller's buffer
	err      error  // deferred read error
	Replaced int64  // number of bytes replaced so far
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.carry) > 0 {
		n := copy(p, s.carry)
		s.carry = s.carry[n:]
		return n, nil
	}
	if s.err != nil {
		return 0, s.err
	}

	var rb [utf8.UTFMax]byte
	n := 0
	for n < len(p) {
		r, size, err := s.br.ReadRune()
		if err != nil {
			if n > 0 {
				s.err = err
				return n, nil
			}
			return 0, err
		}

		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			s.Replaced++
			continue
		}

		w := utf8.EncodeRune(rb[:], r)
		if n+w > len(p) {
			if n == 0 {
				c := copy(p, rb[:w])
				s.carry = append(s.carry[:0], rb[c:w]...)
				return c, nil
			}
			// keep the whole rune for the next call
			if err := s.br.UnreadRune(); err != nil {
				s.carry = append(s.carry[:0], rb[:w]...)
			}
			return n, nil
		}
		copy(p[n:], rb[:w])
		n += w
	}
	return n, nil
}

// CountingReader counts the bytes read through it.
type CountingReader struct {
	r io.Reader
	N int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.N += int64(n)
	return n, err
}

// decodeInput returns a UTF-8 view of r according to opts.Encoding.
//
// UTF-8 input has its BOM stripped and is optionally sanitized. Any other
// character set goes through the matching x/text decoder, which honours a
// UTF-16 BOM and substitutes U+FFFD for undecodable bytes.
func decodeInput(r io.Reader, opts Options) (io.Reader, error) {
	if isUTF8(opts.Encoding) {
		r = skipBOM(r)
		if opts.SanitizeUTF8 {
			r = NewUTF8Sanitizer(r)
		}
		return r, nil
	}

	enc, err := htmlindex.Get(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
