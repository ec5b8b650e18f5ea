package xlsx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"time"
)

// ArchiveWriter collects package parts and produces the final archive.
// Finish may be called once; entries cannot be added afterwards.
type ArchiveWriter interface {
	AddEntry(path string, data []byte) error
	Finish() ([]byte, error)
}

// ErrArchiveFinished is returned when writing to a finished archive.
var ErrArchiveFinished = errors.New("archive already finished")

// zipArchive is an in-memory deflate-compressed zip archive.
type zipArchive struct {
	buf      bytes.Buffer
	zw       *zip.Writer
	modified time.Time
	finished bool
}

// NewZipArchive returns an ArchiveWriter that deflates entries into memory.
func NewZipArchive() ArchiveWriter {
	a := &zipArchive{modified: time.Now()}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

func (a *zipArchive) AddEntry(path string, data []byte) error {
	if a.finished {
		return ErrArchiveFinished
	}
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     path,
		Method:   zip.Deflate,
		Modified: a.modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", path, err)
	}
	return nil
}

func (a *zipArchive) Finish() ([]byte, error) {
	if a.finished {
		return nil, ErrArchiveFinished
	}
	a.finished = true
	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return a.buf.Bytes(), nil
}
