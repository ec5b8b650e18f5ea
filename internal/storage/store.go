// Package storage keeps converted workbooks in a single output directory.
//
// Files are addressed by base name only. Writes go to a temporary file in the
// same directory and are renamed into place, so readers never see a partial
// workbook.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Extension is appended to names that do not already carry it.
const Extension = ".xlsx"

// DefaultDir is the output directory used when none is configured.
const DefaultDir = "resource/xlsx"

var (
	// ErrInvalidName is returned for empty, hidden or path-like names.
	ErrInvalidName = errors.New("invalid file name")

	// ErrNotFound is returned when no stored file has the given name.
	ErrNotFound = errors.New("file not found")
)

// FileInfo describes a stored file.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

// Store is a directory of output files. It is safe for concurrent use.
type Store struct {
	dir string

	// mu serialises Take so a file is handed out at most once.
	mu sync.Mutex
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// NormalizeName validates name and appends Extension when missing.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "", name == ".", name == "..":
		return "", ErrInvalidName
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.EqualFold(filepath.Ext(name), Extension) {
		name += Extension
	}
	return name, nil
}

func (s *Store) path(name string) (string, string, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return "", "", err
	}
	return n, filepath.Join(s.dir, n), nil
}

// Save writes data under name, replacing any existing file, and returns
// the normalized name.
func (s *Store) Save(name string, data []byte) (string, error) {
	n, p, err := s.path(name)
	if err != nil {
		return "", err
	}

	tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", n, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("store %s: %w", n, err)
	}
	return n, nil
}

// Read returns the contents of the named file.
func (s *Store) Read(name string) ([]byte, error) {
	n, p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", n, err)
	}
	return data, nil
}

// Delete removes the named file.
func (s *Store) Delete(name string) error {
	n, p, err := s.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", n, err)
	}
	return nil
}

// Take reads the named file and deletes it. Concurrent Takes of the same
// name return the data to exactly one caller.
func (s *Store) Take(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	if err := s.Delete(name); err != nil {
		return nil, err
	}
	return data, nil
}

// List returns the stored files sorted by name. Temporary and hidden files
// are skipped.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Purge deletes files last modified before olderThan and returns how many
// were removed. Stale temporary files are purged too.
func (s *Store) Purge(olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", s.dir, err)
	}

	var errs []error
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
