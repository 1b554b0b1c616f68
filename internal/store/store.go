// Package store keeps downloaded reference documents on disk, one file per
// reference named by its 1-based index
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/citecheck/internal/document"
)

var (
	// ErrMissing is returned when a reference has no stored document
	ErrMissing = errors.New("reference document not in store")

	// ErrTooLarge is returned by Save when the body exceeds the size cap
	ErrTooLarge = errors.New("reference document exceeds size limit")
)

const ext = ".pdf"

var stored = regexp.MustCompile(`^([1-9][0-9]*)\.pdf$`)

// Store is a directory of {index}.pdf files
type Store struct {
	dir    string
	loader document.Loader
}

// New opens the store rooted at dir. A nil loader reads PDFs.
func New(dir string, loader document.Loader) *Store {
	if loader == nil {
		loader = document.PDFLoader{}
	}
	return &Store{dir: dir, loader: loader}
}

// Dir returns the store root
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the document for index lives
func (s *Store) Path(index int) string {
	return filepath.Join(s.dir, strconv.Itoa(index)+ext)
}

// Exists reports whether a non-empty document is stored for index
func (s *Store) Exists(index int) bool {
	info, err := os.Stat(s.Path(index))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Missing returns the indices without a stored document, in input order
func (s *Store) Missing(indices []int) []int {
	var out []int
	for _, i := range indices {
		if !s.Exists(i) {
			out = append(out, i)
		}
	}
	return out
}

// Text loads the plain text of one stored document
func (s *Store) Text(ctx context.Context, index int) (string, error) {
	if !s.Exists(index) {
		return "", fmt.Errorf("%w: %d", ErrMissing, index)
	}
	text, err := s.loader.Load(ctx, s.Path(index))
	if err != nil {
		return "", fmt.Errorf("load reference %d: %w", index, err)
	}
	return text, nil
}

// Load concatenates the text of the documents for indices, separated by
// blank lines. Any missing document fails the whole load.
func (s *Store) Load(ctx context.Context, indices []int) (string, error) {
	if missing := s.Missing(indices); len(missing) > 0 {
		return "", fmt.Errorf("%w: %v", ErrMissing, missing)
	}
	parts := make([]string, 0, len(indices))
	for _, i := range indices {
		text, err := s.Text(ctx, i)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Indices lists the stored reference indices in ascending order
func (s *Store) Indices() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", s.dir, err)
	}

	var out []int
	for _, e := range entries {
		m := stored.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// Save writes r as the document for index through a temporary file. A
// maxBytes of zero means no limit. It returns the final path.
func (s *Store) Save(index int, r io.Reader, maxBytes int64) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write reference %d: %w", index, err)
	}
	if maxBytes > 0 && n > maxBytes {
		cleanup()
		return "", fmt.Errorf("%w: reference %d over %d bytes", ErrTooLarge, index, maxBytes)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close reference %d: %w", index, err)
	}

	path := s.Path(index)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename reference %d: %w", index, err)
	}
	return path, nil
}
