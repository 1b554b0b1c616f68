// Package document turns source files into plain text
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for file extensions without a loader
var ErrUnsupported = errors.New("unsupported document format")

// Loader reads one document format. An empty file yields "" and no error.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, path string) (string, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Registry dispatches on file extension
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry returns a registry with the pdf, docx, html and plain text loaders
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(PDFLoader{}, ".pdf")
	r.Register(DocxLoader{}, ".docx")
	r.Register(HTMLLoader{}, ".html", ".htm")
	r.Register(TextLoader{}, ".txt", ".md", ".text")
	return r
}

// Register binds l to the given extensions, replacing earlier bindings
func (r *Registry) Register(l Loader, exts ...string) {
	for _, ext := range exts {
		r.loaders[strings.ToLower(ext)] = l
	}
}

// Extensions lists the registered extensions in sorted order
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether path has a registered extension
func (r *Registry) Supports(path string) bool {
	_, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load reads path with the loader registered for its extension
func (r *Registry) Load(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := r.loaders[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupported, ext, strings.Join(r.Extensions(), ", "))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.Load(ctx, path)
}

// isEmptyFile stats path; a zero-length file is a valid empty document
func isEmptyFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return info.Size() == 0, nil
}

// joinNonEmpty joins trimmed non-empty parts with newlines
func joinNonEmpty(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
