package document

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFLoader extracts page text, one page per line group
type PDFLoader struct{}

// Load returns the plain text of every page joined by newlines
func (PDFLoader) Load(ctx context.Context, path string) (text string, err error) {
	empty, err := isEmptyFile(path)
	if err != nil || empty {
		return "", err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// The parser panics on some malformed streams
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("parse pdf %s: %v", path, rec)
		}
	}()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d of %s: %w", i, path, err)
		}
		pages = append(pages, content)
	}
	return joinNonEmpty(pages), nil
}
