package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// DocxLoader reads the paragraphs of an Office Open XML document
type DocxLoader struct{}

// Load returns one line per non-empty paragraph
func (DocxLoader) Load(ctx context.Context, path string) (string, error) {
	empty, err := isEmptyFile(path)
	if err != nil || empty {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s in %s: %w", docxBody, path, err)
		}
		defer func() { _ = rc.Close() }()
		paragraphs, err := docxParagraphs(ctx, rc)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		return joinNonEmpty(paragraphs), nil
	}
	return "", fmt.Errorf("%s has no %s", path, docxBody)
}

// docxParagraphs streams the body XML collecting w:t runs per w:p.
// w:tab and w:br become whitespace.
func docxParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs, nil
}
