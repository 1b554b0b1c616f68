package document

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextLoader reads UTF-8 text as is, normalizing line endings
type TextLoader struct{}

// Load returns the file contents
func (TextLoader) Load(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
