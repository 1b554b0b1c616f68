package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/citecheck/internal/model"
)

// MockChecker is a mock implementation of the Checker interface
type MockChecker struct {
	mu      sync.Mutex
	checked []string
}

func (m *MockChecker) Check(ctx context.Context, path string) (*model.Report, error) {
	m.mu.Lock()
	m.checked = append(m.checked, path)
	m.mu.Unlock()

	if strings.Contains(path, "broken") {
		return nil, errors.New("unsupported document format")
	}
	return &model.Report{Document: path}, nil
}

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papers.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	checker := &MockChecker{}
	processor := NewBatchProcessor(checker, 2)

	paths := []string{"a.pdf", "b.docx", "c.pdf"}
	results := processor.ProcessPaths(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}

	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d: expected path %s, got %s", i, paths[i], r.Path)
		}
		if r.Error != nil {
			t.Errorf("unexpected error for %s: %v", r.Path, r.Error)
		}
		if r.Report == nil || r.Report.Document != paths[i] {
			t.Errorf("result %d: missing or wrong report", i)
		}
	}
}

func TestBatchProcessor_ProcessPaths_Error(t *testing.T) {
	checker := &MockChecker{}
	processor := NewBatchProcessor(checker, 1)

	results := processor.ProcessPaths(context.Background(), []string{"broken.odt"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].GetError() == nil {
		t.Error("expected error for broken document, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessPaths_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockChecker{}, 2)

	results := processor.ProcessPaths(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("expected 0 results for empty input, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessPaths_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewBatchProcessor(&MockChecker{}, 2).ProcessPaths(ctx, []string{"a.pdf", "b.pdf"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r == nil {
			t.Fatal("expected a result for every path")
		}
	}
}

func TestReadPathsFromFile(t *testing.T) {
	path := writeList(t, "papers/a.pdf\n  papers/b.docx  \n# skipped\n\npapers/a.pdf\n")

	paths, err := ReadPathsFromFile(path)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{"papers/a.pdf", "papers/b.docx"}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i, p := range expected {
		if paths[i] != p {
			t.Errorf("path %d: expected %s, got %s", i, p, paths[i])
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPathsFromFile("no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestCheckResult_GetError(t *testing.T) {
	expected := errors.New("test error")
	r := &CheckResult{Error: expected}
	if r.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r.GetError())
	}
	if (&CheckResult{}).GetError() != nil {
		t.Error("expected nil error")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	checker := &MockChecker{}
	processor := NewBatchProcessor(checker, 2)

	results, err := processor.ProcessFile(context.Background(), writeList(t, "a.pdf\nb.pdf\n# comment\n\nc.html\n"))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
	if len(checker.checked) != 3 {
		t.Errorf("expected 3 checks, got %d", len(checker.checked))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockChecker{}, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockChecker{}, 2)

	results, err := processor.ProcessFile(context.Background(), writeList(t, ""))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results for empty file, got %d", len(results))
	}
}
