package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// Checker checks one document
type Checker interface {
	Check(ctx context.Context, path string) (*model.Report, error)
}

// CheckJob represents a document check job
type CheckJob struct {
	Path    string
	Checker Checker
	order   int
}

// Execute runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	report, err := j.Checker.Check(ctx, j.Path)
	return &CheckResult{
		Path:   j.Path,
		Report: report,
		Error:  err,
		order:  j.order,
	}
}

// CheckResult represents the result of a check job
type CheckResult struct {
	Path   string
	Report *model.Report
	Error  error
	order  int
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks multiple documents concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessPaths checks documents concurrently. Results come back in input
// order; documents not started because ctx ended carry ctx's error.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*CheckResult {
	if len(paths) == 0 {
		return []*CheckResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		pool.Submit(&CheckJob{
			Path:    path,
			Checker: b.checker,
			order:   i,
		})
	}

	results := make([]*CheckResult, len(paths))
	for _, result := range pool.Wait() {
		r := result.(*CheckResult)
		results[r.order] = r
	}
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &CheckResult{Path: paths[i], Error: fmt.Errorf("not checked: %w", err), order: i}
		}
	}

	return results
}

// ProcessFile reads document paths from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	paths, err := ReadPathsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
