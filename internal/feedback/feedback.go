// Package feedback appends free-text user feedback to a flat log file
package feedback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmpty is returned for blank feedback
var ErrEmpty = errors.New("feedback text is empty")

// Entry is one recorded line
type Entry struct {
	ID   string
	Time time.Time
	Text string
}

// Log appends "<RFC3339 time>\t<id>\t<text>" lines to a file
type Log struct {
	path  string
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewLog creates a log writing to path
func NewLog(path string) *Log {
	return &Log{path: path, now: time.Now, newID: uuid.NewString}
}

// Path returns the log file location
func (l *Log) Path() string {
	return l.path
}

// Append records text as a single line. Line breaks and tabs inside text
// are folded to spaces so each entry stays on one line.
func (l *Log) Append(text string) (Entry, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Entry{}, ErrEmpty
	}

	entry := Entry{ID: l.newID(), Time: l.now().UTC(), Text: text}
	line := fmt.Sprintf("%s\t%s\t%s\n", entry.Time.Format(time.RFC3339), entry.ID, entry.Text)

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Entry{}, fmt.Errorf("create feedback dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Entry{}, fmt.Errorf("open feedback log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return Entry{}, fmt.Errorf("write feedback log: %w", err)
	}
	if err := f.Close(); err != nil {
		return Entry{}, fmt.Errorf("close feedback log: %w", err)
	}
	return entry, nil
}
