package feedback

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "feedback.log")
	l := NewLog(path)
	l.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CST", 8*3600)) }
	ids := []string{"id-1", "id-2"}
	l.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	_, err := l.Append("Marker [3] was\nmisread")
	require.NoError(t, err)
	entry, err := l.Append("  great tool\t ")
	require.NoError(t, err)
	assert.Equal(t, "id-2", entry.ID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2026-03-03T21:06:07Z\tid-1\tMarker [3] was misread\n"+
			"2026-03-03T21:06:07Z\tid-2\tgreat tool\n",
		string(data))
}

func TestLog_RejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.log")

	_, err := NewLog(path).Append(" \n\t ")

	assert.ErrorIs(t, err, ErrEmpty)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing written")
}

func TestLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.log")
	l := NewLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Append("concurrent entry")
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Len(t, strings.Split(line, "\t"), 3)
	}
}
