package notify

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriter(&buf)
	n.Notify("first", 0).Hide()
	n.Notify("second", time.Second)
	assert.Equal(t, "first\nsecond\n", buf.String())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	Log{Logger: logger}.Notify("Fetching page title...", 0)
	assert.Contains(t, buf.String(), `message="Fetching page title..."`)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	a := r.Notify("a", 0)
	r.Notify("b", 5*time.Second)
	a.Hide()

	assert.Equal(t, []string{"a", "b"}, r.Messages())
	notices := r.Notices()
	require.Len(t, notices, 2)
	assert.True(t, notices[0].Hidden())
	assert.False(t, notices[1].Hidden())
	assert.Equal(t, 5*time.Second, notices[1].Timeout)
}
