package replace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpaste/editor"
)

type change struct {
	text     string
	from, to int
	origin   string
}

// recordingEditor wraps a buffer and remembers every replacement.
type recordingEditor struct {
	*editor.Buffer
	changes []change
	fail    error
}

func (r *recordingEditor) ReplaceRange(text string, from, to int, origin string) error {
	if r.fail != nil {
		return r.fail
	}
	r.changes = append(r.changes, change{text, from, to, origin})
	return r.Buffer.ReplaceRange(text, from, to, origin)
}

// fixed returns a Producer that always yields s.
func fixed(s string) Producer {
	return func(context.Context) (string, bool) { return s, true }
}

func TestApplyBroadcastsToEverySelection(t *testing.T) {
	buf := editor.New("one two three")
	buf.SetSelections(editor.Range{Anchor: 0, Head: 3}, editor.Range{Anchor: 13, Head: 8})
	ed := &recordingEditor{Buffer: buf}

	applied, err := Apply(context.Background(), ed, Capture(ed), fixed("X"))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "X two X", buf.Text())

	// Last range first, both tagged as paste.
	assert.Equal(t, []change{
		{"X", 8, 13, OriginPaste},
		{"X", 0, 3, OriginPaste},
	}, ed.changes)
}

func TestApplyNoValueLeavesDocument(t *testing.T) {
	buf := editor.New("untouched")
	buf.SetSelections(editor.Cursor(0), editor.Cursor(4))

	none := func(context.Context) (string, bool) { return "", false }
	applied, err := Apply(context.Background(), buf, Capture(buf), none)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "untouched", buf.Text())
}

func TestApplyEmptySnapshot(t *testing.T) {
	buf := editor.New("abc")
	applied, err := Apply(context.Background(), buf, nil, fixed("X"))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "abc", buf.Text())
}

func TestApplyPropagatesEditorError(t *testing.T) {
	boom := errors.New("read-only")
	ed := &recordingEditor{Buffer: editor.New("abc"), fail: boom}

	_, err := Apply(context.Background(), ed, Snapshot{{0, 1}}, fixed("X"))
	assert.ErrorIs(t, err, boom)
}

func TestCaptureNormalizes(t *testing.T) {
	buf := editor.New("abcdef")
	buf.SetSelections(editor.Range{Anchor: 5, Head: 2}, editor.Cursor(1))
	assert.Equal(t, Snapshot{{2, 5}, {1, 1}}, Capture(buf))
}

func TestAsyncUsesSelectionsFromCallTime(t *testing.T) {
	buf := editor.New("link: ")
	release := make(chan string)

	op := Async(context.Background(), buf, func(ctx context.Context) (string, bool) {
		return <-release, true
	}, nil)

	// The user keeps typing at the start while the text is pending, and
	// moves the cursor away.
	require.NoError(t, buf.ReplaceRange(">> ", 0, 0, "input.type"))
	buf.SetSelections(editor.Cursor(0))

	release <- "[Go](https://go.dev)"
	applied, err := op.Wait()
	require.NoError(t, err)
	assert.True(t, applied)

	// The captured offset (6) is used even though the document has grown.
	assert.Equal(t, ">> lin[Go](https://go.dev)k: ", buf.Text())
}

func TestAsyncDone(t *testing.T) {
	buf := editor.New("")
	op := Async(context.Background(), buf, fixed("hi"), nil)
	<-op.Done()

	applied, err := op.Wait()
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "hi", buf.Text())
}

func TestAsyncCallbackRunsAfterWrite(t *testing.T) {
	buf := editor.New("")
	var seen string
	var thenApplied bool
	var thenErr error
	op := Async(context.Background(), buf, fixed("hi"), func(applied bool, err error) {
		thenApplied, thenErr = applied, err
		seen = buf.Text()
	})

	applied, err := op.Wait()
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, thenApplied)
	assert.NoError(t, thenErr)
	assert.Equal(t, "hi", seen)
}

func TestAsyncCallbackReportsFailure(t *testing.T) {
	ed := &recordingEditor{Buffer: editor.New(""), fail: errors.New("read-only")}
	var thenErr error
	op := Async(context.Background(), ed, fixed("x"), func(_ bool, err error) {
		thenErr = err
	})

	_, err := op.Wait()
	require.Error(t, err)
	assert.Equal(t, err, thenErr)
	assert.Empty(t, ed.Text())
}
