package paste

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpaste/classify"
	"linkpaste/config"
	"linkpaste/editor"
	"linkpaste/notify"
	"linkpaste/vault"
)

const highlightLink = "https://example.com/page#:~:text=hello%20world"

type stubTitles struct {
	mu    sync.Mutex
	title string
	err   error
	calls []string
}

func (s *stubTitles) FetchTitle(_ context.Context, pageURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, pageURL)
	return s.title, s.err
}

func settingsWith(mut func(*config.Settings)) *config.Settings {
	s := config.Default()
	if mut != nil {
		mut(s)
	}
	return s
}

func useFormat(tmpl string, requireFetch bool) func(*config.Settings) {
	return func(s *config.Settings) {
		s.Formats = []config.Format{{Name: "Test", Template: tmpl, RequireFetch: requireFetch}}
		s.FormatIndex = 0
	}
}

func mustWait(t *testing.T, op interface{ Wait() (bool, error) }) bool {
	t.Helper()
	applied, err := op.Wait()
	require.NoError(t, err)
	return applied
}

func TestHandlePasteHighlight(t *testing.T) {
	titles := &stubTitles{title: "Example Domain"}
	rec := &notify.Recorder{}
	h := NewHandler(settingsWith(nil), titles, WithNotifier(rec))

	buf := editor.New("")
	evt := NewEvent(highlightLink)
	op := h.HandlePaste(context.Background(), evt, buf)
	require.NotNil(t, op)
	assert.True(t, evt.DefaultPrevented())
	assert.True(t, mustWait(t, op))

	assert.Equal(t, "> [Example Domain]("+highlightLink+")\n> hello world\n", buf.Text())
	assert.Equal(t, []string{"https://example.com/page"}, titles.calls)

	notices := rec.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "linkpaste: Fetching page title...", notices[0].Message)
	assert.Zero(t, notices[0].Timeout)
	assert.True(t, notices[0].Hidden())
}

func TestHandlePasteVariables(t *testing.T) {
	h := NewHandler(settingsWith(useFormat("{{pageUrl}}|{{highlightUrl}}|{{url}}|{{text}}", false)), &stubTitles{})

	buf := editor.New("")
	op := h.HandlePaste(context.Background(), NewEvent(highlightLink+"\ntrailing"), buf)
	require.NotNil(t, op)
	mustWait(t, op)

	assert.Equal(t, "https://example.com/page|"+highlightLink+"|"+highlightLink+"|hello world", buf.Text())
}

func TestHandlePasteSkipsFetchWhenNotRequired(t *testing.T) {
	titles := &stubTitles{title: "unused"}
	rec := &notify.Recorder{}
	h := NewHandler(settingsWith(useFormat("{{text}}", false)), titles, WithNotifier(rec))

	buf := editor.New("")
	mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), buf))

	assert.Equal(t, "hello world", buf.Text())
	assert.Empty(t, titles.calls)
	assert.Empty(t, rec.Messages())
}

func TestHandlePasteTitleUnboundWithoutFetch(t *testing.T) {
	rec := &notify.Recorder{}
	h := NewHandler(settingsWith(useFormat("{{title}}", false)), &stubTitles{}, WithNotifier(rec))

	buf := editor.New("keep")
	applied := mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), buf))

	assert.False(t, applied)
	assert.Equal(t, "keep", buf.Text())
	require.Len(t, rec.Messages(), 1)
	assert.Contains(t, rec.Messages()[0], "linkpaste: Paste format is invalid. Error: expression 'title'")
}

func TestHandlePastePlainURL(t *testing.T) {
	titles := &stubTitles{title: "Go"}
	h := NewHandler(settingsWith(func(s *config.Settings) {
		s.HandleHighlightURLOnly = false
		s.NoticeWhileFetching = false
	}), titles)

	buf := editor.New("see ")
	evt := NewEvent("https://go.dev/doc#install")
	op := h.HandlePaste(context.Background(), evt, buf)
	require.NotNil(t, op)
	assert.True(t, evt.DefaultPrevented())
	mustWait(t, op)

	assert.Equal(t, "see [Go](https://go.dev/doc)", buf.Text())
}

func TestHandlePastePlainURLIgnoredByDefault(t *testing.T) {
	titles := &stubTitles{title: "Go"}
	h := NewHandler(settingsWith(nil), titles)

	evt := NewEvent("https://go.dev")
	assert.Nil(t, h.HandlePaste(context.Background(), evt, editor.New("")))
	assert.False(t, evt.DefaultPrevented())
	assert.Empty(t, titles.calls)
}

func TestHandlePasteIgnores(t *testing.T) {
	h := NewHandler(settingsWith(nil), &stubTitles{})

	prevented := NewEvent(highlightLink)
	prevented.PreventDefault()

	tests := []struct {
		name string
		evt  *Event
	}{
		{"nil event", nil},
		{"already prevented", prevented},
		{"no text", &Event{Data: map[string]string{"text/html": "<b>x</b>"}}},
		{"empty text", NewEvent("")},
		{"not a url", NewEvent("just some words")},
		{"http url", NewEvent("http://example.com/#:~:text=x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := editor.New("doc")
			assert.Nil(t, h.HandlePaste(context.Background(), tt.evt, buf))
			assert.Equal(t, "doc", buf.Text())
		})
	}
}

func TestHandlePasteFetchFailure(t *testing.T) {
	titles := &stubTitles{err: errors.New("fetching https://example.com/page: HTTP 503")}
	rec := &notify.Recorder{}
	h := NewHandler(settingsWith(nil), titles, WithNotifier(rec))

	buf := editor.New("doc")
	evt := NewEvent(highlightLink)
	applied := mustWait(t, h.HandlePaste(context.Background(), evt, buf))

	assert.False(t, applied)
	assert.True(t, evt.DefaultPrevented())
	assert.Equal(t, "doc", buf.Text())

	notices := rec.Notices()
	require.Len(t, notices, 2)
	assert.Equal(t, "linkpaste: Fetching page title...", notices[0].Message)
	assert.True(t, notices[0].Hidden())
	assert.Equal(t, "linkpaste: Failed to fetch page title. Error: fetching https://example.com/page: HTTP 503", notices[1].Message)
}

func TestHandlePasteInvalidTemplate(t *testing.T) {
	rec := &notify.Recorder{}
	h := NewHandler(settingsWith(useFormat("{{ missing }}", false)), &stubTitles{}, WithNotifier(rec))

	buf := editor.New("doc")
	applied := mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), buf))
	assert.False(t, applied)
	assert.Equal(t, "doc", buf.Text())
	require.Len(t, rec.Messages(), 1)
	assert.Contains(t, rec.Messages()[0], "Paste format is invalid. Error: expression ' missing ' failed")
}

func TestHandlePasteDecodeFailureFallsBackToPlainURL(t *testing.T) {
	titles := &stubTitles{title: "Page"}
	h := NewHandler(settingsWith(func(s *config.Settings) {
		s.HandleHighlightURLOnly = false
	}), titles, WithNotifier(&notify.Recorder{}))

	buf := editor.New("")
	mustWait(t, h.HandlePaste(context.Background(), NewEvent("https://example.com/page#:~:text=100%"), buf))
	assert.Equal(t, "[Page](https://example.com/page)", buf.Text())

	// With highlight-only handling the paste goes through untouched.
	h.UpdateSettings(config.Default())
	assert.Nil(t, h.HandlePaste(context.Background(), NewEvent("https://example.com/page#:~:text=%zz"), editor.New("")))
}

func TestHandlePasteReplacesEverySelection(t *testing.T) {
	h := NewHandler(settingsWith(useFormat("[{{text}}]", false)), &stubTitles{})

	buf := editor.New("a b c")
	buf.SetSelections(editor.Cursor(1), editor.Range{Anchor: 2, Head: 3}, editor.Cursor(5))
	mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), buf))

	assert.Equal(t, "a[hello world] [hello world] c[hello world]", buf.Text())
}

func TestHandlePasteCreateNoteCapability(t *testing.T) {
	dir := t.TempDir()
	v := vault.New(dir)
	h := NewHandler(settingsWith(func(s *config.Settings) {
		require.NoError(t, s.SelectFormat("Create new note"))
	}), &stubTitles{title: "Example"}, WithCapability("app", v), WithNotifier(&notify.Recorder{}))

	buf := editor.New("before")
	mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), buf))

	assert.Equal(t, "before", buf.Text())
	content, err := v.ReadNote("hello world.md")
	require.NoError(t, err)
	assert.Equal(t, "[Example]("+highlightLink+")", content)
}

func TestHandlePasteObserver(t *testing.T) {
	var got []Result
	h := NewHandler(settingsWith(useFormat("{{title}}", true)), &stubTitles{title: "T"},
		WithNotifier(&notify.Recorder{}),
		WithObserver(func(r Result) { got = append(got, r) }))

	mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), editor.New("")))

	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].PasteID)
	assert.Equal(t, classify.Highlight, got[0].Kind)
	assert.Equal(t, "https://example.com/page", got[0].PageURL)
	assert.Equal(t, highlightLink, got[0].URL)
	assert.Equal(t, "T", got[0].Title)
	assert.Equal(t, "Test", got[0].Format)
	assert.Equal(t, "T", got[0].Output)
}

type readOnlyEditor struct {
	*editor.Buffer
}

func (readOnlyEditor) ReplaceRange(string, int, int, string) error {
	return errors.New("read-only")
}

func TestHandlePasteObserverSeesWrittenText(t *testing.T) {
	buf := editor.New("")
	var seen string
	h := NewHandler(settingsWith(useFormat("{{text}}", false)), &stubTitles{},
		WithObserver(func(Result) { seen = buf.Text() }))

	mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), buf))
	assert.Equal(t, "hello world", seen)
}

func TestHandlePasteFailedWriteNotObserved(t *testing.T) {
	called := false
	h := NewHandler(settingsWith(useFormat("{{text}}", false)), &stubTitles{},
		WithObserver(func(Result) { called = true }))

	op := h.HandlePaste(context.Background(), NewEvent(highlightLink), readOnlyEditor{editor.New("")})
	require.NotNil(t, op)
	_, err := op.Wait()
	assert.Error(t, err)
	assert.False(t, called)
}

func TestUpdateSettingsAndFollow(t *testing.T) {
	h := NewHandler(settingsWith(nil), &stubTitles{})
	assert.Equal(t, "Quote", h.Settings().Active().Name)

	updates := make(chan *config.Settings, 1)
	next := config.Default()
	require.NoError(t, next.SelectFormat("Callout"))
	updates <- next
	close(updates)

	h.Follow(context.Background(), updates)
	assert.Equal(t, "Callout", h.Settings().Active().Name)
}

func TestHandlePasteLogsCorrelationID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHandler(settingsWith(useFormat("{{text}}", false)), &stubTitles{}, WithLogger(logger))

	mustWait(t, h.HandlePaste(context.Background(), NewEvent(highlightLink), editor.New("")))

	out := logs.String()
	assert.Contains(t, out, "paste_id=")
	assert.Contains(t, out, "state=classifying")
	assert.Contains(t, out, "state=formatting")
	assert.Contains(t, out, "state=replacing")
}
