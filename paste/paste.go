// Package paste turns pasted links into formatted text.
//
// A Handler looks at the plain text of a paste event. Links to a text
// highlight (https://...#:~:text=...) are rendered through the active
// format's template, and plain https links optionally become a Markdown link
// titled after the page. Everything else is left to the editor's default
// paste.
package paste

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"linkpaste/classify"
	"linkpaste/config"
	"linkpaste/notify"
	"linkpaste/replace"
	"linkpaste/template"
)

// AppName prefixes user-facing notices.
const AppName = "linkpaste"

// TitleFetcher retrieves the title of a web page.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, pageURL string) (string, error)
}

// Template variable names.
const (
	VarPageURL      = "pageUrl"
	VarHighlightURL = "highlightUrl"
	VarURL          = "url"
	VarText         = "text"
	VarTitle        = "title"
)

type state string

const (
	stateClassifying   state = "classifying"
	stateIgnored       state = "ignored"
	stateFetchingTitle state = "fetching-title"
	stateFormatting    state = "formatting"
	stateReplacing     state = "replacing"
	stateAborted       state = "aborted"
)

// Result describes a paste that produced replacement text.
type Result struct {
	PasteID string
	Kind    classify.Kind
	PageURL string
	URL     string
	Title   string
	Format  string // empty for plain URLs
	Output  string
}

// Handler handles paste events. It is safe for concurrent use; overlapping
// pastes run independently.
type Handler struct {
	settings atomic.Pointer[config.Settings]
	titles   TitleFetcher
	engine   *template.Engine
	notifier notify.Notifier
	logger   *slog.Logger
	caps     map[string]any
	observer func(Result)
}

// Option configures a Handler.
type Option func(*Handler)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithCapability binds value under name in every template environment, so
// expressions can call its methods.
func WithCapability(name string, value any) Option {
	return func(h *Handler) { h.caps[name] = value }
}

// WithObserver registers fn to be called with every replacement once it has
// been written to the editor.
func WithObserver(fn func(Result)) Option {
	return func(h *Handler) { h.observer = fn }
}

// NewHandler creates a handler with the given settings and title source.
func NewHandler(settings *config.Settings, titles TitleFetcher, opts ...Option) *Handler {
	h := &Handler{
		titles:   titles,
		engine:   template.New(),
		notifier: notify.Log{},
		logger:   slog.Default(),
		caps:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.settings.Store(settings)
	return h
}

// With returns a copy of h with opts applied on top. The copy starts from
// h's current settings but is updated independently afterwards.
func (h *Handler) With(opts ...Option) *Handler {
	c := &Handler{
		titles:   h.titles,
		engine:   h.engine,
		notifier: h.notifier,
		logger:   h.logger,
		caps:     make(map[string]any, len(h.caps)),
		observer: h.observer,
	}
	for name, v := range h.caps {
		c.caps[name] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	c.settings.Store(h.Settings())
	return c
}

// Settings returns the settings currently in effect.
func (h *Handler) Settings() *config.Settings {
	return h.settings.Load()
}

// UpdateSettings swaps in new settings. Pastes already in flight keep the
// settings they started with.
func (h *Handler) UpdateSettings(s *config.Settings) {
	h.settings.Store(s)
}

// Follow applies settings from updates until the channel closes or ctx is
// done.
func (h *Handler) Follow(ctx context.Context, updates <-chan *config.Settings) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			h.UpdateSettings(s)
			h.logger.Debug("Settings updated", "format", s.Active().Name)
		}
	}
}

// HandlePaste inspects evt and, if it is a link the handler owns, prevents
// the default paste and starts replacing the editor's current selections.
// It returns nil when the default paste should go ahead.
func (h *Handler) HandlePaste(ctx context.Context, evt *Event, ed replace.Editor) *replace.Op {
	if evt == nil || evt.DefaultPrevented() {
		return nil
	}
	data := evt.GetData(MIMEText)
	if data == "" {
		return nil
	}

	p := &run{
		h:        h,
		settings: h.Settings(),
		id:       uuid.NewString(),
	}
	p.log = h.logger.With("paste_id", p.id)
	p.transition(stateClassifying)

	res, err := classify.Classify(data)
	if err != nil {
		// Treat the link as if it had no highlight.
		p.log.Error("Cannot decode highlighted text", "error", err)
	}
	p.res = res

	switch res.Kind {
	case classify.PlainURL:
		if p.settings.HandleHighlightURLOnly {
			p.transition(stateIgnored, "reason", "plain url")
			return nil
		}
		evt.PreventDefault()
		return replace.Async(ctx, ed, p.plainLink, p.finish)

	case classify.Highlight:
		evt.PreventDefault()
		return replace.Async(ctx, ed, p.highlight, p.finish)

	default:
		p.transition(stateIgnored, "reason", "not an https url")
		return nil
	}
}

// run is the state of one paste.
type run struct {
	h        *Handler
	settings *config.Settings
	id       string
	log      *slog.Logger
	res      classify.Result
	out      *Result // set once replacement text exists
}

func (p *run) transition(s state, args ...any) {
	p.log.Debug("Paste state", append([]any{"state", s}, args...)...)
}

func (p *run) notice(msg string, timeout time.Duration) notify.Notice {
	return p.h.notifier.Notify(fmt.Sprintf("%s: %s", AppName, msg), timeout)
}

func (p *run) fetchTitle(ctx context.Context) (string, bool) {
	p.transition(stateFetchingTitle, "url", p.res.PageURL)
	if p.settings.NoticeWhileFetching {
		n := p.notice("Fetching page title...", 0)
		defer n.Hide()
	}

	start := time.Now()
	title, err := p.h.titles.FetchTitle(ctx, p.res.PageURL)
	if err != nil {
		p.log.Error("Failed to fetch page title", "url", p.res.PageURL, "error", err)
		p.notice("Failed to fetch page title. Error: "+err.Error(), 5*time.Second)
		p.transition(stateAborted)
		return "", false
	}
	p.log.Debug("Fetched page title", "title", title, "duration", time.Since(start))
	return title, true
}

func (p *run) plainLink(ctx context.Context) (string, bool) {
	title, ok := p.fetchTitle(ctx)
	if !ok {
		return "", false
	}
	out := fmt.Sprintf("[%s](%s)", title, p.res.PageURL)
	p.done(Result{Title: title, Output: out, URL: p.res.PageURL})
	return out, true
}

func (p *run) highlight(ctx context.Context) (string, bool) {
	env := make(template.Env, len(p.h.caps)+5)
	for name, v := range p.h.caps {
		env[name] = v
	}
	env[VarPageURL] = p.res.PageURL
	env[VarHighlightURL] = p.res.HighlightURL
	env[VarURL] = p.res.HighlightURL
	env[VarText] = p.res.Text

	format := p.settings.Active()

	var title string
	if format.RequireFetch {
		var ok bool
		if title, ok = p.fetchTitle(ctx); !ok {
			return "", false
		}
		env[VarTitle] = title
	}

	p.transition(stateFormatting, "format", format.Name)
	out, err := p.h.engine.Render(format.Template, env)
	if err != nil {
		p.log.Error("Paste format is invalid", "format", format.Name, "error", err)
		p.notice("Paste format is invalid. Error: "+err.Error(), 5*time.Second)
		p.transition(stateAborted)
		return "", false
	}

	p.done(Result{Title: title, Format: format.Name, Output: out, URL: p.res.HighlightURL})
	return out, true
}

func (p *run) done(r Result) {
	p.transition(stateReplacing)
	r.PasteID = p.id
	r.Kind = p.res.Kind
	r.PageURL = p.res.PageURL
	p.out = &r
}

// finish runs after the editor has been written.
func (p *run) finish(applied bool, err error) {
	if err != nil {
		p.log.Error("Failed to apply paste", "error", err)
		p.transition(stateAborted)
		return
	}
	if !applied || p.out == nil {
		return
	}
	if p.h.observer != nil {
		p.h.observer(*p.out)
	}
}
