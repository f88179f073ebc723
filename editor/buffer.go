// Package editor provides an in-memory text buffer with multiple selections.
package editor

import (
	"errors"
	"sync"
	"unicode/utf8"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid range: from is after to")

// Range is a selection. Anchor is where it started and Head is where the
// cursor is; either may come first. Offsets are in bytes.
type Range struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

// Cursor returns an empty range at pos.
func Cursor(pos int) Range {
	return Range{Anchor: pos, Head: pos}
}

// From returns the earlier end of the range.
func (r Range) From() int {
	return min(r.Anchor, r.Head)
}

// To returns the later end of the range.
func (r Range) To() int {
	return max(r.Anchor, r.Head)
}

// Empty reports whether the range selects nothing.
func (r Range) Empty() bool {
	return r.Anchor == r.Head
}

// Buffer is a text document with one or more selections. It is safe for
// concurrent use. Every change carries an origin tag; the tag of the latest
// change is kept so callers can tell a paste from other edits.
type Buffer struct {
	mu         sync.Mutex
	text       string
	sels       []Range
	lastOrigin string
}

// New creates a buffer holding text with the cursor at the end.
func New(text string) *Buffer {
	return &Buffer{
		text: text,
		sels: []Range{Cursor(len(text))},
	}
}

// Text returns the current text.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// ListSelections returns a copy of the current selections.
func (b *Buffer) ListSelections() []Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Range, len(b.sels))
	copy(out, b.sels)
	return out
}

// SetSelections replaces the selections. Offsets are clamped to the text.
// With no ranges the buffer keeps a single cursor at the end.
func (b *Buffer) SetSelections(ranges ...Range) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(ranges) == 0 {
		b.sels = []Range{Cursor(len(b.text))}
		return
	}
	b.sels = make([]Range, len(ranges))
	for i, r := range ranges {
		b.sels[i] = Range{Anchor: b.clamp(r.Anchor), Head: b.clamp(r.Head)}
	}
}

// ReplaceRange replaces text[from:to] with text, tagged with origin. Offsets past the end of the buffer are clamped, and offsets
// that fall inside a multi-byte character move back to its start.
// Selections are mapped through the change.
func (b *Buffer) ReplaceRange(text string, from, to int, origin string) error {
	if from > to {
		return ErrInvalidRange
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	from, to = b.clamp(from), b.clamp(to)
	b.lastOrigin = origin
	b.replace(text, from, to)
	return nil
}

// ReplaceSelection replaces every selection with text. Each cursor ends up
// after its inserted text.
func (b *Buffer) ReplaceSelection(text, origin string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastOrigin = origin
	sels := make([]Range, len(b.sels))
	copy(sels, b.sels)
	// Later ranges first so earlier offsets stay valid.
	for i := len(sels) - 1; i >= 0; i-- {
		b.replace(text, sels[i].From(), sels[i].To())
	}
}

func (b *Buffer) replace(text string, from, to int) {
	b.text = b.text[:from] + text + b.text[to:]
	for i, r := range b.sels {
		b.sels[i] = Range{
			Anchor: mapPos(r.Anchor, from, to, len(text)),
			Head:   mapPos(r.Head, from, to, len(text)),
		}
	}
}

// mapPos maps a position through the replacement of [from, to] by n bytes.
// Positions inside the replaced span end up after the inserted text.
func mapPos(pos, from, to, n int) int {
	switch {
	case pos < from:
		return pos
	case pos > to:
		return pos + n - (to - from)
	default:
		return from + n
	}
}

func (b *Buffer) clamp(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(b.text) {
		return len(b.text)
	}
	for pos > 0 && pos < len(b.text) && !utf8.RuneStart(b.text[pos]) {
		pos--
	}
	return pos
}

// LastOrigin returns the origin of the most recent change, or "" if the
// buffer has not changed.
func (b *Buffer) LastOrigin() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastOrigin
}
