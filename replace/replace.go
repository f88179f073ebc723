// Package replace swaps editor selections for text that is produced later.
//
// Selections are captured before any waiting starts and the captured ranges,
// not whatever is selected when the text arrives, are the ones replaced.
package replace

import (
	"context"
	"sort"

	"linkpaste/editor"
)

// OriginPaste tags changes caused by a paste so hosts can group them for undo.
const OriginPaste = "input.paste"

// Editor is the part of a text editor the protocol needs.
type Editor interface {
	ListSelections() []editor.Range
	ReplaceRange(text string, from, to int, origin string) error
}

// Span is a normalized selection: From <= To.
type Span struct {
	From, To int
}

// Snapshot is the set of selections captured at one instant.
type Snapshot []Span

// Capture records the editor's current selections.
func Capture(ed Editor) Snapshot {
	sels := ed.ListSelections()
	snap := make(Snapshot, len(sels))
	for i, r := range sels {
		snap[i] = Span{From: r.From(), To: r.To()}
	}
	return snap
}

// Producer yields the replacement text. ok is false when there is nothing
// to insert, in which case the document is left alone.
type Producer func(ctx context.Context) (text string, ok bool)

// Apply waits for produce and writes its text over every span in snap.
// It reports whether the document was changed.
func Apply(ctx context.Context, ed Editor, snap Snapshot, produce Producer) (bool, error) {
	text, ok := produce(ctx)
	if !ok {
		return false, nil
	}

	// Replace from the end of the document backwards so each span's offsets
	// are still the ones captured.
	spans := make(Snapshot, len(snap))
	copy(spans, snap)
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].From > spans[j].From
	})

	for _, s := range spans {
		if err := ed.ReplaceRange(text, s.From, s.To, OriginPaste); err != nil {
			return true, err
		}
	}
	return len(spans) > 0, nil
}

// Op is an in-flight replacement started by Async.
type Op struct {
	done    chan struct{}
	applied bool
	err     error
}

// Async captures the selections now and completes the replacement in the
// background. then, if not nil, receives the outcome once the editor has
// been written and before Done is closed.
func Async(ctx context.Context, ed Editor, produce Producer, then func(applied bool, err error)) *Op {
	snap := Capture(ed)
	op := &Op{done: make(chan struct{})}
	go func() {
		defer close(op.done)
		op.applied, op.err = Apply(ctx, ed, snap, produce)
		if then != nil {
			then(op.applied, op.err)
		}
	}()
	return op
}

// Done is closed once the replacement has finished or been skipped.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation finishes and reports whether the document
// was changed.
func (o *Op) Wait() (bool, error) {
	<-o.done
	return o.applied, o.err
}
