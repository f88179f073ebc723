// Package notify shows short-lived messages to the user.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Notice is a message that has been shown and can be dismissed early.
type Notice interface {
	Hide()
}

// Notifier displays notices. A timeout of zero keeps the notice up until it
// is hidden.
type Notifier interface {
	Notify(msg string, timeout time.Duration) Notice
}

type noopNotice struct{}

func (noopNotice) Hide() {}

// Writer prints notices as lines on an io.Writer.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a notifier printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (n *Writer) Notify(msg string, _ time.Duration) Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, msg)
	return noopNotice{}
}

// Log sends notices to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (n Log) Notify(msg string, timeout time.Duration) Notice {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notice", "message", msg, "timeout", timeout)
	return noopNotice{}
}

// Recorder keeps every notice in memory. It is used by the HTTP server to
// return notices with a response, and by tests.
type Recorder struct {
	mu      sync.Mutex
	entries []*Recorded
}

// Recorded is a notice captured by a Recorder.
type Recorded struct {
	Message string
	Timeout time.Duration

	mu     sync.Mutex
	hidden bool
}

// Hide marks the notice as dismissed.
func (r *Recorded) Hide() {
	r.mu.Lock()
	r.hidden = true
	r.mu.Unlock()
}

// Hidden reports whether Hide was called.
func (r *Recorded) Hidden() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden
}

func (r *Recorder) Notify(msg string, timeout time.Duration) Notice {
	n := &Recorded{Message: msg, Timeout: timeout}
	r.mu.Lock()
	r.entries = append(r.entries, n)
	r.mu.Unlock()
	return n
}

// Notices returns everything recorded so far.
func (r *Recorder) Notices() []*Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Recorded, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the text of every recorded notice.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, n := range r.entries {
		out[i] = n.Message
	}
	return out
}
