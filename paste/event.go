package paste

import "sync/atomic"

// MIMEText is the only clipboard representation the handler reads.
const MIMEText = "text/plain"

// Event is a paste event as delivered by the host editor.
type Event struct {
	// Data maps MIME types to clipboard contents.
	Data map[string]string

	prevented atomic.Bool
}

// NewEvent returns an event carrying plain text.
func NewEvent(text string) *Event {
	return &Event{Data: map[string]string{MIMEText: text}}
}

// GetData returns the clipboard contents for mime, or "".
func (e *Event) GetData(mime string) string {
	return e.Data[mime]
}

// PreventDefault stops the host's own paste from happening.
func (e *Event) PreventDefault() {
	e.prevented.Store(true)
}

// DefaultPrevented reports whether some handler has taken over the paste.
func (e *Event) DefaultPrevented() bool {
	return e.prevented.Load()
}
