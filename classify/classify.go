// Package classify decides what a pasted piece of text is: an https URL,
// a link to a text-fragment highlight, or something to leave alone.
package classify

import (
	"fmt"
	"net/url"
	"regexp"
	"unicode/utf8"
)

// Kind identifies the shape of pasted text.
type Kind int

const (
	// Ignore means the text is not an https URL.
	Ignore Kind = iota
	// PlainURL is an https URL with no text-fragment selector.
	PlainURL
	// Highlight is an https URL followed by "#:~:text=".
	Highlight
)

func (k Kind) String() string {
	switch k {
	case Ignore:
		return "ignore"
	case PlainURL:
		return "plain-url"
	case Highlight:
		return "highlight"
	default:
		return "unknown"
	}
}

// Result represents the classified clipboard text.
type Result struct {
	Kind         Kind
	PageURL      string // URL up to the first '#'
	HighlightURL string // PageURL plus the fragment, as matched
	Text         string // percent-decoded highlighted text
}

// DecodeError is returned when the highlighted text is not valid
// percent-encoded UTF-8.
type DecodeError struct {
	Fragment string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding highlighted text %q: %v", e.Fragment, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// pastePattern must match at the start of the text; anything after the match
// is ignored. Submatch 2 is the optional fragment, 3 the encoded text.
var pastePattern = regexp.MustCompile(`^(https://[^#]*)(#:~:text=(.*))?`)

// Classify parses clipboard plain text.
//
// When the fragment cannot be decoded, Classify returns a PlainURL result for
// the page alongside a *DecodeError, so callers can fall back to treating the
// paste as a bare link.
func Classify(text string) (Result, error) {
	m := pastePattern.FindStringSubmatchIndex(text)
	if m == nil {
		return Result{Kind: Ignore}, nil
	}

	pageURL := text[m[2]:m[3]]
	if m[4] < 0 {
		return Result{Kind: PlainURL, PageURL: pageURL}, nil
	}

	encoded := text[m[6]:m[7]]
	decoded, err := DecodeComponent(encoded)
	if err != nil {
		return Result{Kind: PlainURL, PageURL: pageURL}, &DecodeError{Fragment: encoded, Err: err}
	}

	return Result{
		Kind:         Highlight,
		PageURL:      pageURL,
		HighlightURL: text[m[0]:m[1]],
		Text:         decoded,
	}, nil
}

// DecodeComponent percent-decodes s with decodeURIComponent rules: every '%'
// must start a valid escape, '+' is kept as is, and the decoded bytes must be
// valid UTF-8.
func DecodeComponent(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(decoded) {
		return "", fmt.Errorf("invalid UTF-8 sequence")
	}
	return decoded, nil
}
