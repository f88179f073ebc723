package fetcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"linkpaste/html"
)

// Titles fetches page titles. Concurrent requests for the same URL share a
// single fetch.
type Titles struct {
	fetcher *Fetcher
	group   singleflight.Group
}

// NewTitles returns a title fetcher backed by f.
func NewTitles(f *Fetcher) *Titles {
	return &Titles{fetcher: f}
}

// FetchTitle retrieves pageURL and returns its document title, or "" when
// the page has none. Cancelling ctx abandons the wait but not a fetch that
// other callers are sharing; the fetcher's own timeout bounds that.
func (t *Titles) FetchTitle(ctx context.Context, pageURL string) (string, error) {
	ch := t.group.DoChan(pageURL, func() (any, error) {
		res, err := t.fetcher.Smart(context.WithoutCancel(ctx), pageURL)
		if err != nil {
			return "", err
		}
		title, err := html.TitleString(res.HTML)
		if err != nil {
			return "", &FetchError{URL: pageURL, Err: fmt.Errorf("parsing html: %w", err)}
		}
		return title, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}
