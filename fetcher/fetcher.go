// Package fetcher retrieves web pages over HTTP, with an optional headless
// browser fallback for pages that refuse plain clients.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html/charset"
)

// FetchResult contains the fetched HTML and metadata.
type FetchResult struct {
	HTML        string
	FinalURL    string // URL after following redirects
	UsedBrowser bool
	FetchTime   time.Duration
}

// FetchError reports a failed page retrieval.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options configures the fetcher behavior.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	ChromePath      string // Path to Chrome binary (empty = auto-detect)
	BrowserFallback bool   // Retry blocked or failed fetches in headless Chrome
	MaxBodyBytes    int64
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 8 << 20,
	}
}

// Fetcher fetches pages with a fixed set of options.
type Fetcher struct {
	opts   Options
	client *http.Client
}

// New creates a fetcher. Zero fields in opts take their default values.
func New(opts Options) *Fetcher {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = def.MaxBodyBytes
	}
	return &Fetcher{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Simple fetches a URL using standard HTTP. Bodies are decoded to UTF-8
// according to the Content-Type header and any <meta charset> in the page.
// Responses with a status of 400 or above are errors.
func (f *Fetcher) Simple(ctx context.Context, url string) (*FetchResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.opts.MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("detecting charset: %w", err)}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("reading response: %w", err)}
	}

	return &FetchResult{
		HTML:      string(data),
		FinalURL:  resp.Request.URL.String(),
		FetchTime: time.Since(start),
	}, nil
}

// stealthScript masks the most common automation checks.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined,
});
window.chrome = {
    runtime: {},
    loadTimes: function() {},
    csi: function() {},
    app: {},
};
Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
});
`

// WithBrowser fetches a URL using headless Chrome so that pages which
// require JavaScript or block plain clients still yield their HTML.
func (f *Fetcher) WithBrowser(ctx context.Context, targetURL string) (*FetchResult, error) {
	start := time.Now()

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", "new"),
		chromedp.UserAgent(f.opts.UserAgent),
		chromedp.WindowSize(1280, 800),
	}
	if f.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	// Browser fetches need more time than plain HTTP.
	timeout := f.opts.Timeout + 15*time.Second
	tctx, cancel := context.WithTimeout(allocCtx, timeout)
	defer cancel()

	bctx, cancel := chromedp.NewContext(tctx)
	defer cancel()

	var html, finalURL string
	err := chromedp.Run(bctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept-Language": "en-US,en;q=0.9",
		})),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("head", chromedp.ByQuery),
		// Give challenge pages a moment to replace themselves.
		chromedp.ActionFunc(func(ctx context.Context) error {
			var title string
			if err := chromedp.Title(&title).Do(ctx); err != nil {
				return nil
			}
			if title == "Just a moment..." {
				return chromedp.Sleep(5 * time.Second).Do(ctx)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: fmt.Errorf("browser fetch: %w", err)}
	}

	return &FetchResult{
		HTML:        html,
		FinalURL:    finalURL,
		UsedBrowser: true,
		FetchTime:   time.Since(start),
	}, nil
}

// IsBlockedResponse checks if the HTML indicates a blocked/challenged page.
func IsBlockedResponse(html string) (bool, string) {
	switch {
	case strings.Contains(html, "Just a moment..."),
		strings.Contains(html, "Checking your browser"),
		strings.Contains(html, "cf-browser-verification"):
		return true, "Cloudflare challenge"
	case strings.Contains(html, "recaptcha") && len(html) < 10000:
		return true, "reCAPTCHA challenge"
	case strings.Contains(html, "captcha-delivery.com"), strings.Contains(html, "DataDome"):
		return true, "DataDome bot protection"
	case strings.Contains(html, "perimeterx"), strings.Contains(html, "px-captcha"):
		return true, "PerimeterX bot protection"
	}
	return false, ""
}

// Smart fetches with plain HTTP first. When browser fallback is enabled and
// the plain fetch fails or hits a bot challenge, it retries in headless
// Chrome.
func (f *Fetcher) Smart(ctx context.Context, targetURL string) (*FetchResult, error) {
	result, err := f.Simple(ctx, targetURL)
	if !f.opts.BrowserFallback {
		return result, err
	}
	if err == nil {
		if blocked, _ := IsBlockedResponse(result.HTML); !blocked {
			return result, nil
		}
	}

	browserResult, berr := f.WithBrowser(ctx, targetURL)
	if berr != nil {
		if err != nil {
			return nil, err
		}
		// The challenge page is still the best we have.
		return result, nil
	}
	return browserResult, nil
}
