// Package page fetches web pages and turns them into classifier and
// enrichment input: clean text, body text, title and links.
package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultUserAgent is a browser-like user agent; many scholarship portals
// refuse obvious bots
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrStatus is returned for any non-200 response
var ErrStatus = errors.New("unexpected HTTP status")

// ErrInvalidURL is returned for URLs that are not absolute http(s)
var ErrInvalidURL = errors.New("URL must be http or https")

// Config contains fetcher configuration
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
}

// DefaultConfig returns the classifier fetch defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		UserAgent:    DefaultUserAgent,
		MaxRedirects: 10,
	}
}

// Fetcher downloads HTML pages
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a Fetcher whose transport propagates trace context
func NewFetcher(config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}

	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(config.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(config.MaxRedirects)).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Fetcher{client: client}
}

// Client exposes the underlying resty client
func (f *Fetcher) Client() *resty.Client {
	return f.client
}

// Fetch downloads and parses rawURL. Network errors, timeouts and non-200
// responses are returned as errors; callers decide how to degrade.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return nil, ErrInvalidURL
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode(), resp.Status())
	}

	// base for relative links is the final URL after redirects
	base := parsedURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		base = resp.RawResponse.Request.URL
	}

	return Parse(base, resp.Body())
}

// Parse builds a Page from raw HTML
func Parse(base *url.URL, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{URL: base, doc: doc}, nil
}
