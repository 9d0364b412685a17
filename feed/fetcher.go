// Package feed provides news feed fetching and parsing for news-cli.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the static news feed endpoint.
const DefaultURL = "https://candidate-test-data-moengage.s3.amazonaws.com/Android/news-api-feed/staticResponse.json"

// DefaultTimeout bounds a single fetch when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Fetcher retrieves the raw feed document from a fixed URL.
type Fetcher struct {
	url    string
	client *http.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for fetching.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the client timeout. Zero or negative keeps the default.
// The client is copied, so a client passed to WithHTTPClient is not changed.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			client := *f.client
			client.Timeout = d
			f.client = &client
		}
	}
}

// NewFetcher creates a new Fetcher for url.
func NewFetcher(url string, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the endpoint this fetcher reads from.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch performs one GET of the feed URL and returns the full body as text.
// Every failure is returned as a *TransportError. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", &TransportError{URL: f.url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "news-cli/0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &TransportError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &TransportError{URL: f.url, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{URL: f.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return string(body), nil
}
