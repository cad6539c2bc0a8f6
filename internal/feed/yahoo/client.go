// Package yahoo reads intraday bars from the Yahoo Finance chart API.
package yahoo

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Name is the feed name reported by Client.
const Name = "yahoo"

// ErrSymbolNotFound is returned when the API has no chart for a symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-success response from the chart API.
type APIError struct {
	StatusCode int
	Symbol     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("yahoo chart %s: status %d", e.Symbol, e.StatusCode)
	}
	return fmt.Sprintf("yahoo chart %s: status %d: %s", e.Symbol, e.StatusCode, e.Message)
}

// IsRetryable returns true for throttling and server-side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client is a chart API client. It implements feed.Feed.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers sent with each request.
	header http.Header
	// threads fetches symbols concurrently when set.
	threads bool
	logger  *slog.Logger
}

// Option is a configuration option for Client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithThreads toggles concurrent per-symbol fetching.
func WithThreads(on bool) Option {
	return func(c *Client) {
		c.threads = on
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a chart API client.
func NewClient(options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		threads:    true,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return Name }
