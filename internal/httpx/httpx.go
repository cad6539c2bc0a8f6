package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent is sent when a request carries no User-Agent.
// The chart endpoint rejects Go's default agent.
const DefaultUserAgent = "Mozilla/5.0 (compatible; bullionrates/1.0)"

// Client wraps http.Client with default headers. It satisfies the
// HTTPClient interfaces of the feed clients.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New returns a Client whose overall request timeout is timeout.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: DefaultUserAgent,
		Headers:   map[string]string{"Accept": "application/json"},
	}
}

// Do fills in missing default headers and sends req.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}
