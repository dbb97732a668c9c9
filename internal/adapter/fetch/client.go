// Package fetch is the HTTP GET helper shared by the source adapters. Every
// failure is reported as a *radar.NetworkError.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// MaxBodyBytes caps a response body.
const MaxBodyBytes = 512 << 20

// Client performs GET requests with a fixed timeout.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New creates a Client. An empty userAgent leaves Go's default in place.
func New(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// Get fetches url and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &radar.NetworkError{Op: http.MethodGet, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &radar.NetworkError{Op: http.MethodGet, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &radar.NetworkError{
			Op:         http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(bytes.TrimSpace(snippet))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, &radar.NetworkError{Op: http.MethodGet, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
