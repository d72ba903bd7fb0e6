// Package feed downloads plain-text domain lists over HTTP.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the community-maintained disposable email domain list.
const DefaultURL = "https://raw.githubusercontent.com/disposable-email-domains/disposable-email-domains/master/disposable_email_blocklist.conf"

// MaxBodyBytes caps a downloaded list.
const MaxBodyBytes = 10 << 20

// HTTPDoer is the interface for executing HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the status and body of one GET.
type Response struct {
	Status int
	Body   []byte
}

// Getter fetches one URL.
type Getter interface {
	Get(ctx context.Context, url string) (Response, error)
}

// Client implements Getter over an HTTPDoer.
type Client struct {
	doer      HTTPDoer
	userAgent string
}

// NewClient wraps doer. A nil doer gets an http.Client with the given timeout
// (30s when timeout <= 0).
func NewClient(doer HTTPDoer, timeout time.Duration) *Client {
	if doer == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{doer: doer, userAgent: "tempmail-gate/1.0"}
}

// Get performs one GET. Transport failures and bodies over MaxBodyBytes are
// errors; any HTTP status is returned to the caller to judge.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.doer.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > MaxBodyBytes {
		return Response{}, fmt.Errorf("GET %s: body exceeds %d bytes", url, MaxBodyBytes)
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

var _ Getter = (*Client)(nil)
