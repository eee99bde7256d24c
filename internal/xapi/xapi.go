// Package xapi is a minimal client for the X API v2 endpoints the
// collector needs: recent search (paginated) and recent counts.
package xapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrCountsUnsupported is returned when the counts endpoint is not
// available on the account's access tier. Callers fall back to plain
// pagination.
var ErrCountsUnsupported = errors.New("counts endpoint not available on this access tier")

// APIError is a non-2xx response decoded from the X API error body.
type APIError struct {
	Status int
	Title  string
	Detail string
	// RateLimitReset is set on 429 responses from x-rate-limit-reset.
	RateLimitReset time.Time
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("x api: %s (status %d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("x api: %s (status %d)", e.Title, e.Status)
}

// RateLimited reports whether the error is a 429.
func (e *APIError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

// IsRateLimited reports whether err is an APIError carrying a 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}

// Client talks to the X API v2 with app-only bearer auth.
type Client struct {
	baseURL string
	bearer  string
	client  *http.Client
}

// NewClient creates a client. An empty baseURL selects the public API.
func NewClient(baseURL, bearer string) *Client {
	if baseURL == "" {
		baseURL = "https://api.twitter.com/2"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bearer:  bearer,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// QueryOptions are the filters appended to a base search query.
type QueryOptions struct {
	Lang            string
	ExcludeRetweets bool
	ExcludeReplies  bool
}

// BuildQuery appends the configured filters to the base query, e.g.
// `COPASA -is:retweet lang:pt`.
func BuildQuery(base string, opts QueryOptions) string {
	parts := []string{base}
	if opts.ExcludeRetweets {
		parts = append(parts, "-is:retweet")
	}
	if opts.ExcludeReplies {
		parts = append(parts, "-is:reply")
	}
	if opts.Lang != "" {
		parts = append(parts, "lang:"+opts.Lang)
	}
	return strings.Join(parts, " ")
}
