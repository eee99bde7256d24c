package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchParams drive one page of the recent search endpoint.
type SearchParams struct {
	Query      string
	MaxResults int // 10..100, the API maximum
	NextToken  string
	StartTime  time.Time
	EndTime    time.Time
	SinceID    string
}

// Post is one tweet from a search page, flattened with its expanded
// author.
type Post struct {
	ID             string
	Text           string
	CreatedAt      time.Time
	AuthorID       string
	AuthorUsername string
	AuthorName     string
	AuthorVerified bool
	Retweets       int
	Replies        int
	Likes          int
	Quotes         int
	Lang           string
}

// SearchPage is one page of search results. An empty NextToken means the
// last page.
type SearchPage struct {
	Posts     []Post
	NextToken string
}

// SearchRecent fetches one page of GET /tweets/search/recent.
func (c *Client) SearchRecent(ctx context.Context, p SearchParams) (*SearchPage, error) {
	q := url.Values{}
	q.Set("query", p.Query)
	if p.MaxResults > 0 {
		q.Set("max_results", strconv.Itoa(p.MaxResults))
	}
	if p.NextToken != "" {
		q.Set("next_token", p.NextToken)
	}
	if !p.StartTime.IsZero() {
		q.Set("start_time", p.StartTime.UTC().Format(time.RFC3339))
	}
	if !p.EndTime.IsZero() {
		q.Set("end_time", p.EndTime.UTC().Format(time.RFC3339))
	}
	if p.SinceID != "" {
		q.Set("since_id", p.SinceID)
	}
	q.Set("tweet.fields", "created_at,public_metrics,author_id,lang")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username,name,verified")

	var body searchResponse
	if err := c.get(ctx, "/tweets/search/recent", q, &body); err != nil {
		return nil, err
	}

	users := make(map[string]wireUser, len(body.Includes.Users))
	for _, u := range body.Includes.Users {
		users[u.ID] = u
	}

	page := &SearchPage{NextToken: body.Meta.NextToken}
	for _, t := range body.Data {
		created, _ := time.Parse(time.RFC3339, t.CreatedAt)
		post := Post{
			ID:        t.ID,
			Text:      t.Text,
			CreatedAt: created,
			AuthorID:  t.AuthorID,
			Retweets:  t.PublicMetrics.RetweetCount,
			Replies:   t.PublicMetrics.ReplyCount,
			Likes:     t.PublicMetrics.LikeCount,
			Quotes:    t.PublicMetrics.QuoteCount,
			Lang:      t.Lang,
		}
		if u, ok := users[t.AuthorID]; ok {
			post.AuthorUsername = u.Username
			post.AuthorName = u.Name
			post.AuthorVerified = u.Verified
		}
		page.Posts = append(page.Posts, post)
	}
	return page, nil
}

// CountBucket is one day of the counts endpoint breakdown.
type CountBucket struct {
	Start time.Time
	End   time.Time
	Count int
}

// Counts is the recent counts estimate for a query.
type Counts struct {
	Total   int
	Buckets []CountBucket
}

// CountsRecent probes GET /tweets/counts/recent with day granularity.
// Free-tier accounts get ErrCountsUnsupported instead of a hard failure.
func (c *Client) CountsRecent(ctx context.Context, query string) (*Counts, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("granularity", "day")

	var body countsResponse
	if err := c.get(ctx, "/tweets/counts/recent", q, &body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCountsUnsupported, apiErr.Title)
		}
		return nil, err
	}

	counts := &Counts{Total: body.Meta.TotalTweetCount}
	for _, b := range body.Data {
		start, _ := time.Parse(time.RFC3339, b.Start)
		end, _ := time.Parse(time.RFC3339, b.End)
		counts.Buckets = append(counts.Buckets, CountBucket{Start: start, End: end, Count: b.TweetCount})
		if body.Meta.TotalTweetCount == 0 {
			counts.Total += b.TweetCount
		}
	}
	return counts, nil
}

// get performs an authenticated GET and decodes the JSON response into
// out. Non-2xx responses come back as *APIError.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("x api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("User-Agent", "fieldsite-collect/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("x api http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("x api read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("x api unmarshal: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, raw []byte) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Title != "" {
		apiErr.Title = body.Title
		apiErr.Detail = body.Detail
	} else {
		apiErr.Title = http.StatusText(resp.StatusCode)
		apiErr.Detail = strings.TrimSpace(string(raw))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
			if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
				apiErr.RateLimitReset = time.Unix(unix, 0).UTC()
			}
		}
	}
	return apiErr
}

// --- X API v2 wire types ---

type wireTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	AuthorID      string `json:"author_id"`
	Lang          string `json:"lang"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		LikeCount    int `json:"like_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type searchResponse struct {
	Data     []wireTweet `json:"data"`
	Includes struct {
		Users []wireUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type countsResponse struct {
	Data []struct {
		Start      string `json:"start"`
		End        string `json:"end"`
		TweetCount int    `json:"tweet_count"`
	} `json:"data"`
	Meta struct {
		TotalTweetCount int `json:"total_tweet_count"`
	} `json:"meta"`
}
