package linkcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/fieldsite/fieldsite/internal/logfields"
)

const userAgent = "fieldsite-linkcheck/1.0"

// CheckExternal probes every external URL collected by the earlier passes.
// HEAD first, GET when HEAD is rejected. Rate limiting (429) and auth
// walls (401/403) count as reachable. Concurrency is bounded.
func (c *Checker) CheckExternal(ctx context.Context) []Problem {
	if !c.external || len(c.externalURLs) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		problems []Problem
		wg       sync.WaitGroup
		sem      = make(chan struct{}, c.maxInFlight)
	)

	for rawURL, sources := range c.externalURLs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return problems
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(rawURL string, sources []string) {
			defer wg.Done()
			defer func() { <-sem }()

			status, err := c.probe(ctx, rawURL)
			if err == nil {
				return
			}
			slog.Debug("External link unreachable",
				logfields.URL(rawURL), logfields.Status(status), logfields.Error(err))
			mu.Lock()
			for _, src := range sources {
				problems = append(problems, Problem{Source: src, Link: rawURL, Reason: err.Error()})
			}
			mu.Unlock()
		}(rawURL, sources)
	}

	wg.Wait()
	sortProblems(problems)
	return problems
}

// probe checks one URL. A nil error means reachable.
func (c *Checker) probe(ctx context.Context, rawURL string) (int, error) {
	status, err := c.request(ctx, http.MethodHead, rawURL)
	if err == nil && !brokenStatus(status) {
		return status, nil
	}
	// Some servers reject HEAD outright; retry with GET before judging.
	status, err = c.request(ctx, http.MethodGet, rawURL)
	if err != nil {
		return 0, err
	}
	if brokenStatus(status) {
		return status, fmt.Errorf("HTTP %d", status)
	}
	return status, nil
}

func (c *Checker) request(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// brokenStatus reports whether a status code marks the link broken.
// 429 means the URL exists but we are rate limited; 401/403 mean it
// exists behind credentials.
func brokenStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
		return false
	}
	return status >= 400
}
