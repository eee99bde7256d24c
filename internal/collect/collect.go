// Package collect runs one collection pass against the X API: check the
// monthly quota, walk the recent search pages for the configured query,
// archive what came back, and charge the ledger for the new rows.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/metrics"
	"github.com/fieldsite/fieldsite/internal/quota"
	"github.com/fieldsite/fieldsite/internal/xapi"
)

// Searcher is the slice of the API client a run needs.
type Searcher interface {
	SearchRecent(ctx context.Context, p xapi.SearchParams) (*xapi.SearchPage, error)
	CountsRecent(ctx context.Context, query string) (*xapi.Counts, error)
}

// Result describes one collection run.
type Result struct {
	Query       string
	Pages       int
	Fetched     int  // posts returned by the API
	Archived    int  // posts actually new to the archive
	Remaining   int  // quota remaining after the run
	RateLimited bool // the run stopped early on a 429
}

// Runner executes collection passes.
type Runner struct {
	cfg      config.CollectConfig
	client   Searcher
	store    *archive.Store
	ledger   *quota.Ledger
	recorder metrics.Recorder
	now      func() time.Time
}

// NewRunner wires a collection runner.
func NewRunner(cfg config.CollectConfig, client Searcher, store *archive.Store, ledger *quota.Ledger) *Runner {
	return &Runner{
		cfg:      cfg,
		client:   client,
		store:    store,
		ledger:   ledger,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
}

// SetRecorder injects a metrics recorder. Returns the runner for chaining.
func (r *Runner) SetRecorder(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// Run performs one collection pass. With resume set, only posts newer
// than the newest archived one are fetched. A rate-limited run is not an
// error: what was fetched is archived and the result says it stopped
// early. A canceled run archives partial results too and returns them
// alongside ctx.Err().
func (r *Runner) Run(ctx context.Context, resume bool) (*Result, error) {
	start := r.now()

	if r.cfg.Query == "" {
		r.recorder.IncCollectOutcome(metrics.ResultFailed)
		return nil, fmt.Errorf("collect.query is not configured")
	}

	remaining, err := r.ledger.Remaining(ctx)
	if err != nil {
		r.recorder.IncCollectOutcome(metrics.ResultFailed)
		return nil, fmt.Errorf("read quota ledger: %w", err)
	}
	if remaining <= 0 {
		slog.Info("Monthly cap reached, skipping collection",
			logfields.Month(r.ledger.Month()), slog.Int("cap", r.ledger.Cap()))
		r.recorder.IncCollectOutcome(metrics.ResultSkipped)
		return nil, quota.ErrCapReached
	}

	query := xapi.BuildQuery(r.cfg.Query, xapi.QueryOptions{
		Lang:            r.cfg.Lang,
		ExcludeRetweets: r.cfg.ExcludeRetweets,
		ExcludeReplies:  r.cfg.ExcludeReplies,
	})

	// Informational only; the free tier rejects this endpoint.
	if counts, err := r.client.CountsRecent(ctx, query); err == nil {
		slog.Info("Counts endpoint estimate",
			logfields.Query(query), slog.Int("estimated", counts.Total))
	} else {
		slog.Debug("Counts endpoint unavailable, using pagination", logfields.Error(err))
	}

	var sinceID string
	if resume {
		sinceID, err = r.store.NewestID(ctx)
		if err != nil {
			r.recorder.IncCollectOutcome(metrics.ResultFailed)
			return nil, err
		}
	}

	end := r.now().UTC()
	params := xapi.SearchParams{
		Query:      query,
		MaxResults: r.cfg.PageSize,
		StartTime:  end.AddDate(0, 0, -r.cfg.WindowDays),
		EndTime:    end,
		SinceID:    sinceID,
	}
	limit := r.cfg.MaxPosts
	if remaining < limit {
		limit = remaining
	}

	slog.Info("Starting collection",
		logfields.Query(query),
		slog.Int("window_days", r.cfg.WindowDays),
		slog.Int("limit", limit),
		slog.Int("quota_remaining", remaining))

	result := &Result{Query: query}
	var collected []archive.Post
	canceled := false

	for {
		select {
		case <-ctx.Done():
			canceled = true
		default:
		}
		if canceled {
			break
		}

		page, err := r.client.SearchRecent(ctx, params)
		if err != nil {
			if xapi.IsRateLimited(err) {
				result.RateLimited = true
				logRateLimit(err)
				break
			}
			if len(collected) == 0 {
				r.recorder.IncCollectOutcome(metrics.ResultFailed)
				return nil, fmt.Errorf("search recent: %w", err)
			}
			// Keep what we have; the next run resumes from the archive.
			slog.Warn("Search failed mid-run, archiving partial results", logfields.Error(err))
			break
		}

		result.Pages++
		if len(page.Posts) == 0 {
			slog.Debug("Page returned no posts")
			break
		}
		for _, p := range page.Posts {
			collected = append(collected, toArchivePost(p, start.UTC()))
		}
		slog.Info("Collected page",
			slog.Int("page", result.Pages),
			slog.Int("page_posts", len(page.Posts)),
			logfields.Posts(len(collected)))

		if page.NextToken == "" {
			break
		}
		if len(collected) >= limit {
			slog.Info("Reached collection limit", slog.Int("limit", limit))
			break
		}
		params.NextToken = page.NextToken
	}

	result.Fetched = len(collected)

	added, err := r.store.InsertPosts(ctx, collected)
	if err != nil {
		r.recorder.IncCollectOutcome(metrics.ResultFailed)
		return nil, fmt.Errorf("archive posts: %w", err)
	}
	result.Archived = added

	if err := r.ledger.Charge(ctx, added); err != nil {
		r.recorder.IncCollectOutcome(metrics.ResultFailed)
		return nil, fmt.Errorf("charge quota: %w", err)
	}
	if result.Remaining, err = r.ledger.Remaining(ctx); err != nil {
		return nil, err
	}

	_ = r.store.AppendEvent(ctx, "collect", "",
		fmt.Sprintf("fetched=%d archived=%d pages=%d rate_limited=%t",
			result.Fetched, result.Archived, result.Pages, result.RateLimited))

	r.recorder.ObserveCollectDuration(time.Since(start))
	r.recorder.AddPostsArchived(added)
	r.recorder.SetQuotaRemaining(result.Remaining)

	slog.Info("Collection finished",
		logfields.Posts(result.Fetched),
		slog.Int("archived", result.Archived),
		slog.Int("pages", result.Pages),
		slog.Int("quota_remaining", result.Remaining),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	if canceled {
		r.recorder.IncCollectOutcome(metrics.ResultCanceled)
		return result, ctx.Err()
	}
	r.recorder.IncCollectOutcome(metrics.ResultSuccess)
	return result, nil
}

// toArchivePost flattens API text (newlines become spaces) the same way
// the archive's CSV consumers expect single-line rows.
func toArchivePost(p xapi.Post, collectedAt time.Time) archive.Post {
	text := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(p.Text)
	return archive.Post{
		ID:             p.ID,
		Text:           strings.TrimSpace(text),
		CreatedAt:      p.CreatedAt,
		AuthorID:       p.AuthorID,
		AuthorUsername: p.AuthorUsername,
		AuthorName:     p.AuthorName,
		AuthorVerified: p.AuthorVerified,
		Retweets:       p.Retweets,
		Replies:        p.Replies,
		Likes:          p.Likes,
		Quotes:         p.Quotes,
		Lang:           p.Lang,
		CollectedAt:    collectedAt,
	}
}

func logRateLimit(err error) {
	var apiErr *xapi.APIError
	if errors.As(err, &apiErr) && !apiErr.RateLimitReset.IsZero() {
		slog.Warn("Rate limited, stopping early",
			slog.Time("reset_at", apiErr.RateLimitReset))
		return
	}
	slog.Warn("Rate limited, stopping early")
}
