package github

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
)

const (
	defaultPageSize = 100

	// Retry policy for transport failures on a single page.
	backoffLimit = 5
	backoffBase  = time.Second
	backoffMax   = 2 * time.Minute

	// Slack added on top of the server-reported quota reset time.
	resetSlack = time.Second
)

var (
	// ErrBackoffExhausted is returned when a page request kept failing
	// past the retry bound. The whole query type is then incomplete.
	ErrBackoffExhausted = errors.New("request failed even after exponential backoff")

	// ErrEmptyPage is returned when the server repeatedly reports a
	// next page while delivering no nodes.
	ErrEmptyPage = errors.New("server returned an empty page with more pages pending")
)

// Fetcher pages through one account's queries. Quota state is scoped to
// the fetcher, so each account session tracks its own limit; the two
// query types of one session share the token's quota and are expected
// to be fetched sequentially.
type Fetcher struct {
	client   Doer
	log      zerolog.Logger
	pageSize int
	rate     *RateLimitInfo

	// Injection points for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewFetcher builds a fetch session against client.
func NewFetcher(client Doer, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		log:      logger.With().Str("component", "github").Logger(),
		pageSize: defaultPageSize,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// RateLimit exposes the last server-reported quota, if any page has
// completed yet.
func (f *Fetcher) RateLimit() *RateLimitInfo { return f.rate }

// Issues returns every issue node visible to the viewer matching the
// label filter, across all pages.
func (f *Fetcher) Issues(ctx context.Context, labels []string) ([]IssueNode, error) {
	var (
		all        []IssueNode
		cursor     *githubv4.String
		emptyRetry bool
	)

	for {
		if err := f.throttle(ctx); err != nil {
			return nil, err
		}

		var q viewerIssuesQuery
		vars := map[string]interface{}{
			"pageSize": githubv4.Int(f.pageSize),
			"cursor":   cursor,
			"filterBy": issueFilter(labels),
		}
		if err := f.queryPage(ctx, "ViewerIssues", &q, vars); err != nil {
			return nil, err
		}
		f.observe("ViewerIssues", q.RateLimit)

		page := q.Viewer.Issues
		if len(page.Nodes) == 0 && page.PageInfo.HasNextPage {
			if emptyRetry {
				return nil, fmt.Errorf("ViewerIssues: %w", ErrEmptyPage)
			}
			emptyRetry = true
			f.log.Warn().Msg("empty page with hasNextPage set, retrying once")
			continue
		}

		all = append(all, page.Nodes...)
		if !page.PageInfo.HasNextPage {
			return all, nil
		}
		c := page.PageInfo.EndCursor
		cursor = &c
	}
}

// PullRequests returns every pull request node for the viewer matching
// the label filter, across all pages.
func (f *Fetcher) PullRequests(ctx context.Context, labels []string) ([]PullRequestNode, error) {
	var (
		all        []PullRequestNode
		cursor     *githubv4.String
		emptyRetry bool
	)

	for {
		if err := f.throttle(ctx); err != nil {
			return nil, err
		}

		var q viewerPullRequestsQuery
		vars := map[string]interface{}{
			"pageSize": githubv4.Int(f.pageSize),
			"cursor":   cursor,
			"labels":   labelList(labels),
		}
		if err := f.queryPage(ctx, "ViewerPullRequests", &q, vars); err != nil {
			return nil, err
		}
		f.observe("ViewerPullRequests", q.RateLimit)

		page := q.Viewer.PullRequests
		if len(page.Nodes) == 0 && page.PageInfo.HasNextPage {
			if emptyRetry {
				return nil, fmt.Errorf("ViewerPullRequests: %w", ErrEmptyPage)
			}
			emptyRetry = true
			f.log.Warn().Msg("empty page with hasNextPage set, retrying once")
			continue
		}

		all = append(all, page.Nodes...)
		if !page.PageInfo.HasNextPage {
			return all, nil
		}
		c := page.PageInfo.EndCursor
		cursor = &c
	}
}

// throttle suspends until the session has quota for another page. Not
// an error path: waiting out the reset is normal scheduling.
func (f *Fetcher) throttle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.rate == nil {
		return nil
	}

	cost := f.rate.Cost
	if cost < 1 {
		cost = 1
	}
	if f.rate.Remaining >= cost {
		return nil
	}

	wait := f.rate.ResetAt.Sub(f.now()) + resetSlack
	if wait <= 0 {
		return nil
	}

	f.log.Info().
		Dur("wait", wait).
		Time("reset_at", f.rate.ResetAt).
		Msg("rate limit exhausted, suspending until reset")
	return f.sleep(ctx, wait)
}

// queryPage runs one page request, retrying transport failures with
// exponential backoff up to the bound.
func (f *Fetcher) queryPage(ctx context.Context, name string, q interface{}, vars map[string]interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= backoffLimit; attempt++ {
		lastErr = f.client.Query(ctx, q, vars)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == backoffLimit {
			break
		}

		delay := backoffDelay(attempt, backoffBase, backoffMax)
		f.log.Warn().
			Err(lastErr).
			Str("query", name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("page request failed, backing off")
		if err := f.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", name, ErrBackoffExhausted, lastErr)
}

func (f *Fetcher) observe(name string, block rateLimitBlock) {
	info := RateLimitInfo{
		Cost:      block.Cost,
		Limit:     block.Limit,
		Remaining: block.Remaining,
		ResetAt:   block.ResetAt.Time,
	}
	f.rate = &info
	info.Inspect(f.log, name)
}

// backoffDelay is base * 2^(attempt-1) with up to 10% jitter, capped.
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := math.Pow(2, float64(attempt-1))
	if math.IsInf(multiplier, 1) || multiplier > float64(maxDelay)/float64(base) {
		return maxDelay + time.Duration(rand.Float64()*0.1*float64(maxDelay))
	}

	delay := base * time.Duration(multiplier)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay + time.Duration(rand.Float64()*0.1*float64(delay))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
