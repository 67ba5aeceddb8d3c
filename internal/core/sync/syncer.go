package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/devtodo/internal/core/config"
	"github.com/colonyops/devtodo/internal/core/github"
	"github.com/colonyops/devtodo/internal/core/todo"
)

// ItemFetcher is one account's fetch session. The two query types share
// the account's quota and are called sequentially by the service.
type ItemFetcher interface {
	Issues(ctx context.Context, labels []string) ([]github.IssueNode, error)
	PullRequests(ctx context.Context, labels []string) ([]github.PullRequestNode, error)
}

// FetcherFactory builds a fetch session for an account. Swapped out in
// tests.
type FetcherFactory func(ctx context.Context, acct config.Account) (ItemFetcher, error)

// QueryReport is the outcome for one query type of one target. Err is
// fatal: the query type's result set is incomplete and the run must not
// report success for it. MapErrors are per-node rejects; the rest of
// the set still synced.
type QueryReport struct {
	Counts
	MapErrors []error
	Err       error
}

// TargetReport is the outcome for one sync target.
type TargetReport struct {
	Target       string
	Issues       QueryReport
	PullRequests QueryReport
	// Err is a target-level failure (lock contention, unreadable
	// directory) that prevented any reconciliation.
	Err error
}

// Failed reports whether any part of the target failed entirely.
func (t TargetReport) Failed() bool {
	return t.Err != nil || t.Issues.Err != nil || t.PullRequests.Err != nil
}

// Report is the outcome of a whole run.
type Report []TargetReport

// Failed reports whether any target failed entirely.
func (r Report) Failed() bool {
	for _, t := range r {
		if t.Failed() {
			return true
		}
	}
	return false
}

// Service runs sync operations against the configured targets.
type Service struct {
	cfg        *config.Config
	log        zerolog.Logger
	newFetcher FetcherFactory
	now        func() time.Time
}

// NewService creates a sync service with the real GitHub fetcher.
func NewService(cfg *config.Config, logger zerolog.Logger) *Service {
	s := &Service{
		cfg: cfg,
		log: logger.With().Str("component", "sync").Logger(),
		now: time.Now,
	}
	s.newFetcher = func(ctx context.Context, acct config.Account) (ItemFetcher, error) {
		token, err := acct.ResolveToken()
		if err != nil {
			return nil, err
		}
		return github.NewFetcher(github.NewClient(ctx, acct.Hostname, token), s.log), nil
	}
	return s
}

// Run syncs the named targets, or the configured defaults when names is
// empty. Targets are independent directories and sync concurrently;
// writes within one directory stay single-threaded.
func (s *Service) Run(ctx context.Context, names []string) (Report, error) {
	if len(names) == 0 {
		names = s.cfg.DefaultTargets
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no sync targets configured")
	}

	targets := make([]config.Target, 0, len(names))
	for _, name := range names {
		target, ok := s.cfg.Targets[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q", name)
		}
		targets = append(targets, target)
	}

	report := make(Report, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i := range names {
		g.Go(func() error {
			report[i] = s.syncTarget(ctx, names[i], targets[i])
			return nil
		})
	}
	// Failures are carried in the report, not as group errors, so one
	// target cannot cancel another's partial sync.
	_ = g.Wait()

	return report, nil
}

func (s *Service) syncTarget(ctx context.Context, name string, target config.Target) TargetReport {
	report := TargetReport{Target: name}
	log := s.log.With().Str("target", name).Logger()

	store := todo.NewStore(target.Directory, log)
	if err := store.Acquire(); err != nil {
		report.Err = err
		return report
	}
	defer store.Release()

	if err := store.Load(); err != nil {
		report.Err = err
		return report
	}

	// One fetch session per account: quota tracking is scoped to the
	// session and must not be shared across accounts.
	fetchers := make(map[string]ItemFetcher)
	fetcher := func(acctName string) (ItemFetcher, error) {
		if f, ok := fetchers[acctName]; ok {
			return f, nil
		}
		f, err := s.newFetcher(ctx, s.cfg.Accounts[acctName])
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", acctName, err)
		}
		fetchers[acctName] = f
		return f, nil
	}

	var (
		issueItems []todo.RemoteItem
		prItems    []todo.RemoteItem
		seen       = make(map[string]bool)
	)

	for _, pname := range sortedKeys(target.Profiles) {
		profile := target.Profiles[pname]
		plog := log.With().Str("profile", pname).Logger()

		f, err := fetcher(profile.Account)
		if err != nil {
			report.Issues.Err = err
			report.PullRequests.Err = err
			continue
		}

		if report.Issues.Err == nil {
			nodes, err := f.Issues(ctx, profile.Labels)
			if err != nil {
				plog.Error().Err(err).Msg("issue fetch failed, result set incomplete")
				report.Issues.Err = err
			} else {
				for _, n := range nodes {
					item, err := github.MapIssue(n)
					if err != nil {
						plog.Warn().Err(err).Msg("skipping unmappable issue")
						report.Issues.MapErrors = append(report.Issues.MapErrors, err)
						continue
					}
					if !repoMatch(profile.Repos, item.Repo) || seen[item.URL] {
						continue
					}
					seen[item.URL] = true
					issueItems = append(issueItems, item)
				}
			}
		}

		if report.PullRequests.Err == nil {
			nodes, err := f.PullRequests(ctx, profile.Labels)
			if err != nil {
				plog.Error().Err(err).Msg("pull request fetch failed, result set incomplete")
				report.PullRequests.Err = err
			} else {
				for _, n := range nodes {
					item, err := github.MapPullRequest(n)
					if err != nil {
						plog.Warn().Err(err).Msg("skipping unmappable pull request")
						report.PullRequests.MapErrors = append(report.PullRequests.MapErrors, err)
						continue
					}
					if !repoMatch(profile.Repos, item.Repo) || seen[item.URL] {
						continue
					}
					seen[item.URL] = true
					prItems = append(prItems, item)
				}
			}
		}
	}

	// Reconciliation is idempotent per item, so a partial fetch (one
	// query type failed) still safely applies what was mapped.
	now := s.now()
	report.Issues.Counts.add(Reconcile(store, issueItems, now, log))
	report.PullRequests.Counts.add(Reconcile(store, prItems, now, log))

	return report
}

// repoMatch applies the profile's owner/name glob filters. No patterns
// means everything matches.
func repoMatch(patterns []string, repo string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, repo); err == nil && ok {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
