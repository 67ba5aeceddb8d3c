package sync

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/devtodo/internal/core/config"
	"github.com/colonyops/devtodo/internal/core/github"
	"github.com/colonyops/devtodo/internal/core/todo"
)

// fakeFetcher returns canned nodes, failing a query type on demand.
type fakeFetcher struct {
	issues    []github.IssueNode
	prs       []github.PullRequestNode
	issuesErr error
	prsErr    error

	issueCalls int
	prCalls    int
}

func (f *fakeFetcher) Issues(_ context.Context, _ []string) ([]github.IssueNode, error) {
	f.issueCalls++
	return f.issues, f.issuesErr
}

func (f *fakeFetcher) PullRequests(_ context.Context, _ []string) ([]github.PullRequestNode, error) {
	f.prCalls++
	return f.prs, f.prsErr
}

func fakeIssue(t *testing.T, repo, number string) github.IssueNode {
	t.Helper()
	u, err := url.Parse("https://github.com/" + repo + "/issues/" + number)
	require.NoError(t, err)

	n := github.IssueNode{
		Title: githubv4.String("issue " + number),
		URL:   githubv4.URI{URL: u},
	}
	n.Repository.NameWithOwner = githubv4.String(repo)
	return n
}

func fakePR(t *testing.T, repo, number string) github.PullRequestNode {
	t.Helper()
	u, err := url.Parse("https://github.com/" + repo + "/pull/" + number)
	require.NoError(t, err)

	n := github.PullRequestNode{
		Title: githubv4.String("pr " + number),
		URL:   githubv4.URI{URL: u},
	}
	n.Repository.NameWithOwner = githubv4.String(repo)
	return n
}

func testService(t *testing.T, cfg *config.Config, fetchers map[string]*fakeFetcher) *Service {
	t.Helper()
	return &Service{
		cfg: cfg,
		log: zerolog.Nop(),
		now: func() time.Time { return testNow },
		newFetcher: func(_ context.Context, acct config.Account) (ItemFetcher, error) {
			f, ok := fetchers[acct.TokenEnv]
			if !ok {
				return nil, errors.New("no fake fetcher for account")
			}
			return f, nil
		},
	}
}

// testConfig builds one account and one target with a single profile.
// The account is keyed by its token_env so fakes can tell them apart.
func testConfig(t *testing.T, repos []string) *config.Config {
	t.Helper()
	return &config.Config{
		Accounts: map[string]config.Account{
			"work": {Service: config.ServiceGitHub, TokenEnv: "WORK_TOKEN"},
		},
		Targets: map[string]config.Target{
			"work": {
				Directory: t.TempDir(),
				Profiles: map[string]config.Profile{
					"default": {Account: "work", Repos: repos},
				},
			},
		},
		DefaultTargets: []string{"work"},
	}
}

func TestService_RunSyncsTarget(t *testing.T) {
	cfg := testConfig(t, nil)
	fetcher := &fakeFetcher{
		issues: []github.IssueNode{fakeIssue(t, "myorg/myrepo", "1"), fakeIssue(t, "myorg/myrepo", "2")},
		prs:    []github.PullRequestNode{fakePR(t, "myorg/myrepo", "7")},
	}

	svc := testService(t, cfg, map[string]*fakeFetcher{"WORK_TOKEN": fetcher})
	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report, 1)
	assert.False(t, report.Failed())
	assert.Equal(t, Counts{Created: 2}, report[0].Issues.Counts)
	assert.Equal(t, Counts{Created: 1}, report[0].PullRequests.Counts)

	store := todo.NewStore(cfg.Targets["work"].Directory, zerolog.Nop())
	require.NoError(t, store.Load())
	assert.Equal(t, 3, store.Len())
}

func TestService_RepoFilter(t *testing.T) {
	cfg := testConfig(t, []string{"myorg/**"})
	fetcher := &fakeFetcher{
		issues: []github.IssueNode{
			fakeIssue(t, "myorg/myrepo", "1"),
			fakeIssue(t, "otherorg/noise", "9"),
		},
	}

	svc := testService(t, cfg, map[string]*fakeFetcher{"WORK_TOKEN": fetcher})
	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, Counts{Created: 1}, report[0].Issues.Counts)
}

func TestService_QueryTypeFailureIsIsolated(t *testing.T) {
	boom := errors.New("rate limit retries exhausted")
	cfg := testConfig(t, nil)
	fetcher := &fakeFetcher{
		issuesErr: boom,
		prs:       []github.PullRequestNode{fakePR(t, "myorg/myrepo", "7")},
	}

	svc := testService(t, cfg, map[string]*fakeFetcher{"WORK_TOKEN": fetcher})
	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report, 1)
	assert.ErrorIs(t, report[0].Issues.Err, boom)
	assert.NoError(t, report[0].PullRequests.Err)
	assert.Equal(t, Counts{Created: 1}, report[0].PullRequests.Counts)
	assert.True(t, report.Failed())
}

func TestService_UnmappableNodesAreSkipped(t *testing.T) {
	cfg := testConfig(t, nil)
	broken := github.IssueNode{Title: "no url"}
	fetcher := &fakeFetcher{
		issues: []github.IssueNode{broken, fakeIssue(t, "myorg/myrepo", "1")},
	}

	svc := testService(t, cfg, map[string]*fakeFetcher{"WORK_TOKEN": fetcher})
	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, report.Failed(), "a rejected node must not fail the query type")
	assert.Equal(t, Counts{Created: 1}, report[0].Issues.Counts)
	require.Len(t, report[0].Issues.MapErrors, 1)

	var mapErr *github.MapError
	assert.ErrorAs(t, report[0].Issues.MapErrors[0], &mapErr)
}

func TestService_DuplicateIdentityAcrossProfiles(t *testing.T) {
	cfg := testConfig(t, nil)

	// Second profile on the same account; overlapping result sets must
	// reconcile once.
	target := cfg.Targets["work"]
	target.Profiles["urgent"] = config.Profile{Account: "work", Labels: []string{"urgent"}}
	cfg.Targets["work"] = target

	fetcher := &fakeFetcher{
		issues: []github.IssueNode{fakeIssue(t, "myorg/myrepo", "1")},
	}

	svc := testService(t, cfg, map[string]*fakeFetcher{"WORK_TOKEN": fetcher})
	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, Counts{Created: 1}, report[0].Issues.Counts)
	assert.Equal(t, 2, fetcher.issueCalls, "one fetch per profile")
}

func TestService_RunErrors(t *testing.T) {
	svc := testService(t, &config.Config{}, nil)
	_, err := svc.Run(context.Background(), nil)
	assert.ErrorContains(t, err, "no sync targets")

	svc = testService(t, testConfig(t, nil), map[string]*fakeFetcher{"WORK_TOKEN": {}})
	_, err = svc.Run(context.Background(), []string{"nope"})
	assert.ErrorContains(t, err, `unknown target "nope"`)
}

func TestService_LockedTargetReportsError(t *testing.T) {
	cfg := testConfig(t, nil)

	holder := todo.NewStore(cfg.Targets["work"].Directory, zerolog.Nop())
	require.NoError(t, holder.Acquire())
	defer holder.Release()

	svc := testService(t, cfg, map[string]*fakeFetcher{"WORK_TOKEN": {}})
	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report, 1)
	assert.Error(t, report[0].Err)
	assert.True(t, report.Failed())
}
