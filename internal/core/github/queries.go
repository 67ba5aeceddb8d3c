// Package github fetches the viewer's issues and pull requests over the
// GitHub GraphQL API and maps them into canonical todo items.
package github

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
)

// pageInfo is the relay pagination block shared by both queries.
type pageInfo struct {
	EndCursor   githubv4.String
	HasNextPage bool
}

// rateLimitBlock mirrors the server-reported quota attached to every
// page response.
type rateLimitBlock struct {
	Cost      int
	Limit     int
	Remaining int
	ResetAt   githubv4.DateTime
}

// RateLimitInfo is the per-session quota state, passed explicitly
// between page requests so concurrent sessions cannot corrupt each
// other's tracking.
type RateLimitInfo struct {
	Cost      int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Inspect logs quota proximity at a level escalating as it runs out.
func (r RateLimitInfo) Inspect(log zerolog.Logger, query string) {
	ev := log.Debug()
	switch {
	case r.Remaining == 0:
		ev = log.Error()
	case r.Remaining <= 100:
		ev = log.Warn()
	case r.Remaining <= 1000:
		ev = log.Info()
	}
	ev.Str("query", query).
		Int("remaining", r.Remaining).
		Int("limit", r.Limit).
		Int("cost", r.Cost).
		Time("reset_at", r.ResetAt).
		Msg("rate limit")
}

// labelNode entries may come back null in a padded response.
type labelNode struct {
	Name githubv4.String
}

// assigneeNode entries may come back null in a padded response.
type assigneeNode struct {
	Login githubv4.String
	Name  githubv4.String
}

// reviewerNode resolves the polymorphic RequestedReviewer union. Only
// User and Mannequin are understood; any other actor type leaves both
// branches empty and is skipped at mapping time.
type reviewerNode struct {
	Typename githubv4.String `graphql:"__typename"`
	User     struct {
		Login githubv4.String
		Name  githubv4.String
	} `graphql:"... on User"`
	Mannequin struct {
		Login githubv4.String
		Email githubv4.String
	} `graphql:"... on Mannequin"`
}

type milestoneNode struct {
	DueOn *githubv4.DateTime
}

type repositoryNode struct {
	NameWithOwner githubv4.String
}

// IssueNode is the raw issue payload for one node.
type IssueNode struct {
	Title        githubv4.String
	Body         githubv4.String
	URL          githubv4.URI
	Closed       githubv4.Boolean
	ClosedAt     *githubv4.DateTime
	CreatedAt    githubv4.DateTime
	LastEditedAt *githubv4.DateTime
	Repository   repositoryNode
	Milestone    *milestoneNode
	Labels       struct {
		Nodes []*labelNode
	} `graphql:"labels(first: 50)"`
	Assignees struct {
		Nodes []*assigneeNode
	} `graphql:"assignees(first: 10)"`
}

// PullRequestNode is the raw pull request payload for one node.
type PullRequestNode struct {
	Title        githubv4.String
	Body         githubv4.String
	URL          githubv4.URI
	Closed       githubv4.Boolean
	Merged       githubv4.Boolean
	ClosedAt     *githubv4.DateTime
	CreatedAt    githubv4.DateTime
	LastEditedAt *githubv4.DateTime
	Repository   repositoryNode
	Milestone    *milestoneNode
	Labels       struct {
		Nodes []*labelNode
	} `graphql:"labels(first: 50)"`
	Assignees struct {
		Nodes []*assigneeNode
	} `graphql:"assignees(first: 10)"`
	ReviewRequests struct {
		Nodes []*struct {
			RequestedReviewer reviewerNode
		}
	} `graphql:"reviewRequests(first: 10)"`
}

// viewerIssuesQuery pages through every issue visible to the viewer,
// optionally narrowed by labels.
type viewerIssuesQuery struct {
	Viewer struct {
		Issues struct {
			Nodes    []IssueNode
			PageInfo pageInfo
		} `graphql:"issues(first: $pageSize, after: $cursor, filterBy: $filterBy, states: [OPEN, CLOSED])"`
	}
	RateLimit rateLimitBlock `graphql:"rateLimit"`
}

// viewerPullRequestsQuery pages through the viewer's pull requests.
type viewerPullRequestsQuery struct {
	Viewer struct {
		PullRequests struct {
			Nodes    []PullRequestNode
			PageInfo pageInfo
		} `graphql:"pullRequests(first: $pageSize, after: $cursor, labels: $labels, states: [OPEN, CLOSED, MERGED])"`
	}
	RateLimit rateLimitBlock `graphql:"rateLimit"`
}

func issueFilter(labels []string) githubv4.IssueFilters {
	if len(labels) == 0 {
		return githubv4.IssueFilters{}
	}
	gl := make([]githubv4.String, 0, len(labels))
	for _, l := range labels {
		gl = append(gl, githubv4.String(l))
	}
	return githubv4.IssueFilters{Labels: &gl}
}

func labelList(labels []string) *[]githubv4.String {
	if len(labels) == 0 {
		return nil
	}
	gl := make([]githubv4.String, 0, len(labels))
	for _, l := range labels {
		gl = append(gl, githubv4.String(l))
	}
	return &gl
}
