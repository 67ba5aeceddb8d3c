package github

import (
	"net/url"
	"testing"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/devtodo/internal/core/todo"
)

func uri(t *testing.T, raw string) githubv4.URI {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return githubv4.URI{URL: u}
}

func gqlTime(t time.Time) *githubv4.DateTime {
	return &githubv4.DateTime{Time: t}
}

func issueNode(t *testing.T) IssueNode {
	n := IssueNode{
		Title:     "Fix the frobnicator",
		Body:      "It frobs when it should nicate.",
		URL:       uri(t, "https://github.com/myorg/myrepo/issues/42"),
		CreatedAt: githubv4.DateTime{Time: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)},
	}
	n.Repository.NameWithOwner = "myorg/myrepo"
	return n
}

func TestMapIssue_Minimal(t *testing.T) {
	item, err := MapIssue(issueNode(t))
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/myorg/myrepo/issues/42", item.URL)
	assert.Equal(t, todo.KindIssue, item.Kind)
	assert.Equal(t, "Fix the frobnicator", item.Title)
	assert.Equal(t, "myorg/myrepo", item.Repo)
	assert.Equal(t, todo.StateOpen, item.State)
	assert.Nil(t, item.ClosedAt)
	assert.Nil(t, item.Due)
	assert.Nil(t, item.Assignee)
	assert.Equal(t, todo.StatusNeedsAction, item.Status())
}

func TestMapIssue_RejectsMissingFields(t *testing.T) {
	n := issueNode(t)
	n.URL = githubv4.URI{}
	_, err := MapIssue(n)
	var mapErr *MapError
	require.ErrorAs(t, err, &mapErr)
	assert.Contains(t, mapErr.Reason, "no url")

	n = issueNode(t)
	n.Title = ""
	_, err = MapIssue(n)
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "https://github.com/myorg/myrepo/issues/42", mapErr.URL)
	assert.Contains(t, mapErr.Reason, "no title")
}

func TestMapIssue_FirstAssigneeSkipsNullPadding(t *testing.T) {
	n := issueNode(t)
	n.Assignees.Nodes = []*assigneeNode{
		nil,
		nil,
		{Login: "alice", Name: "Alice Smith"},
		{Login: "bob"},
	}

	item, err := MapIssue(n)
	require.NoError(t, err)
	require.NotNil(t, item.Assignee)
	assert.Equal(t, todo.Actor{Login: "alice", Display: "Alice Smith"}, *item.Assignee)
	assert.Equal(t, todo.StatusInProcess, item.Status())
}

func TestMapIssue_LabelsDedupedInOrder(t *testing.T) {
	n := issueNode(t)
	n.Labels.Nodes = []*labelNode{
		{Name: "bug"},
		nil,
		{Name: "urgent"},
		{Name: "bug"},
		{Name: ""},
	}

	item, err := MapIssue(n)
	require.NoError(t, err)
	assert.Equal(t, []string{"bug", "urgent"}, item.Labels)
}

func TestMapIssue_MilestoneDue(t *testing.T) {
	dueOn := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		milestone *milestoneNode
		want      *todo.Due
	}{
		{name: "no milestone", milestone: nil, want: nil},
		{name: "milestone without due date", milestone: &milestoneNode{}, want: nil},
		{
			name:      "milestone with due date",
			milestone: &milestoneNode{DueOn: gqlTime(dueOn)},
			want:      &todo.Due{Time: dueOn, DateOnly: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := issueNode(t)
			n.Milestone = tt.milestone

			item, err := MapIssue(n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.Due)
		})
	}
}

func TestMapIssue_ClosedAtOnlyWhenClosed(t *testing.T) {
	closed := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	n := issueNode(t)
	n.ClosedAt = gqlTime(closed)
	item, err := MapIssue(n)
	require.NoError(t, err)
	assert.Nil(t, item.ClosedAt, "stale closedAt on a reopened issue must be dropped")

	n.Closed = true
	item, err = MapIssue(n)
	require.NoError(t, err)
	require.NotNil(t, item.ClosedAt)
	assert.Equal(t, closed, *item.ClosedAt)
	assert.Equal(t, todo.StatusCompleted, item.Status())
}

func prNode(t *testing.T) PullRequestNode {
	n := PullRequestNode{
		Title:     "Add frobnicator",
		Body:      "",
		URL:       uri(t, "https://github.com/myorg/myrepo/pull/7"),
		CreatedAt: githubv4.DateTime{Time: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)},
	}
	n.Repository.NameWithOwner = "myorg/myrepo"
	return n
}

func TestMapPullRequest_StatusVocabulary(t *testing.T) {
	closed := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		closed bool
		merged bool
		want   todo.Status
	}{
		{name: "open", want: todo.StatusNeedsAction},
		{name: "merged", closed: true, merged: true, want: todo.StatusCompleted},
		{name: "closed unmerged", closed: true, want: todo.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := prNode(t)
			n.Closed = githubv4.Boolean(tt.closed)
			n.Merged = githubv4.Boolean(tt.merged)
			if tt.closed {
				n.ClosedAt = gqlTime(closed)
			}

			item, err := MapPullRequest(n)
			require.NoError(t, err)
			assert.Equal(t, todo.KindPullRequest, item.Kind)
			assert.Equal(t, tt.want, item.Status())
		})
	}
}

func TestMapPullRequest_Reviewers(t *testing.T) {
	n := prNode(t)

	user := reviewerNode{Typename: "User"}
	user.User.Login = "bob"
	user.User.Name = "Bob Brown"

	mannequin := reviewerNode{Typename: "Mannequin"}
	mannequin.Mannequin.Login = "import-ghost"
	mannequin.Mannequin.Email = "ghost@example.com"

	team := reviewerNode{Typename: "Team"}

	n.ReviewRequests.Nodes = []*struct{ RequestedReviewer reviewerNode }{
		{RequestedReviewer: user},
		nil,
		{RequestedReviewer: mannequin},
		{RequestedReviewer: team},
	}

	item, err := MapPullRequest(n)
	require.NoError(t, err)
	assert.Equal(t, []todo.Actor{
		{Login: "bob", Display: "Bob Brown"},
		{Login: "import-ghost", Display: "ghost@example.com"},
	}, item.Reviewers)
}
