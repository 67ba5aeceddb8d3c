package github

import (
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/colonyops/devtodo/internal/core/todo"
)

// MapError reports a single node the mapper had to reject. Sibling
// nodes in the same page are unaffected.
type MapError struct {
	URL    string
	Reason string
}

func (e *MapError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("rejected remote item: %s", e.Reason)
	}
	return fmt.Sprintf("rejected %s: %s", e.URL, e.Reason)
}

// MapIssue translates one raw issue node into the canonical model.
// Pure: no I/O, deterministic for the same input.
func MapIssue(n IssueNode) (todo.RemoteItem, error) {
	url := nodeURL(n.URL)
	if url == "" {
		return todo.RemoteItem{}, &MapError{Reason: "issue node has no url"}
	}
	if n.Title == "" {
		return todo.RemoteItem{}, &MapError{URL: url, Reason: "issue node has no title"}
	}

	item := todo.RemoteItem{
		URL:          url,
		Kind:         todo.KindIssue,
		Title:        string(n.Title),
		Body:         string(n.Body),
		Repo:         string(n.Repository.NameWithOwner),
		Labels:       labelNames(n.Labels.Nodes),
		State:        itemState(bool(n.Closed)),
		CreatedAt:    n.CreatedAt.Time,
		ClosedAt:     closedAt(bool(n.Closed), n.ClosedAt),
		LastEditedAt: optionalTime(n.LastEditedAt),
		Due:          milestoneDue(n.Milestone),
		Assignee:     firstAssignee(n.Assignees.Nodes),
	}
	return item, nil
}

// MapPullRequest translates one raw pull request node into the
// canonical model.
func MapPullRequest(n PullRequestNode) (todo.RemoteItem, error) {
	url := nodeURL(n.URL)
	if url == "" {
		return todo.RemoteItem{}, &MapError{Reason: "pull request node has no url"}
	}
	if n.Title == "" {
		return todo.RemoteItem{}, &MapError{URL: url, Reason: "pull request node has no title"}
	}

	item := todo.RemoteItem{
		URL:          url,
		Kind:         todo.KindPullRequest,
		Title:        string(n.Title),
		Body:         string(n.Body),
		Repo:         string(n.Repository.NameWithOwner),
		Labels:       labelNames(n.Labels.Nodes),
		State:        itemState(bool(n.Closed)),
		Merged:       bool(n.Merged),
		CreatedAt:    n.CreatedAt.Time,
		ClosedAt:     closedAt(bool(n.Closed), n.ClosedAt),
		LastEditedAt: optionalTime(n.LastEditedAt),
		Due:          milestoneDue(n.Milestone),
		Assignee:     firstAssignee(n.Assignees.Nodes),
		Reviewers:    reviewers(n.ReviewRequests.Nodes),
	}
	return item, nil
}

func nodeURL(u githubv4.URI) string {
	if u.URL == nil {
		return ""
	}
	return u.URL.String()
}

func itemState(closed bool) todo.State {
	if closed {
		return todo.StateClosed
	}
	return todo.StateOpen
}

// closedAt is populated only when the item is actually closed.
func closedAt(closed bool, t *githubv4.DateTime) *time.Time {
	if !closed {
		return nil
	}
	return optionalTime(t)
}

func optionalTime(t *githubv4.DateTime) *time.Time {
	if t == nil {
		return nil
	}
	tt := t.Time
	return &tt
}

// milestoneDue derives a due date only from a milestone that carries
// one. A milestone without a due date yields no due date.
func milestoneDue(m *milestoneNode) *todo.Due {
	if m == nil || m.DueOn == nil {
		return nil
	}
	return &todo.Due{Time: m.DueOn.Time.UTC(), DateOnly: true}
}

// labelNames projects label names, dropping null-padded entries.
func labelNames(nodes []*labelNode) []string {
	var names []string
	seen := make(map[string]bool)
	for _, n := range nodes {
		if n == nil || n.Name == "" || seen[string(n.Name)] {
			continue
		}
		seen[string(n.Name)] = true
		names = append(names, string(n.Name))
	}
	return names
}

// firstAssignee picks the first non-null entry; the rest of the list
// only exists to tolerate null padding in the response.
func firstAssignee(nodes []*assigneeNode) *todo.Actor {
	for _, n := range nodes {
		if n == nil || n.Login == "" {
			continue
		}
		return &todo.Actor{Login: string(n.Login), Display: string(n.Name)}
	}
	return nil
}

// reviewers resolves the polymorphic reviewer union. Unrecognized actor
// types are skipped for forward compatibility with schema additions.
func reviewers(nodes []*struct{ RequestedReviewer reviewerNode }) []todo.Actor {
	var out []todo.Actor
	for _, n := range nodes {
		if n == nil {
			continue
		}
		switch n.RequestedReviewer.Typename {
		case "User":
			out = append(out, todo.Actor{
				Login:   string(n.RequestedReviewer.User.Login),
				Display: string(n.RequestedReviewer.User.Name),
			})
		case "Mannequin":
			out = append(out, todo.Actor{
				Login:   string(n.RequestedReviewer.Mannequin.Login),
				Display: string(n.RequestedReviewer.Mannequin.Email),
			})
		}
	}
	return out
}
