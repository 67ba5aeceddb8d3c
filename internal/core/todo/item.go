// Package todo defines the canonical task model and the on-disk VTODO store.
package todo

import (
	"time"
)

// Kind classifies where a remote item came from.
type Kind string

const (
	KindIssue       Kind = "issue"
	KindPullRequest Kind = "pull-request"
)

// allKinds lists every kind category we may have written to a file.
// Used to separate our kind marker from other categories.
var allKinds = []Kind{KindIssue, KindPullRequest}

// State is the remote lifecycle state of an item.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Status is the VTODO STATUS vocabulary.
type Status string

const (
	StatusNeedsAction Status = "NEEDS-ACTION"
	StatusInProcess   Status = "IN-PROCESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
)

// validStatuses guards parsing of the STATUS property.
var validStatuses = map[Status]bool{
	StatusNeedsAction: true,
	StatusInProcess:   true,
	StatusCompleted:   true,
	StatusCancelled:   true,
}

const (
	// DateTimeLayout is the ical UTC date-time format.
	DateTimeLayout = "20060102T150405Z"
	// DateLayout is the ical date-only format.
	DateLayout = "20060102"
)

// Due is a due point that is either a whole day or an exact time.
type Due struct {
	Time     time.Time
	DateOnly bool
}

// String renders the due point in its ical form.
func (d Due) String() string {
	if d.DateOnly {
		return d.Time.UTC().Format(DateLayout)
	}
	return d.Time.UTC().Format(DateTimeLayout)
}

// ParseDue parses either ical form, trying date-time first.
func ParseDue(s string) (Due, bool) {
	if t, err := time.Parse(DateTimeLayout, s); err == nil {
		return Due{Time: t}, true
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Due{Time: t, DateOnly: true}, true
	}
	return Due{}, false
}

// Actor is a normalized remote identity. Display holds whatever the
// remote could offer: a full name for registered users, an email for
// mannequin actors. May be empty.
type Actor struct {
	Login   string
	Display string
}

// RemoteItem is the canonical, source-agnostic representation of a
// fetched issue or pull request. Produced by a mapper, consumed by the
// reconciler; it has no identity beyond a single sync run.
type RemoteItem struct {
	// URL doubles as the item's stable identity for matching against
	// existing local entries.
	URL   string
	Kind  Kind
	Title string
	Body  string

	// Repo is the owner/name pair, used only for client-side filtering.
	Repo string

	Labels []string
	State  State
	// Merged distinguishes a merged pull request from one closed
	// without merging. Always false for issues.
	Merged bool

	CreatedAt    time.Time
	ClosedAt     *time.Time
	LastEditedAt *time.Time

	Due      *Due
	Assignee *Actor
	// Reviewers is ordered as the remote reported it. Pull requests only.
	Reviewers []Actor
}

// Status derives the VTODO status this item maps to. Open items are
// IN-PROCESS once assigned, NEEDS-ACTION otherwise. Closed pull
// requests complete only when merged.
func (r RemoteItem) Status() Status {
	if r.State == StateClosed {
		if r.Kind == KindPullRequest && !r.Merged {
			return StatusCancelled
		}
		return StatusCompleted
	}
	if r.Assignee != nil {
		return StatusInProcess
	}
	return StatusNeedsAction
}
