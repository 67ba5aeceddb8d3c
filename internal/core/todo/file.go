package todo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const (
	// prodIDPrefix identifies files we own. Files carrying any other
	// PRODID are never touched.
	prodIDPrefix = "-//IDN colonyops//devtodo"
	prodID       = prodIDPrefix + "//EN"

	// Extension is the file suffix for task entries.
	Extension = ".ics"

	propAssignee = "X-DEVTODO-ASSIGNEE"
	propReviewer = "X-DEVTODO-REVIEWER"
	paramDisplay = "CN"
)

// ErrNotManaged marks a calendar file that exists in the sync directory
// but was not written by us. Callers skip these without rewriting them.
var ErrNotManaged = errors.New("not a devtodo-managed calendar file")

// File is one on-disk VTODO entry. The underlying calendar document is
// kept as parsed so that properties we do not manage survive rewrites.
type File struct {
	path  string
	cal   *ical.Calendar
	vtodo *ical.Component
	dirty bool
}

// Create builds a new entry for item under dir with a freshly minted
// UID. The file is not written until Flush.
func Create(dir string, item RemoteItem, now time.Time) *File {
	uid := uuid.NewString()

	vtodo := ical.NewComponent(ical.CompToDo)
	setRaw(vtodo.Props, ical.PropDateTimeStamp, now.UTC().Format(DateTimeLayout))
	vtodo.Props.SetText(ical.PropUID, uid)
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}
	setRaw(vtodo.Props, ical.PropCreated, created.UTC().Format(DateTimeLayout))
	setRaw(vtodo.Props, ical.PropClass, "CONFIDENTIAL")

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Children = append(cal.Children, vtodo)

	f := &File{
		path:  filepath.Join(dir, uid+Extension),
		cal:   cal,
		vtodo: vtodo,
		dirty: true,
	}
	f.Apply(item, now)
	return f
}

// Open parses an existing entry. Returns ErrNotManaged for calendar
// files that do not carry our PRODID or do not hold exactly one VTODO.
func Open(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cal, err := ical.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	id, err := cal.Props.Text(ical.PropProductID)
	if err != nil || !strings.HasPrefix(id, prodIDPrefix) {
		return nil, ErrNotManaged
	}
	if len(cal.Children) != 1 || cal.Children[0].Name != ical.CompToDo {
		return nil, ErrNotManaged
	}

	vtodo := cal.Children[0]
	if text(vtodo.Props, ical.PropUID) == "" {
		return nil, ErrNotManaged
	}

	return &File{path: path, cal: cal, vtodo: vtodo}, nil
}

func (f *File) Path() string { return f.path }

// Dirty reports whether the in-memory entry differs from disk.
func (f *File) Dirty() bool { return f.dirty }

func (f *File) UID() string { return text(f.vtodo.Props, ical.PropUID) }

// URL is the remote identity this entry tracks.
func (f *File) URL() string { return rawValue(f.vtodo.Props, ical.PropURL) }

func (f *File) Summary() string     { return text(f.vtodo.Props, ical.PropSummary) }
func (f *File) Description() string { return text(f.vtodo.Props, ical.PropDescription) }

func (f *File) Status() Status {
	s := Status(rawValue(f.vtodo.Props, ical.PropStatus))
	if !validStatuses[s] {
		return ""
	}
	return s
}

// Due returns the entry's due point, if any.
func (f *File) Due() (Due, bool) {
	v := rawValue(f.vtodo.Props, ical.PropDue)
	if v == "" {
		return Due{}, false
	}
	return ParseDue(v)
}

// Categories returns the raw category list, our kind marker included.
func (f *File) Categories() []string {
	v := rawValue(f.vtodo.Props, ical.PropCategories)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// Kind returns the kind category recorded on the entry, if any.
func (f *File) Kind() (Kind, bool) {
	for _, c := range f.Categories() {
		if slices.Contains(allKinds, Kind(c)) {
			return Kind(c), true
		}
	}
	return "", false
}

// Assignee returns the tracked assignee, if any.
func (f *File) Assignee() (Actor, bool) {
	p := f.vtodo.Props.Get(propAssignee)
	if p == nil {
		return Actor{}, false
	}
	return Actor{Login: p.Value, Display: p.Params.Get(paramDisplay)}, true
}

// Reviewers returns the tracked reviewer list in stored order.
func (f *File) Reviewers() []Actor {
	props := f.vtodo.Props[propReviewer]
	if len(props) == 0 {
		return nil
	}
	actors := make([]Actor, 0, len(props))
	for _, p := range props {
		actors = append(actors, Actor{Login: p.Value, Display: p.Params.Get(paramDisplay)})
	}
	return actors
}

// Apply updates every source-owned property from item and reports
// whether anything changed. Properties the user owns (completion of
// still-open items, arbitrary extra properties) are left alone.
func (f *File) Apply(item RemoteItem, now time.Time) bool {
	changed := false

	if f.Summary() != item.Title {
		f.vtodo.Props.SetText(ical.PropSummary, item.Title)
		changed = true
	}

	// CRs do not survive the ical round trip, so they never enter it.
	body := strings.ReplaceAll(item.Body, "\r", "")
	if f.Description() != body {
		f.vtodo.Props.SetText(ical.PropDescription, body)
		changed = true
	}

	if f.URL() != item.URL {
		setRaw(f.vtodo.Props, ical.PropURL, item.URL)
		changed = true
	}

	changed = f.applyDue(item.Due) || changed
	changed = f.applyCategories(item) || changed
	changed = f.applyStatus(item, now) || changed
	changed = f.applyActors(item) || changed

	if changed {
		mod := now
		if item.LastEditedAt != nil && item.LastEditedAt.After(mod) {
			mod = *item.LastEditedAt
		}
		setRaw(f.vtodo.Props, ical.PropLastModified, mod.UTC().Format(DateTimeLayout))
		f.dirty = true
	}

	return changed
}

func (f *File) applyDue(due *Due) bool {
	current := rawValue(f.vtodo.Props, ical.PropDue)
	if due == nil {
		if current == "" {
			return false
		}
		f.vtodo.Props.Del(ical.PropDue)
		return true
	}
	if current == due.String() {
		return false
	}
	setRaw(f.vtodo.Props, ical.PropDue, due.String())
	return true
}

// applyCategories rewrites CATEGORIES as the kind marker followed by
// the sorted label set.
func (f *File) applyCategories(item RemoteItem) bool {
	labels := slices.Clone(item.Labels)
	slices.Sort(labels)
	labels = slices.Compact(labels)

	want := append([]string{string(item.Kind)}, labels...)
	if slices.Equal(f.Categories(), want) {
		return false
	}
	setRaw(f.vtodo.Props, ical.PropCategories, strings.Join(want, ","))
	return true
}

// applyStatus moves the entry toward the remote state. A local
// COMPLETED or CANCELLED mark on a still-open item belongs to the user
// and is never downgraded; a remote close always wins.
func (f *File) applyStatus(item RemoteItem, now time.Time) bool {
	target := item.Status()
	current := f.Status()

	if item.State == StateClosed {
		changed := false
		if current != target {
			setRaw(f.vtodo.Props, ical.PropStatus, string(target))
			changed = true
		}
		if f.vtodo.Props.Get(ical.PropCompleted) == nil {
			done := now
			if item.ClosedAt != nil {
				done = *item.ClosedAt
			}
			setRaw(f.vtodo.Props, ical.PropCompleted, done.UTC().Format(DateTimeLayout))
			changed = true
		}
		return changed
	}

	if current == StatusCompleted || current == StatusCancelled {
		return false
	}
	if current == target {
		return false
	}
	setRaw(f.vtodo.Props, ical.PropStatus, string(target))
	return true
}

func (f *File) applyActors(item RemoteItem) bool {
	changed := false

	cur, ok := f.Assignee()
	switch {
	case item.Assignee == nil && ok:
		f.vtodo.Props.Del(propAssignee)
		changed = true
	case item.Assignee != nil && (!ok || cur != *item.Assignee):
		f.vtodo.Props.Set(actorProp(propAssignee, *item.Assignee))
		changed = true
	}

	if !slices.Equal(f.Reviewers(), item.Reviewers) {
		f.vtodo.Props.Del(propReviewer)
		for _, r := range item.Reviewers {
			f.vtodo.Props.Add(actorProp(propReviewer, r))
		}
		changed = true
	}

	return changed
}

// Flush writes the entry if it changed since load. The write is atomic:
// a temp file in the same directory replaced over the target, so a
// crashed run never leaves a half-written entry.
func (f *File) Flush() error {
	if !f.dirty {
		return nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(f.cal); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".devtodo-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", f.path, err)
	}

	f.dirty = false
	return nil
}

func actorProp(name string, a Actor) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = a.Login
	if a.Display != "" {
		p.Params.Set(paramDisplay, a.Display)
	}
	return p
}

// setRaw stores a property value verbatim, for values that must not go
// through text escaping (dates, URLs, category lists).
func setRaw(props ical.Props, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	props.Set(p)
}

func rawValue(props ical.Props, name string) string {
	if p := props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

func text(props ical.Props, name string) string {
	s, err := props.Text(name)
	if err != nil {
		return ""
	}
	return s
}
