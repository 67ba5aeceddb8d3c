// Package sync orchestrates fetch, mapping, and reconciliation of
// remote items into local task directories.
package sync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/devtodo/internal/core/todo"
)

// Counts summarizes what reconciliation did to a set of items.
type Counts struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    int
}

func (c *Counts) add(o Counts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Unchanged += o.Unchanged
	c.Failed += o.Failed
}

// Reconcile applies one run's remote items to the store. Each item is
// matched by its URL identity: misses create a fresh entry, hits update
// source-owned fields in place, identical entries are not rewritten.
// Local entries with no matching remote item are never touched, since
// absence may only mean the item fell outside this run's filter.
//
// A failed write is local to that entry; the rest of the set continues.
func Reconcile(store *todo.Store, items []todo.RemoteItem, now time.Time, log zerolog.Logger) Counts {
	var counts Counts

	for _, item := range items {
		f, ok := store.Get(item.URL)
		if !ok {
			f = todo.Create(store.Dir(), item, now)
			if err := f.Flush(); err != nil {
				log.Error().Err(err).Str("url", item.URL).Msg("failed to create entry")
				counts.Failed++
				continue
			}
			store.Track(f)
			counts.Created++
			continue
		}

		if !f.Apply(item, now) {
			counts.Unchanged++
			continue
		}
		if err := f.Flush(); err != nil {
			log.Error().Err(err).Str("url", item.URL).Msg("failed to update entry")
			counts.Failed++
			continue
		}
		counts.Updated++
	}

	return counts
}
