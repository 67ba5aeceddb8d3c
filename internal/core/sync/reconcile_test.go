package sync

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/devtodo/internal/core/todo"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testItem(n int) todo.RemoteItem {
	return todo.RemoteItem{
		URL:       "https://github.com/myorg/myrepo/issues/" + string(rune('0'+n)),
		Kind:      todo.KindIssue,
		Title:     "issue number " + string(rune('0'+n)),
		State:     todo.StateOpen,
		CreatedAt: testNow.Add(-24 * time.Hour),
	}
}

func loadedStore(t *testing.T, dir string) *todo.Store {
	t.Helper()
	store := todo.NewStore(dir, zerolog.Nop())
	require.NoError(t, store.Acquire())
	t.Cleanup(store.Release)
	require.NoError(t, store.Load())
	return store
}

func TestReconcile_CreateThenUnchanged(t *testing.T) {
	dir := t.TempDir()
	items := []todo.RemoteItem{testItem(1), testItem(2)}

	store := loadedStore(t, dir)
	counts := Reconcile(store, items, testNow, zerolog.Nop())
	assert.Equal(t, Counts{Created: 2}, counts)

	// A second run over a fresh load must not rewrite anything.
	store = todo.NewStore(dir, zerolog.Nop())
	require.NoError(t, store.Load())
	counts = Reconcile(store, items, testNow.Add(time.Hour), zerolog.Nop())
	assert.Equal(t, Counts{Unchanged: 2}, counts)
}

func TestReconcile_UpdatesChangedItems(t *testing.T) {
	dir := t.TempDir()
	items := []todo.RemoteItem{testItem(1), testItem(2)}

	store := loadedStore(t, dir)
	Reconcile(store, items, testNow, zerolog.Nop())

	items[0].Title = "renamed upstream"

	store = todo.NewStore(dir, zerolog.Nop())
	require.NoError(t, store.Load())
	counts := Reconcile(store, items, testNow.Add(time.Hour), zerolog.Nop())
	assert.Equal(t, Counts{Updated: 1, Unchanged: 1}, counts)

	f, ok := store.Get(items[0].URL)
	require.True(t, ok)
	assert.Equal(t, "renamed upstream", f.Summary())
}

func TestReconcile_UnmatchedLocalsUntouched(t *testing.T) {
	dir := t.TempDir()

	store := loadedStore(t, dir)
	Reconcile(store, []todo.RemoteItem{testItem(1)}, testNow, zerolog.Nop())

	f, ok := store.Get(testItem(1).URL)
	require.True(t, ok)
	before, err := os.ReadFile(f.Path())
	require.NoError(t, err)

	// The next run's result set no longer contains the item, whether
	// because of a filter change or upstream deletion. Either way the
	// local entry stays exactly as it was.
	store = todo.NewStore(dir, zerolog.Nop())
	require.NoError(t, store.Load())
	counts := Reconcile(store, []todo.RemoteItem{testItem(2)}, testNow.Add(time.Hour), zerolog.Nop())
	assert.Equal(t, Counts{Created: 1}, counts)

	after, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconcile_SameRunMatchesFreshEntries(t *testing.T) {
	store := loadedStore(t, t.TempDir())

	// The same identity twice in one run: the second occurrence must
	// match the entry created moments earlier, not duplicate it.
	items := []todo.RemoteItem{testItem(1), testItem(1)}
	counts := Reconcile(store, items, testNow, zerolog.Nop())

	assert.Equal(t, Counts{Created: 1, Unchanged: 1}, counts)
	assert.Equal(t, 1, store.Len())
}
