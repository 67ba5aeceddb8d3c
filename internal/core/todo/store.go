package todo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/devtodo/pkg/flock"
)

// lockName is the advisory lock file kept next to the entries.
const lockName = ".devtodo.lock"

// Store owns one directory of VTODO entries. It is the only component
// that touches the directory; callers serialize writes by holding the
// store for the duration of a run.
type Store struct {
	dir  string
	log  zerolog.Logger
	lock *os.File

	files []*File
	byURL map[string]*File
}

// NewStore returns a store for dir. Call Acquire before Load or any
// write so that concurrent runs cannot interleave.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:   dir,
		log:   logger.With().Str("dir", dir).Logger(),
		byURL: make(map[string]*File),
	}
}

// Dir returns the directory this store owns.
func (s *Store) Dir() string { return s.dir }

// Acquire creates the directory if needed and takes the per-directory
// advisory lock. Fails immediately when another run holds it.
func (s *Store) Acquire() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sync dir: %w", err)
	}

	f, err := flock.Acquire(filepath.Join(s.dir, lockName))
	if err != nil {
		return err
	}
	s.lock = f
	return nil
}

// Release drops the advisory lock.
func (s *Store) Release() {
	flock.Release(s.lock)
	s.lock = nil
}

// Load reads every entry in the directory and indexes it by remote
// identity. Files we do not manage are skipped; unreadable entries are
// logged and skipped rather than aborting the load.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read sync dir: %w", err)
	}

	s.files = s.files[:0]
	clear(s.byURL)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		f, err := Open(path)
		if errors.Is(err, ErrNotManaged) {
			s.log.Debug().Str("file", entry.Name()).Msg("skipping foreign calendar file")
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable entry")
			continue
		}

		s.files = append(s.files, f)
		if url := f.URL(); url != "" {
			s.byURL[url] = f
		}
	}

	return nil
}

// Get looks up an entry by remote identity.
func (s *Store) Get(url string) (*File, bool) {
	f, ok := s.byURL[url]
	return f, ok
}

// Track registers a freshly created entry so that later items in the
// same run match it instead of creating a duplicate.
func (s *Store) Track(f *File) {
	s.files = append(s.files, f)
	if url := f.URL(); url != "" {
		s.byURL[url] = f
	}
}

// List returns all loaded entries sorted by summary, for display.
func (s *Store) List() []*File {
	out := make([]*File, len(s.files))
	copy(out, s.files)
	sort.Slice(out, func(i, j int) bool { return out[i].Summary() < out[j].Summary() })
	return out
}

// Len reports how many entries are loaded.
func (s *Store) Len() int { return len(s.files) }
