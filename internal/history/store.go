// Package history persists the bounded log of previously published items.
// The log is the deduplication signal for future runs: a candidate whose
// title already appears here is skipped by the selector.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MaxEntries bounds the persisted history. The newest entry sits at index 0
// and the oldest entry is evicted once the bound is exceeded.
const MaxEntries = 14

// Entry records one published item. Title is the deduplication key and is
// compared by exact equality.
type Entry struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt string    `json:"publishedAt"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// Store reads and writes the history file. Record serializes writers so two
// overlapping runs cannot lose each other's updates.
type Store struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewStore returns a store bound to the given file path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the persisted history. A missing, unreadable, or malformed file
// yields an empty history; corruption is never fatal.
func (s *Store) Load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("history file unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("history file malformed, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return nil
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}

// Record prepends entry, truncates to MaxEntries, and persists the result
// synchronously before returning. The returned slice is the new history
// regardless of whether persistence succeeded; a persist failure only costs
// deduplication on future runs, so callers should warn and continue.
func (s *Store) Record(entry Entry, entries []Entry) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]Entry, 0, len(entries)+1)
	updated = append(updated, entry)
	updated = append(updated, entries...)
	if len(updated) > MaxEntries {
		updated = updated[:MaxEntries]
	}

	return updated, s.persist(updated)
}

// persist writes atomically: the payload lands in a temp file in the same
// directory and is renamed over the target, so load never sees a torn write.
func (s *Store) persist(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Titles returns the set of titles present in the history, used by the
// selector for exclusion tests.
func Titles(entries []Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Title] = struct{}{}
	}
	return set
}
