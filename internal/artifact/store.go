// Package artifact manages the files the pipeline produces: their stage
// directory layout, their lifecycle state, and the temp-then-rename protocol
// that makes completion atomic. The directory tree under the work root is
// the run's persisted execution state; anything present at its final path is
// a cached result for the next run.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of one artifact path.
type State int

const (
	// Missing means no writer has produced the artifact.
	Missing State = iota
	// InProgress means a unit currently owns the artifact's write lock.
	InProgress
	// Complete means the artifact exists at its final path.
	Complete
	// Invalid means the producing unit failed; any partial file was removed.
	Invalid
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case InProgress:
		return "in-progress"
	case Complete:
		return "complete"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

const tmpInfix = ".tmp-"

// Store tracks artifact states under a single work root. A file at its final
// path is authoritative for Complete; InProgress and Invalid exist only in
// memory, which is exactly the crash-recovery contract: a crashed run leaves
// either a committed file (cached) or a tmp file (reaped on the next start).
type Store struct {
	root string

	mu         sync.Mutex
	inProgress map[string]string // artifact path -> temp file (absolute)
	invalid    map[string]bool
	protected  map[string]bool
}

// NewStore returns a store rooted at dir. The directory is created if absent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work root: %w", err)
	}
	return &Store{
		root:       dir,
		inProgress: make(map[string]string),
		invalid:    make(map[string]bool),
		protected:  make(map[string]bool),
	}, nil
}

// Root returns the absolute work root.
func (s *Store) Root() string { return s.root }

// Abs resolves an artifact path to its absolute final location.
func (s *Store) Abs(rel string) string { return filepath.Join(s.root, rel) }

// State reports the current lifecycle state of an artifact.
func (s *Store) State(rel string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inProgress[rel]; ok {
		return InProgress
	}
	if s.invalid[rel] {
		return Invalid
	}
	if _, err := os.Stat(s.Abs(rel)); err == nil {
		return Complete
	}
	return Missing
}

// Complete reports whether the artifact exists at its final path.
func (s *Store) Complete(rel string) bool { return s.State(rel) == Complete }

// Begin acquires the write lock for an artifact and returns the temp path
// the producing unit must write to. Exactly one writer may hold the lock at
// a time; a second Begin for the same path fails.
func (s *Store) Begin(rel string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inProgress[rel]; ok {
		return "", fmt.Errorf("artifact %s already has a writer", rel)
	}

	final := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("creating stage directory for %s: %w", rel, err)
	}

	tmp := final + tmpInfix + uuid.NewString()[:8]
	s.inProgress[rel] = tmp
	delete(s.invalid, rel)
	return tmp, nil
}

// Commit atomically promotes the temp file written since Begin to the final
// path and marks the artifact complete.
func (s *Store) Commit(rel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, ok := s.inProgress[rel]
	if !ok {
		return fmt.Errorf("artifact %s has no writer to commit", rel)
	}
	delete(s.inProgress, rel)

	if err := os.Rename(tmp, s.Abs(rel)); err != nil {
		s.invalid[rel] = true
		return fmt.Errorf("committing %s: %w", rel, err)
	}
	return nil
}

// Abort releases the write lock, removes the partial temp file, and marks
// the artifact invalid.
func (s *Store) Abort(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tmp, ok := s.inProgress[rel]; ok {
		os.Remove(tmp)
		delete(s.inProgress, rel)
	}
	s.invalid[rel] = true
}

// Protect flags a complete artifact as never auto-deleted.
func (s *Store) Protect(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protected[rel] = true
}

// Protected reports whether the artifact carries the protection flag.
func (s *Store) Protected(rel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protected[rel]
}

// Invalidate removes a committed artifact and marks it invalid. Protected
// artifacts are left in place untouched.
func (s *Store) Invalidate(rel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.protected[rel] {
		return nil
	}
	if err := os.Remove(s.Abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing invalid artifact %s: %w", rel, err)
	}
	s.invalid[rel] = true
	return nil
}

// Reclaim deletes a temporary artifact whose readers have all finished.
// Protected or still-in-progress artifacts are never reclaimed.
func (s *Store) Reclaim(rel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.protected[rel] {
		return nil
	}
	if _, ok := s.inProgress[rel]; ok {
		return fmt.Errorf("artifact %s still has a writer", rel)
	}
	if err := os.Remove(s.Abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reclaiming %s: %w", rel, err)
	}
	return nil
}

// ReapStale removes temp files left behind by a crashed or aborted run.
// A tmp file is by definition an in-progress write that never committed.
func (s *Store) ReapStale() error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.Contains(d.Name(), tmpInfix) {
			if rmErr := os.Remove(path); rmErr != nil {
				return fmt.Errorf("reaping stale temp file %s: %w", path, rmErr)
			}
		}
		return nil
	})
}
