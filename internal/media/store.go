package media

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store lays out downloaded media under root, one directory per guild.
type Store struct {
	root string

	mu       sync.Mutex
	inflight map[string]int
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, inflight: make(map[string]int)}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) Dir(guildID string) string {
	return filepath.Join(s.root, guildID)
}

func (s *Store) PathFor(guildID, id, ext string) string {
	return filepath.Join(s.Dir(guildID), id+"."+ext)
}

// Prepare creates the guild directory and returns it.
func (s *Store) Prepare(guildID string) (string, error) {
	dir := s.Dir(guildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// Begin marks a download into the guild directory as running. Purge leaves
// the directory alone until every returned func has been called.
func (s *Store) Begin(guildID string) func() {
	s.mu.Lock()
	s.inflight[guildID]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.inflight[guildID] <= 1 {
				delete(s.inflight, guildID)
				return
			}
			s.inflight[guildID]--
		})
	}
}

func (s *Store) busy(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[guildID] > 0
}

// Remove deletes one media file. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Purge deletes the guild directory with everything in it.
func (s *Store) Purge(guildID string) error {
	if s.busy(guildID) {
		slog.Debug("download in flight, keeping media dir", "guildID", guildID)
		return nil
	}
	return os.RemoveAll(s.Dir(guildID))
}

// Sweep empties the whole root, dropping leftovers of a previous run.
func (s *Store) Sweep() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
