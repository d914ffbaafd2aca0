// Package evidence persists uploaded photo and video blobs for checklist answers.
package evidence

import (
	"fmt"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/random"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind declares what a stored blob contains.
type Kind string

const (
	Image Kind = "image"
	Clip  Kind = "clip"
)

// Ref is an opaque pointer to a stored blob. Answers reference blobs through
// it; the store owns the underlying files.
type Ref struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

const (
	// DefaultMaxAge is the retention window for stored blobs.
	DefaultMaxAge = 7 * 24 * time.Hour
	// pruneInterval rate-limits non-forced prune sweeps.
	pruneInterval = time.Hour

	suffixLength = 6
)

// Store writes media blobs under a single directory with collision-resistant
// names and prunes blobs older than the retention window.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	lastPrune time.Time
}

func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

func (k Kind) extension() string {
	if k == Clip {
		return "mp4"
	}
	return "jpg"
}

// Save writes one blob and returns its reference. Blob names combine a
// sub-second timestamp with a random suffix so concurrent saves cannot collide.
func (s *Store) Save(r io.Reader, kind Kind) (Ref, error) {
	suffix, err := random.Letters(suffixLength)
	if err != nil {
		return Ref{}, errors.Wrap(err, "generate blob name suffix")
	}
	now := s.now()
	name := fmt.Sprintf("media_%s_%06d_%s.%s",
		now.Format("20060102_150405"), now.Nanosecond()/1000, suffix, kind.extension())
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return Ref{}, errors.Wrap(err, "create blob file", slog.String("path", path))
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Ref{}, errors.Wrap(err, "write blob file", slog.String("path", path))
	}
	if err = f.Close(); err != nil {
		return Ref{}, errors.Wrap(err, "close blob file", slog.String("path", path))
	}
	s.logger.Info("evidence saved", slog.String("path", path), slog.String("kind", string(kind)))

	// Opportunistic sweep; rate-limited so it stays cheap.
	s.Prune(DefaultMaxAge, false)

	return Ref{Path: path, Kind: kind}, nil
}

// Exists reports whether the blob behind ref is still on disk.
func (s *Store) Exists(ref Ref) bool {
	_, err := os.Stat(ref.Path)
	return err == nil
}

// Prune deletes blobs whose modification time is older than maxAge. Non-forced
// calls are skipped when a sweep ran within the last hour. A blob that cannot
// be deleted is logged and the sweep continues. Returns the number of blobs
// deleted.
func (s *Store) Prune(maxAge time.Duration, force bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !force && now.Sub(s.lastPrune) < pruneInterval {
		return 0
	}
	s.lastPrune = now

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("read media directory", errors.SlogError(err), slog.String("dir", s.dir))
		return 0
	}

	cutoff := now.Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("stat blob", errors.SlogError(err), slog.String("name", entry.Name()))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err = os.Remove(path); err != nil {
			s.logger.Warn("delete expired blob", errors.SlogError(err), slog.String("path", path))
			continue
		}
		deleted++
	}
	s.logger.Info("media pruned", slog.Int("deleted", deleted))
	return deleted
}
