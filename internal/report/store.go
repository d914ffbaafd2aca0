package report

import (
	"encoding/json"
	"fmt"
	"github.com/evgkarn/cafebot/internal/errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store writes one JSON file per completed checklist run.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// fileName derives the deterministic report file name from the user's display
// name, the checklist type, and the report timestamp.
func fileName(r Report) string {
	// Display names come from the chat transport; keep path separators out.
	name := strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' {
			return '_'
		}
		return c
	}, r.UserName)
	return fmt.Sprintf("%s_%s_%s.json", name, r.ChecklistType, r.Date.Format("20060102_150405"))
}

// Save serializes the report to its file. The write goes through a temp file
// and rename so a concurrently flushing session never observes a partial
// record.
func (s *Store) Save(r Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode report")
	}
	path := filepath.Join(s.dir, fileName(r))
	tmp, err := os.CreateTemp(s.dir, ".report-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp report file", slog.String("dir", s.dir))
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(err, "write report", slog.String("path", path))
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(err, "close report file", slog.String("path", path))
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(err, "rename report file", slog.String("path", path))
	}
	s.logger.Info("report saved", slog.String("path", path))
	return path, nil
}

// Load reads a stored report record back. Used by the maintenance CLI to
// re-render a report's text.
func Load(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, errors.Wrap(err, "read report file", slog.String("path", path))
	}
	if err = json.Unmarshal(data, &r); err != nil {
		return r, errors.Wrap(err, "decode report file", slog.String("path", path))
	}
	return r, nil
}
