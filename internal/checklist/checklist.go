// Package checklist loads shift checklist definitions from the config directory.
package checklist

import (
	"encoding/json"
	"github.com/evgkarn/cafebot/internal/errors"
	"log/slog"
	"os"
	"path/filepath"
)

// Type identifies which shift checklist a run traverses.
type Type string

const (
	Open  Type = "open"
	Close Type = "close"
)

// Valid reports whether t names a known checklist.
func (t Type) Valid() bool {
	return t == Open || t == Close
}

// Question is one step of a checklist. Its identity is its position in the
// definition, so it carries no ID of its own.
type Question struct {
	Text             string `json:"question"`
	RequiresEvidence bool   `json:"requires_media"`
}

// Definition is an ordered checklist. It is immutable after load; sessions
// bind a snapshot at start so definition edits never affect an in-flight run.
type Definition []Question

var ErrNotFound = errors.NewSentinel("checklist not found")

// Store reads checklist definitions from <dir>/<type>_checklist.json.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads the definition for the given checklist type. A missing or empty
// definition is reported as ErrNotFound.
func (s *Store) Load(t Type) (Definition, error) {
	if !t.Valid() {
		return nil, errors.Wrap(ErrNotFound, "unknown checklist type", slog.String("type", string(t)))
	}
	path := filepath.Join(s.dir, string(t)+"_checklist.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, "read checklist file", slog.String("path", path))
		}
		return nil, errors.Wrap(err, "read checklist file", slog.String("path", path))
	}
	var def Definition
	if err = json.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "decode checklist file", slog.String("path", path))
	}
	if len(def) == 0 {
		return nil, errors.Wrap(ErrNotFound, "empty checklist", slog.String("path", path))
	}
	return def, nil
}
