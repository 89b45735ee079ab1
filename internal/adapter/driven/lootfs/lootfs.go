// Package lootfs stores dump artifacts as files in a loot directory.
package lootfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// ErrOutsideDir is returned by Load for a reference that does not resolve
// inside the loot directory.
var ErrOutsideDir = errors.New("artifact path outside loot directory")

// Compile-time interface satisfaction check.
var _ driven.ArtifactStore = (*Store)(nil)

// Store writes each artifact to <dir>/<run>/<loot type>/<file name>.
// References are the written file paths. MIME type and label are not kept.
type Store struct {
	dir string
}

// New creates the loot directory if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("loot directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve loot directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create loot directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute loot directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the artifact data and returns its path.
func (s *Store) Save(_ context.Context, a model.Artifact) (string, error) {
	path := filepath.Join(s.dir, relPath(a))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", a.LootType, err)
	}
	return path, nil
}

// Load reads an artifact previously written by Save.
func (s *Store) Load(_ context.Context, ref string) ([]byte, error) {
	path := filepath.Clean(ref)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	if rel, err := filepath.Rel(s.dir, path); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: %w", ref, ErrOutsideDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// ListByRun reads every artifact saved under the run's directory, ordered by
// loot type then file name. An unknown run yields nothing.
func (s *Store) ListByRun(_ context.Context, runID string) ([]model.Artifact, error) {
	runDir := filepath.Join(s.dir, segment(runID, "_"))
	types, err := os.ReadDir(runDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list run directory: %w", err)
	}

	var out []model.Artifact
	for _, t := range types {
		if !t.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(runDir, t.Name()))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", t.Name(), err)
		}
		for _, f := range files {
			if !f.Type().IsRegular() {
				continue
			}
			path := filepath.Join(runDir, t.Name(), f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read artifact: %w", err)
			}
			a := model.Artifact{RunID: runID, LootType: t.Name(), FileName: f.Name(), Data: data}
			if info, err := f.Info(); err == nil {
				a.CreatedAt = info.ModTime()
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func relPath(a model.Artifact) string {
	return filepath.Join(segment(a.RunID, "_"), segment(a.LootType, "_"), segment(a.FileName, "artifact"))
}

// segment sanitizes one path element, substituting def when nothing is left.
func segment(s, def string) string {
	if s = sanitize(s); s == "" || s == ".." {
		return def
	}
	return s
}

// sanitize keeps the final path element and replaces characters that are
// unsafe in Windows or POSIX file names.
func sanitize(s string) string {
	s = filepath.Base(strings.ReplaceAll(s, `\`, "/"))
	if s == "." || s == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, s)
}
