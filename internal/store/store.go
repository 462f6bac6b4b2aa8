// Package store is the document store: it owns the raw uploaded
// documents and the plain-text extractions derived from them, both on
// a local filesystem.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrStorage marks failures of the underlying storage medium (disk
// full, permission denied). Callers surface it without tearing down
// the pipeline.
var ErrStorage = errors.New("document storage failure")

// TextUnit is the full extracted text of one source document. Source
// is a name-only reference: the raw document may already be gone.
type TextUnit struct {
	Name   string
	Source string
	Text   string
}

// Store persists raw documents and derived text units in two
// directory areas.
type Store struct {
	fs      afero.Fs
	docsDir string
	textDir string
	log     *slog.Logger
}

// New creates a Store rooted at the given directories, creating them
// if needed.
func New(fs afero.Fs, docsDir, textDir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, dir := range []string{docsDir, textDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: mkdir %s: %v", ErrStorage, dir, err)
		}
	}
	return &Store{fs: fs, docsDir: docsDir, textDir: textDir, log: log}, nil
}

// Save writes an uploaded document into the raw area and returns the
// stored name. Names are de-duplicated with a numbered suffix, so
// re-uploading "report.pdf" yields "report (1).pdf" and so on.
func (s *Store) Save(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	stored := name
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		exists, err := afero.Exists(s.fs, filepath.Join(s.docsDir, stored))
		if err != nil {
			return "", fmt.Errorf("%w: stat %s: %v", ErrStorage, stored, err)
		}
		if !exists {
			break
		}
		stored = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}

	if err := afero.WriteFile(s.fs, filepath.Join(s.docsDir, stored), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrStorage, stored, err)
	}
	s.log.Info("document saved", "name", stored, "bytes", len(data))
	return stored, nil
}

// ListRaw returns the names of all raw documents, sorted.
func (s *Store) ListRaw() ([]string, error) {
	return s.listDir(s.docsDir)
}

// OpenRaw opens a raw document for reading and reports its size.
func (s *Store) OpenRaw(name string) (afero.File, int64, error) {
	path := filepath.Join(s.docsDir, filepath.Base(name))
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %v", ErrStorage, name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %v", ErrStorage, name, err)
	}
	return f, info.Size(), nil
}

// RemoveRaw deletes a raw document.
func (s *Store) RemoveRaw(name string) error {
	if err := s.fs.Remove(filepath.Join(s.docsDir, filepath.Base(name))); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrStorage, name, err)
	}
	return nil
}

// SaveText persists a text unit in the text area.
func (s *Store) SaveText(unit TextUnit) error {
	path := filepath.Join(s.textDir, filepath.Base(unit.Name))
	if err := afero.WriteFile(s.fs, path, []byte(unit.Text), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, unit.Name, err)
	}
	return nil
}

// ListText loads all text units, sorted by name.
func (s *Store) ListText() ([]TextUnit, error) {
	names, err := s.listDir(s.textDir)
	if err != nil {
		return nil, err
	}
	units := make([]TextUnit, 0, len(names))
	for _, name := range names {
		data, err := afero.ReadFile(s.fs, filepath.Join(s.textDir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, name, err)
		}
		units = append(units, TextUnit{
			Name:   name,
			Source: SourceName(name),
			Text:   string(data),
		})
	}
	return units, nil
}

// ClearText removes every text unit. Runs at process startup; within
// a process the text area accumulates so rebuilds cover every
// document uploaded so far.
func (s *Store) ClearText() error {
	names, err := s.listDir(s.textDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.fs.Remove(filepath.Join(s.textDir, name)); err != nil {
			return fmt.Errorf("%w: remove %s: %v", ErrStorage, name, err)
		}
		s.log.Debug("stale text unit removed", "name", name)
	}
	return nil
}

// TextName derives the text unit name for a source document.
func TextName(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".txt"
}

// SourceName derives the source document name a text unit came from.
func SourceName(textName string) string {
	return strings.TrimSuffix(textName, ".txt") + ".pdf"
}

func (s *Store) listDir(dir string) ([]string, error) {
	f, err := s.fs.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, dir, err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, dir, err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}
