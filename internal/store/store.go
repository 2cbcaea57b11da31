// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// IndexFileName is the name of the index file inside the store directory.
const IndexFileName = "artifacts.toml"

// ErrInvalidName is returned when an artifact name is empty or contains a path separator.
var ErrInvalidName = errors.New("invalid artifact name")

type (
	// Entry records one committed artifact.
	Entry struct {
		Name      string    `toml:"name"`
		Path      string    `toml:"path"`
		Source    string    `toml:"source,omitempty"`
		UpdatedAt time.Time `toml:"updated_at"`
	}

	// StoreError reports an index read or write failure.
	StoreError struct {
		Op   string
		Path string
		Err  error
	}

	// Store maps artifact names to filesystem paths.
	Store struct {
		mu     sync.Mutex
		dir    string
		now    func() time.Time
		logger *log.Logger
	}

	// Option configures a Store.
	Option func(*Store)

	indexFile struct {
		Artifacts map[string]Entry `toml:"artifacts"`
	}
)

// Error implements error.
func (e *StoreError) Error() string {
	return fmt.Sprintf("artifact store %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithNow overrides the clock used for UpdatedAt.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open returns a Store rooted at dir. No filesystem access happens until the
// first Resolve or Commit.
func Open(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		now:    time.Now,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the path recorded for name when it still exists on disk.
// A missing index, a missing entry, and a stale entry all report false.
func (s *Store) Resolve(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.read()
	if err != nil {
		s.logger.Warn("ignoring unreadable artifact index", "path", s.indexPath(), "err", err)
		return "", false
	}

	entry, ok := idx.Artifacts[name]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(entry.Path); err != nil {
		s.logger.Debug("cached artifact is gone", "name", name, "path", entry.Path)
		return "", false
	}
	return entry.Path, true
}

// Commit records path as the current artifact for name, replacing any
// previous entry. Committing the same pair twice leaves the index unchanged
// apart from the timestamp.
func (s *Store) Commit(name, path, source string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return &StoreError{Op: "commit", Path: path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.read()
	if err != nil {
		// A corrupt index only loses cache hits; start over.
		s.logger.Warn("rewriting unreadable artifact index", "path", s.indexPath(), "err", err)
		idx = &indexFile{}
	}
	if idx.Artifacts == nil {
		idx.Artifacts = make(map[string]Entry)
	}
	idx.Artifacts[name] = Entry{
		Name:      name,
		Path:      abs,
		Source:    redact(source),
		UpdatedAt: s.now().UTC().Truncate(time.Second),
	}

	if err := s.write(idx); err != nil {
		return err
	}
	s.logger.Debug("committed artifact", "name", name, "path", abs)
	return nil
}

// Entries returns all recorded entries sorted by name, including stale ones.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(idx.Artifacts))
	for _, e := range idx.Artifacts {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, IndexFileName)
}

func (s *Store) read() (*indexFile, error) {
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, fs.ErrNotExist) {
		return &indexFile{}, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "read", Path: s.indexPath(), Err: err}
	}

	var idx indexFile
	if err := toml.Unmarshal(data, &idx); err != nil {
		return nil, &StoreError{Op: "decode", Path: s.indexPath(), Err: err}
	}
	return &idx, nil
}

// write replaces the index atomically via a temp file in the same directory.
func (s *Store) write(idx *indexFile) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &StoreError{Op: "write", Path: s.dir, Err: err}
	}

	data, err := toml.Marshal(idx)
	if err != nil {
		return &StoreError{Op: "encode", Path: s.indexPath(), Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, IndexFileName+".*")
	if err != nil {
		return &StoreError{Op: "write", Path: s.indexPath(), Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &StoreError{Op: "write", Path: s.indexPath(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &StoreError{Op: "write", Path: s.indexPath(), Err: err}
	}
	if err := os.Rename(tmpName, s.indexPath()); err != nil {
		_ = os.Remove(tmpName)
		return &StoreError{Op: "write", Path: s.indexPath(), Err: err}
	}
	return nil
}

// redact drops query strings, which may carry tokens, from recorded sources.
func redact(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}
