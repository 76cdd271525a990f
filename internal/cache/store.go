// Package cache persists stage completion state across executor runs as a
// flat JSON file.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultPath returns the cache file location under a repository root.
func DefaultPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".cache", "stage-cache.json")
}

// fileShape is the on-disk schema: {"stages": {<cacheKey>: <RFC3339 timestamp>}}.
type fileShape struct {
	Stages map[string]string `json:"stages"`
}

// CorruptError reports a cache file that exists but is not valid JSON.
// Corruption is fatal: silently resetting the cache would re-run stages with
// side effects.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store reads and writes the completion cache. The file path and clock are
// injected so tests can run against a temp file and a fixed time.
type Store struct {
	path      string
	now       func() time.Time
	skipReads bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSkipReads makes IsComplete return false unconditionally. Writes still
// happen, so a run under SKIP_CACHE=true re-records completions.
func WithSkipReads(skip bool) Option {
	return func(s *Store) { s.skipReads = skip }
}

// New creates a Store backed by the given file path.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Init ensures the backing file exists, writing the empty-object shape when
// it is missing. An existing file is never truncated: caches pre-seeded by a
// caller must survive.
func (s *Store) Init() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat cache file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	return s.write(fileShape{Stages: map[string]string{}})
}

// IsComplete reports whether key maps to a non-empty value. It returns false
// when the skip flag is set or the file is absent.
func (s *Store) IsComplete(key string) (bool, error) {
	if s.skipReads {
		return false, nil
	}
	shape, err := s.read()
	if err != nil {
		return false, err
	}
	return shape.Stages[key] != "", nil
}

// MarkComplete records key as completed at the current UTC time. A key that
// already holds a value keeps its original timestamp: completion records are
// never refreshed.
func (s *Store) MarkComplete(key string) error {
	shape, err := s.read()
	if err != nil {
		return err
	}
	if shape.Stages == nil {
		shape.Stages = map[string]string{}
	}
	if shape.Stages[key] != "" {
		return nil
	}
	shape.Stages[key] = s.now().UTC().Format(time.RFC3339)
	return s.write(shape)
}

// Entries returns a copy of all completion records.
func (s *Store) Entries() (map[string]string, error) {
	shape, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(shape.Stages))
	for k, v := range shape.Stages {
		out[k] = v
	}
	return out, nil
}

func (s *Store) read() (fileShape, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return fileShape{Stages: map[string]string{}}, nil
	}
	if err != nil {
		return fileShape{}, fmt.Errorf("read cache file: %w", err)
	}
	var shape fileShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return fileShape{}, &CorruptError{Path: s.path, Err: err}
	}
	return shape, nil
}

// write persists the cache via temp-file-then-rename so a crash mid-write
// never leaves a partial file behind.
func (s *Store) write(shape fileShape) error {
	data, err := json.MarshalIndent(shape, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".stage-cache-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
