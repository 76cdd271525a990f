package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t *testing.T, stamp string) func() time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	return func() time.Time { return ts }
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".cache", "stage-cache.json")
}

func TestInitCreatesEmptyShape(t *testing.T) {
	path := cachePath(t)
	s := New(path)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var shape struct {
		Stages map[string]string `json:"stages"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if shape.Stages == nil || len(shape.Stages) != 0 {
		t.Fatalf("want empty stages object, got %v", shape.Stages)
	}
}

func TestInitNeverTruncates(t *testing.T) {
	path := cachePath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	seeded := `{"stages":{"pre-seeded":"2026-01-01T00:00:00Z"}}`
	if err := os.WriteFile(path, []byte(seeded), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := New(path)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ok, err := s.IsComplete("pre-seeded")
	if err != nil {
		t.Fatalf("IsComplete: %v", err)
	}
	if !ok {
		t.Fatalf("pre-seeded entry must survive Init")
	}
}

func TestMarkCompleteRoundTrip(t *testing.T) {
	s := New(cachePath(t), WithClock(fixedClock(t, "2026-08-26T10:00:00Z")))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ok, err := s.IsComplete("create-cluster")
	if err != nil {
		t.Fatalf("IsComplete: %v", err)
	}
	if ok {
		t.Fatalf("key must be incomplete before MarkComplete")
	}
	if err := s.MarkComplete("create-cluster"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	ok, err = s.IsComplete("create-cluster")
	if err != nil {
		t.Fatalf("IsComplete: %v", err)
	}
	if !ok {
		t.Fatalf("key must be complete after MarkComplete")
	}
}

func TestMarkCompleteKeepsFirstTimestamp(t *testing.T) {
	path := cachePath(t)
	s := New(path, WithClock(fixedClock(t, "2026-08-26T10:00:00Z")))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.MarkComplete("k"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	later := New(path, WithClock(fixedClock(t, "2027-01-01T00:00:00Z")))
	if err := later.MarkComplete("k"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	entries, err := later.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries["k"] != "2026-08-26T10:00:00Z" {
		t.Fatalf("timestamp refreshed: %q", entries["k"])
	}
}

func TestSkipReadsForcesIncomplete(t *testing.T) {
	path := cachePath(t)
	s := New(path)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.MarkComplete("k"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	skipping := New(path, WithSkipReads(true))
	ok, err := skipping.IsComplete("k")
	if err != nil {
		t.Fatalf("IsComplete: %v", err)
	}
	if ok {
		t.Fatalf("skip flag must force incomplete regardless of prior state")
	}
}

func TestIsCompleteAbsentFile(t *testing.T) {
	s := New(cachePath(t))
	ok, err := s.IsComplete("anything")
	if err != nil {
		t.Fatalf("IsComplete: %v", err)
	}
	if ok {
		t.Fatalf("absent file must report incomplete")
	}
}

func TestCorruptFileFailsLoudly(t *testing.T) {
	path := cachePath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path)
	_, err := s.IsComplete("k")
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("want *CorruptError, got %T (%v)", err, err)
	}
	if err := s.MarkComplete("k"); !errors.As(err, &corrupt) {
		t.Fatalf("MarkComplete on corrupt cache: want *CorruptError, got %T", err)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	path := cachePath(t)
	s := New(path)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.MarkComplete("k"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("want only the cache file, got %v", names)
	}
}
