// Package history persists per-script run records: the value bags scripts use
// to recall prior instructions, plus a bounded recent-usage window that feeds
// catalog ranking.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// usageWindow bounds the global recent-usage list used for ranking. Older
// usages fall out of the window; full per-script run records are kept.
const usageWindow = 50

// Run is one successful run's record.
type Run struct {
	Variant string         `json:"variant"`
	Values  map[string]any `json:"values,omitempty"`
}

type scriptRecord struct {
	Runs []Run `json:"runs"`
}

type fileFormat struct {
	Usage   []string                 `json:"usage"`
	Scripts map[string]*scriptRecord `json:"scripts"`
}

// Store is the process-wide run history. Mutated only when a run completes
// successfully; never pruned by the runtime (Clear exists for consumers and
// tests). Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string // empty means in-memory only
	usage   []string
	scripts map[string]*scriptRecord
}

// NewMemory returns an empty store with no backing file.
func NewMemory() *Store {
	return &Store{scripts: make(map[string]*scriptRecord)}
}

// Load reads the store from path. A missing file yields an empty store bound
// to that path; a malformed file is an error.
func Load(path string) (*Store, error) {
	s := &Store{path: path, scripts: make(map[string]*scriptRecord)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	s.usage = ff.Usage
	if ff.Scripts != nil {
		s.scripts = ff.Scripts
	}
	return s, nil
}

// Record appends a successful run for the script at filePath and pushes the
// path onto the recent-usage window. Persists immediately when the store is
// file-backed.
func (s *Store) Record(filePath, variant string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.scripts[filePath]
	if rec == nil {
		rec = &scriptRecord{}
		s.scripts[filePath] = rec
	}
	rec.Runs = append(rec.Runs, Run{Variant: variant, Values: values})
	s.usage = append(s.usage, filePath)
	if len(s.usage) > usageWindow {
		s.usage = s.usage[len(s.usage)-usageWindow:]
	}
	return s.saveLocked()
}

// LastRun returns the most recent successful run for filePath, or nil.
func (s *Store) LastRun(filePath string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.scripts[filePath]
	if rec == nil || len(rec.Runs) == 0 {
		return nil
	}
	r := rec.Runs[len(rec.Runs)-1]
	return &r
}

// Runs returns all recorded runs for filePath, oldest first.
func (s *Store) Runs(filePath string) []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.scripts[filePath]
	if rec == nil {
		return nil
	}
	return append([]Run(nil), rec.Runs...)
}

// UsageScore counts filePath's occurrences in the recent-usage window.
func (s *Store) UsageScore(filePath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.usage {
		if p == filePath {
			n++
		}
	}
	return n
}

// Clear discards all history. Intended for consumers and tests.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = nil
	s.scripts = make(map[string]*scriptRecord)
	return s.saveLocked()
}

// saveLocked writes the store atomically: temp file in the same directory,
// then rename. No-op for in-memory stores.
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	ff := fileFormat{Usage: s.usage, Scripts: s.scripts}
	data, err := json.MarshalIndent(&ff, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
