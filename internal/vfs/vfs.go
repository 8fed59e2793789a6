// Package vfs provides the session-scoped memory filesystem backing temp and
// diff files. Paths carrying the mem: scheme route here; everything created
// during a run is tracked so session teardown can delete it regardless of
// outcome.
package vfs

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

// Scheme prefixes paths that live in the memory filesystem.
const Scheme = "mem:"

// IsMemPath reports whether p addresses the memory filesystem.
func IsMemPath(p string) bool { return strings.HasPrefix(p, Scheme) }

// trim strips the scheme and normalizes to an absolute in-memory path.
func trim(p string) string {
	p = strings.TrimPrefix(p, Scheme)
	p = strings.TrimPrefix(p, "//")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// FS is one session's memory filesystem. Safe for concurrent use; writes to
// the same path are last-writer-wins, which is acceptable because capability
// calls within a session are await-ordered.
type FS struct {
	mu    sync.Mutex
	fs    billy.Filesystem
	paths map[string]struct{}
}

// New creates an empty memory filesystem.
func New() *FS {
	return &FS{fs: memfs.New(), paths: make(map[string]struct{})}
}

// Write stores data at p, creating parent directories as needed.
func (m *FS) Write(p string, data []byte) error {
	name := trim(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	if dir := path.Dir(name); dir != "/" {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mem write %s: %w", p, err)
		}
	}
	f, err := m.fs.Create(name)
	if err != nil {
		return fmt.Errorf("mem write %s: %w", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("mem write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("mem write %s: %w", p, err)
	}
	m.paths[name] = struct{}{}
	return nil
}

// Read returns the contents at p.
func (m *FS) Read(p string) ([]byte, error) {
	name := trim(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("mem read %s: %w", p, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("mem read %s: %w", p, err)
	}
	return data, nil
}

// Exists reports whether p exists.
func (m *FS) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.fs.Stat(trim(p))
	return err == nil
}

// Remove deletes the file at p. Removing a missing file is not an error.
func (m *FS) Remove(p string) error {
	name := trim(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.paths, name)
	if err := m.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mem remove %s: %w", p, err)
	}
	return nil
}

// Rename moves a file within the memory filesystem.
func (m *FS) Rename(oldPath, newPath string) error {
	oldName, newName := trim(oldPath), trim(newPath)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fs.Rename(oldName, newName); err != nil {
		return fmt.Errorf("mem rename %s: %w", oldPath, err)
	}
	delete(m.paths, oldName)
	m.paths[newName] = struct{}{}
	return nil
}

// Paths returns the tracked live paths, scheme-prefixed.
func (m *FS) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, Scheme+p)
	}
	return out
}

// DeleteAll removes every file created through this FS. Idempotent; called by
// session teardown on every outcome.
func (m *FS) DeleteAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for p := range m.paths {
		if err := m.fs.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("mem remove %s: %w", p, err)
		}
	}
	m.paths = make(map[string]struct{})
	return firstErr
}
