package refactor

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/vfs"
)

// Filesystem-like helpers exposed to scripts. Paths with the mem: scheme
// route to the session's memory filesystem; everything else resolves against
// the workspace.

// WorkspacePath returns the workspace root.
func (s *Session) WorkspacePath() string { return s.workDir }

// ResolvePath makes p absolute relative to the workspace. mem: paths pass
// through untouched.
func (s *Session) ResolvePath(p string) string {
	if vfs.IsMemPath(p) || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.workDir, p)
}

// RelToWorkspace returns p relative to the workspace root, or p unchanged if
// it lies outside.
func (s *Session) RelToWorkspace(p string) string {
	rel, err := filepath.Rel(s.workDir, s.ResolvePath(p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

// ReadFile returns the contents at p.
func (s *Session) ReadFile(p string) (string, error) {
	if err := s.checkActive(); err != nil {
		return "", err
	}
	if vfs.IsMemPath(p) {
		data, err := s.mem.Read(p)
		return string(data), err
	}
	data, err := os.ReadFile(s.ResolvePath(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content at p, creating the file if needed.
func (s *Session) WriteFile(p, content string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if vfs.IsMemPath(p) {
		return s.mem.Write(p, []byte(content))
	}
	full := s.ResolvePath(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

// CreateFile writes content at p; the file must not already exist.
func (s *Session) CreateFile(p, content string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if s.FileExists(p) {
		return fmt.Errorf("file already exists: %s", p)
	}
	return s.WriteFile(p, content)
}

// FileExists reports whether p exists.
func (s *Session) FileExists(p string) bool {
	if vfs.IsMemPath(p) {
		return s.mem.Exists(p)
	}
	_, err := os.Stat(s.ResolvePath(p))
	return err == nil
}

// DeleteFile removes the file at p.
func (s *Session) DeleteFile(p string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if vfs.IsMemPath(p) {
		return s.mem.Remove(p)
	}
	return os.Remove(s.ResolvePath(p))
}

// MoveFile moves a file. Both paths must live on the same side (memory or
// real).
func (s *Session) MoveFile(oldPath, newPath string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if vfs.IsMemPath(oldPath) != vfs.IsMemPath(newPath) {
		return fmt.Errorf("cannot move between memory and real filesystems: %s -> %s", oldPath, newPath)
	}
	if vfs.IsMemPath(oldPath) {
		return s.mem.Rename(oldPath, newPath)
	}
	return os.Rename(s.ResolvePath(oldPath), s.ResolvePath(newPath))
}

// RenameFile renames a file within its directory.
func (s *Session) RenameFile(p, newName string) error {
	if vfs.IsMemPath(p) {
		return s.MoveFile(p, vfs.Scheme+path.Join(path.Dir(strings.TrimPrefix(p, vfs.Scheme)), newName))
	}
	full := s.ResolvePath(p)
	return s.MoveFile(full, filepath.Join(filepath.Dir(full), newName))
}

// CreateFolder creates a real directory (and parents).
func (s *Session) CreateFolder(p string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return os.MkdirAll(s.ResolvePath(p), 0o755)
}

// DeleteFolder removes a real directory recursively.
func (s *Session) DeleteFolder(p string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return os.RemoveAll(s.ResolvePath(p))
}

// MoveFolder moves a real directory.
func (s *Session) MoveFolder(oldPath, newPath string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return os.Rename(s.ResolvePath(oldPath), s.ResolvePath(newPath))
}

// RenameFolder renames a real directory within its parent.
func (s *Session) RenameFolder(p, newName string) error {
	full := s.ResolvePath(p)
	return s.MoveFolder(full, filepath.Join(filepath.Dir(full), newName))
}

// ReadDirOptions filter a directory listing.
type ReadDirOptions struct {
	// FilesFilter is a glob matched against filenames (not paths).
	FilesFilter    string
	IncludeFolders bool
	Recursive      bool
}

// ReadDirectory lists entries under dir, filtered by opts. Paths returned
// are absolute.
func (s *Session) ReadDirectory(dir string, opts ReadDirOptions) ([]string, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	root := s.ResolvePath(dir)
	var out []string
	appendEntry := func(p string, isDir bool) error {
		if isDir {
			if opts.IncludeFolders {
				out = append(out, p)
			}
			return nil
		}
		if opts.FilesFilter != "" {
			ok, err := path.Match(opts.FilesFilter, filepath.Base(p))
			if err != nil {
				return fmt.Errorf("invalid filter %q: %w", opts.FilesFilter, err)
			}
			if !ok {
				return nil
			}
		}
		out = append(out, p)
		return nil
	}
	if opts.Recursive {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == root {
				return nil
			}
			return appendEntry(p, d.IsDir())
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, ent := range entries {
		if err := appendEntry(filepath.Join(root, ent.Name()), ent.IsDir()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TempFile is a handle to a memory-backed scratch file, deleted at session
// teardown (or earlier via Dispose).
type TempFile struct {
	s    *Session
	Path string
}

// CreateTempFile allocates a memory-backed file with the given extension and
// initial content.
func (s *Session) CreateTempFile(ext, initial string) (*TempFile, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	p := s.newMemPath("tmp", ext)
	if err := s.mem.Write(p, []byte(initial)); err != nil {
		return nil, err
	}
	return &TempFile{s: s, Path: p}, nil
}

// Update replaces the temp file's content.
func (t *TempFile) Update(content string) error {
	return t.s.mem.Write(t.Path, []byte(content))
}

// GetContent returns the temp file's content.
func (t *TempFile) GetContent() (string, error) {
	data, err := t.s.mem.Read(t.Path)
	return string(data), err
}

// Dispose deletes the temp file early. Teardown removes it anyway.
func (t *TempFile) Dispose() error {
	return t.s.mem.Remove(t.Path)
}

// OpenEditor opens the temp file's content in an untitled editor.
func (t *TempFile) OpenEditor() (host.Editor, error) {
	content, err := t.GetContent()
	if err != nil {
		return nil, err
	}
	lang := strings.TrimPrefix(path.Ext(t.Path), ".")
	return t.s.NewUnsavedFile(content, lang)
}
