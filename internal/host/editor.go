package host

import (
	"fmt"
	"os"
)

// fileEditor is a Terminal editor backed by a file on disk (or nothing, for
// untitled buffers). Content is held in memory until Save.
type fileEditor struct {
	t        *Terminal
	id       string
	path     string
	language string
	content  string
}

func (e *fileEditor) ID() string       { return e.id }
func (e *fileEditor) Path() string     { return e.path }
func (e *fileEditor) Language() string { return e.language }

func (e *fileEditor) Content() (string, error) {
	e.t.mu.Lock()
	defer e.t.mu.Unlock()
	return e.content, nil
}

func (e *fileEditor) SetContent(text string) error {
	e.t.mu.Lock()
	defer e.t.mu.Unlock()
	e.content = text
	return nil
}

func (e *fileEditor) Replace(start, end int, text string) error {
	e.t.mu.Lock()
	defer e.t.mu.Unlock()
	if start < 0 || end > len(e.content) || start > end {
		return fmt.Errorf("replace range [%d,%d) out of bounds", start, end)
	}
	e.content = e.content[:start] + text + e.content[end:]
	return nil
}

func (e *fileEditor) Insert(offset int, text string) error {
	return e.Replace(offset, offset, text)
}

func (e *fileEditor) Save() error {
	e.t.mu.Lock()
	defer e.t.mu.Unlock()
	if e.path == "" {
		return fmt.Errorf("cannot save untitled editor %s", e.id)
	}
	return os.WriteFile(e.path, []byte(e.content), 0o644)
}

// Format is a no-op; the terminal host has no formatter.
func (e *fileEditor) Format() error { return nil }
