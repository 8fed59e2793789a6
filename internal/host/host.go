// Package host abstracts the editor-facing surface the refactoring runtime
// needs: editors addressed by stable identity, selections, prompts, messages,
// and two-pane diff sessions. The runtime depends only on these interfaces;
// Terminal is the shipped line-oriented implementation and Fake is the
// scripted implementation used by tests.
package host

// Selection is a captured text selection. Start and End are byte offsets into
// the owning editor's content at capture time.
type Selection struct {
	EditorID string
	Text     string
	Language string
	Start    int
	End      int
}

// Editor is one open document. Identity is stable for the lifetime of the
// host; content operations go through the host so the document model stays
// authoritative.
type Editor interface {
	ID() string
	Path() string
	Language() string
	Content() (string, error)
	SetContent(text string) error
	// Replace splices text over the byte range [start, end).
	Replace(start, end int, text string) error
	Insert(offset int, text string) error
	Save() error
	Format() error
}

// PickItem is one entry of a quick-pick menu.
type PickItem struct {
	Label       string
	Value       string
	Description string
	Picked      bool
}

// DiffSession is one open two-pane diff view. Update replaces the right-hand
// content; Wait blocks until the user accepts or dismisses the view. Close
// tears the view down and is idempotent.
type DiffSession interface {
	Update(refactored string) error
	Wait() (accepted bool, err error)
	Close() error
}

// Host is the full editor-facing capability surface.
type Host interface {
	// ActiveEditor resolves the editor in focus at call time.
	ActiveEditor() (Editor, error)
	Editor(id string) (Editor, error)
	// OpenFile opens path as an editor, optionally beside the current one.
	OpenFile(path string, beside bool) (Editor, error)
	// NewUntitled opens an unsaved editor pre-filled with content.
	NewUntitled(content, language string) (Editor, error)

	// Selection returns the current selection, or nil when there is none.
	Selection() (*Selection, error)
	// WaitSelection prompts the user to make a selection and captures it.
	WaitSelection(message, buttonLabel string) (*Selection, error)

	// Input shows a free-text prompt. ok is false when the user dismissed it.
	Input(message, defaultValue string) (value string, ok bool, err error)
	QuickPick(title string, items []PickItem) (value string, ok bool, err error)
	MultiQuickPick(title string, items []PickItem) (values []string, ok bool, err error)
	// Dialog shows a message with buttons; returns the chosen button label.
	Dialog(message, title string, buttons []string) (choice string, ok bool, err error)

	ShowInfo(message string)
	ShowWarning(message string)
	ShowError(message string)
	// SetProgress reports transient progress text for the running operation.
	SetProgress(message string)

	// StartDiff opens a diff view of original against an initially empty
	// right-hand side. ext hints at syntax highlighting.
	StartDiff(title, original, ext string) (DiffSession, error)
}
