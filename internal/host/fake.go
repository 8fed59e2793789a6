package host

import (
	"fmt"
	"sync"
)

// Fake is a scripted Host for tests: prompt answers are queued ahead of time,
// notifications are recorded, and diff outcomes are programmable. Blocking
// channels let cancellation tests park a capability call in flight.
type Fake struct {
	mu sync.Mutex

	InputAnswers  []string
	PickAnswers   []string
	MultiAnswers  [][]string
	DialogAnswers []string

	// When non-nil, Input blocks receiving from this channel first.
	InputBlocker chan struct{}
	// When non-nil, DiffSession.Wait blocks receiving from this channel.
	DiffWaitBlocker chan struct{}

	AcceptDiff bool

	Notices  []string
	Progress []string

	editors   map[string]*MemEditor
	activeID  string
	selection *Selection

	Diffs []*FakeDiff
}

// NewFake creates an empty fake host.
func NewFake() *Fake {
	return &Fake{editors: make(map[string]*MemEditor)}
}

// AddEditor seeds an in-memory editor and makes it active.
func (f *Fake) AddEditor(id, language, content string) *MemEditor {
	f.mu.Lock()
	defer f.mu.Unlock()
	ed := &MemEditor{f: f, id: id, path: id, language: language, content: content}
	f.editors[id] = ed
	f.activeID = id
	return ed
}

// Select captures a selection over the given editor's byte range.
func (f *Fake) Select(editorID string, start, end int) *Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	ed := f.editors[editorID]
	f.selection = &Selection{
		EditorID: editorID,
		Text:     ed.content[start:end],
		Language: ed.language,
		Start:    start,
		End:      end,
	}
	f.activeID = editorID
	return f.selection
}

func (f *Fake) ActiveEditor() (Editor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeID == "" {
		return nil, fmt.Errorf("no active editor")
	}
	return f.editors[f.activeID], nil
}

func (f *Fake) Editor(id string) (Editor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ed, ok := f.editors[id]
	if !ok {
		return nil, fmt.Errorf("no editor with id %q", id)
	}
	return ed, nil
}

func (f *Fake) OpenFile(path string, beside bool) (Editor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ed, ok := f.editors[path]; ok {
		f.activeID = path
		return ed, nil
	}
	return nil, fmt.Errorf("no editor with id %q", path)
}

func (f *Fake) NewUntitled(content, language string) (Editor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("untitled-%d", len(f.editors))
	ed := &MemEditor{f: f, id: id, language: language, content: content}
	f.editors[id] = ed
	f.activeID = id
	return ed, nil
}

func (f *Fake) Selection() (*Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selection, nil
}

func (f *Fake) WaitSelection(message, buttonLabel string) (*Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selection == nil {
		return nil, fmt.Errorf("no selection available")
	}
	return f.selection, nil
}

func (f *Fake) Input(message, defaultValue string) (string, bool, error) {
	f.mu.Lock()
	blocker := f.InputBlocker
	f.mu.Unlock()
	if blocker != nil {
		<-blocker
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.InputAnswers) == 0 {
		return "", false, nil
	}
	ans := f.InputAnswers[0]
	f.InputAnswers = f.InputAnswers[1:]
	if ans == "" {
		ans = defaultValue
	}
	return ans, true, nil
}

func (f *Fake) QuickPick(title string, items []PickItem) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.PickAnswers) == 0 {
		return "", false, nil
	}
	ans := f.PickAnswers[0]
	f.PickAnswers = f.PickAnswers[1:]
	return ans, true, nil
}

func (f *Fake) MultiQuickPick(title string, items []PickItem) ([]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.MultiAnswers) == 0 {
		return nil, false, nil
	}
	ans := f.MultiAnswers[0]
	f.MultiAnswers = f.MultiAnswers[1:]
	return ans, true, nil
}

func (f *Fake) Dialog(message, title string, buttons []string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.DialogAnswers) == 0 {
		return "", false, nil
	}
	ans := f.DialogAnswers[0]
	f.DialogAnswers = f.DialogAnswers[1:]
	return ans, true, nil
}

func (f *Fake) note(kind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, kind+": "+message)
}

func (f *Fake) ShowInfo(message string)    { f.note("info", message) }
func (f *Fake) ShowWarning(message string) { f.note("warning", message) }
func (f *Fake) ShowError(message string)   { f.note("error", message) }

func (f *Fake) SetProgress(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Progress = append(f.Progress, message)
}

func (f *Fake) StartDiff(title, original, ext string) (DiffSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &FakeDiff{f: f, Title: title, Original: original}
	f.Diffs = append(f.Diffs, d)
	return d, nil
}

// FakeDiff records the updates a diff session receives.
type FakeDiff struct {
	f        *Fake
	Title    string
	Original string
	Updates  []string
	Closed   bool
}

func (d *FakeDiff) Update(refactored string) error {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.Updates = append(d.Updates, refactored)
	return nil
}

func (d *FakeDiff) Wait() (bool, error) {
	d.f.mu.Lock()
	blocker := d.f.DiffWaitBlocker
	accept := d.f.AcceptDiff
	d.f.mu.Unlock()
	if blocker != nil {
		<-blocker
	}
	return accept, nil
}

func (d *FakeDiff) Close() error {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.Closed = true
	return nil
}

// MemEditor is an in-memory Editor.
type MemEditor struct {
	f        *Fake
	id       string
	path     string
	language string
	content  string

	SaveCount   int
	FormatCount int
}

func (e *MemEditor) ID() string       { return e.id }
func (e *MemEditor) Path() string     { return e.path }
func (e *MemEditor) Language() string { return e.language }

func (e *MemEditor) Content() (string, error) {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	return e.content, nil
}

func (e *MemEditor) SetContent(text string) error {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	e.content = text
	return nil
}

func (e *MemEditor) Replace(start, end int, text string) error {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	if start < 0 || end > len(e.content) || start > end {
		return fmt.Errorf("replace range [%d,%d) out of bounds", start, end)
	}
	e.content = e.content[:start] + text + e.content[end:]
	return nil
}

func (e *MemEditor) Insert(offset int, text string) error {
	return e.Replace(offset, offset, text)
}

func (e *MemEditor) Save() error {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	e.SaveCount++
	return nil
}

func (e *MemEditor) Format() error {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	e.FormatCount++
	return nil
}
