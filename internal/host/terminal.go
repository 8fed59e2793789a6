package host

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joeycumines/go-prompt"
	istrings "github.com/joeycumines/go-prompt/strings"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

// Terminal is a terminal Host: on a TTY prompts run as interactive go-prompt
// sessions with inline completion and history, quick-picks are completable
// menus, diffs render inline with insertions and deletions colored. Off a TTY
// (piped input) answers are read line-by-line from in.
type Terminal struct {
	mu        sync.Mutex
	in        *bufio.Reader
	tty       bool
	out       io.Writer
	workDir   string
	editors   map[string]*fileEditor
	activeID  string
	selection *Selection
	answers   []string
	dmp       *diffmatchpatch.DiffMatchPatch

	titleStyle lipgloss.Style
	infoStyle  lipgloss.Style
	warnStyle  lipgloss.Style
	errStyle   lipgloss.Style
	dimStyle   lipgloss.Style
	addStyle   lipgloss.Style
	delStyle   lipgloss.Style
}

// NewTerminal creates a terminal host reading prompts from in and writing to
// out. workDir anchors relative paths.
func NewTerminal(in io.Reader, out io.Writer, workDir string) *Terminal {
	t := &Terminal{
		in:         bufio.NewReader(in),
		out:        out,
		workDir:    workDir,
		editors:    make(map[string]*fileEditor),
		dmp:        diffmatchpatch.New(),
		titleStyle: lipgloss.NewStyle().Bold(true),
		infoStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		warnStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		dimStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		addStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		delStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.tty = true
	}
	return t
}

// promptLine reads one answer. On a TTY this is a go-prompt session (line
// editing, completion, history of earlier answers); Ctrl-D dismisses it.
// Otherwise the answer is one line from the backing reader, however long, so
// piped and pasted input passes through intact.
func (t *Terminal) promptLine(prefix string, completer prompt.Completer) (string, bool) {
	if !t.tty {
		fmt.Fprint(t.out, prefix)
		line, err := t.in.ReadString('\n')
		if err != nil && line == "" {
			return "", false
		}
		return strings.TrimSpace(line), true
	}

	t.mu.Lock()
	hist := append([]string(nil), t.answers...)
	t.mu.Unlock()

	var line string
	answered := false
	opts := []prompt.Option{
		prompt.WithPrefix(prefix),
		prompt.WithHistory(hist),
		prompt.WithExitChecker(func(in string, breakline bool) bool { return breakline }),
	}
	if completer != nil {
		opts = append(opts, prompt.WithCompleter(completer))
	}
	p := prompt.New(func(s string) {
		line = strings.TrimSpace(s)
		answered = true
	}, opts...)
	p.Run()
	if !answered {
		return "", false
	}
	if line != "" {
		t.mu.Lock()
		t.answers = append(t.answers, line)
		t.mu.Unlock()
	}
	return line, true
}

// pickCompleter completes the token under the cursor against the menu's
// labels. For multi-answer prompts the token is whatever follows the last
// comma, so each entry in a comma-separated answer completes independently.
func pickCompleter(items []PickItem, multi bool) prompt.Completer {
	suggestions := make([]prompt.Suggest, len(items))
	for i, item := range items {
		suggestions[i] = prompt.Suggest{Text: item.Label, Description: item.Description}
	}
	return func(d prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
		before := d.TextBeforeCursor()
		if before == "" {
			before = d.Text
		}
		end := istrings.RuneNumber(utf8.RuneCountInString(before))
		token := before
		if multi {
			if i := strings.LastIndex(before, ","); i >= 0 {
				token = strings.TrimLeft(before[i+1:], " ")
			}
		}
		start := end - istrings.RuneNumber(utf8.RuneCountInString(token))
		var out []prompt.Suggest
		for _, s := range suggestions {
			if strings.HasPrefix(strings.ToLower(s.Text), strings.ToLower(token)) {
				out = append(out, s)
			}
		}
		return out, start, end
	}
}

// resolvePick maps one answer token to an item value: a 1-based index, a
// label (case-insensitive), or the value itself.
func resolvePick(items []PickItem, answer string) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(items) {
			return "", false
		}
		return items[n-1].Value, true
	}
	for _, item := range items {
		if strings.EqualFold(answer, item.Label) || answer == item.Value {
			return item.Value, true
		}
	}
	return "", false
}

// LanguageForPath maps a file extension to a language identifier.
func LanguageForPath(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".md":
		return "markdown"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}

// ActiveEditor returns the most recently opened or selected editor.
func (t *Terminal) ActiveEditor() (Editor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeID == "" {
		return nil, fmt.Errorf("no active editor")
	}
	return t.editors[t.activeID], nil
}

// Editor returns the editor with the given identity.
func (t *Terminal) Editor(id string) (Editor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ed, ok := t.editors[id]
	if !ok {
		return nil, fmt.Errorf("no editor with id %q", id)
	}
	return ed, nil
}

// OpenFile opens path as an editor and makes it active. beside is accepted
// for interface compatibility; a terminal has no split view.
func (t *Terminal) OpenFile(path string, beside bool) (Editor, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.workDir, path)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ed, ok := t.editors[path]; ok {
		t.activeID = path
		return ed, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ed := &fileEditor{
		t:        t,
		id:       path,
		path:     path,
		language: LanguageForPath(path),
		content:  string(data),
	}
	t.editors[path] = ed
	t.activeID = path
	return ed, nil
}

// NewUntitled opens an unsaved editor pre-filled with content.
func (t *Terminal) NewUntitled(content, language string) (Editor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := "untitled:" + uuid.NewString()
	ed := &fileEditor{t: t, id: id, language: language, content: content}
	t.editors[id] = ed
	t.activeID = id
	return ed, nil
}

// Selection returns the current selection, or nil when none was captured.
func (t *Terminal) Selection() (*Selection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection, nil
}

// SetSelectionFromSpec captures a selection from a "file:start:end" spec
// (byte offsets). The file becomes the active editor.
func (t *Terminal) SetSelectionFromSpec(spec string) error {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return fmt.Errorf("selection spec %q: want file:start:end", spec)
	}
	start, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return fmt.Errorf("selection spec %q: bad start offset", spec)
	}
	end, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return fmt.Errorf("selection spec %q: bad end offset", spec)
	}
	path := strings.Join(parts[:len(parts)-2], ":")
	ed, err := t.OpenFile(path, false)
	if err != nil {
		return err
	}
	content, err := ed.Content()
	if err != nil {
		return err
	}
	if start < 0 || end > len(content) || start > end {
		return fmt.Errorf("selection spec %q: offsets out of range", spec)
	}
	t.mu.Lock()
	t.selection = &Selection{
		EditorID: ed.ID(),
		Text:     content[start:end],
		Language: ed.Language(),
		Start:    start,
		End:      end,
	}
	t.mu.Unlock()
	return nil
}

// WaitSelection prompts the user for a selection spec; an empty answer keeps
// the current selection.
func (t *Terminal) WaitSelection(message, buttonLabel string) (*Selection, error) {
	fmt.Fprintln(t.out, t.infoStyle.Render(message))
	line, ok := t.promptLine(buttonLabel+" (file:start:end, empty to keep current): ", nil)
	if !ok {
		return nil, io.EOF
	}
	if line == "" {
		t.mu.Lock()
		sel := t.selection
		t.mu.Unlock()
		if sel == nil {
			return nil, fmt.Errorf("no selection available")
		}
		return sel, nil
	}
	if err := t.SetSelectionFromSpec(line); err != nil {
		return nil, err
	}
	t.mu.Lock()
	sel := t.selection
	t.mu.Unlock()
	return sel, nil
}

// Input shows a free-text prompt; an empty answer takes the default.
func (t *Terminal) Input(message, defaultValue string) (string, bool, error) {
	prefix := message + ": "
	if defaultValue != "" {
		prefix = fmt.Sprintf("%s [%s]: ", message, defaultValue)
	}
	line, ok := t.promptLine(prefix, nil)
	if !ok {
		return "", false, nil
	}
	if line == "" {
		line = defaultValue
	}
	return line, true, nil
}

// QuickPick shows a single-choice menu. The answer is an index, a label, or a
// value; on a TTY labels complete inline.
func (t *Terminal) QuickPick(title string, items []PickItem) (string, bool, error) {
	if title != "" {
		fmt.Fprintln(t.out, t.titleStyle.Render(title))
	}
	for i, item := range items {
		line := fmt.Sprintf("  %d) %s", i+1, item.Label)
		if item.Description != "" {
			line += " " + t.dimStyle.Render(item.Description)
		}
		fmt.Fprintln(t.out, line)
	}
	line, ok := t.promptLine("choice: ", pickCompleter(items, false))
	if !ok || line == "" {
		return "", false, nil
	}
	v, ok := resolvePick(items, line)
	if !ok {
		return "", false, fmt.Errorf("invalid choice %q", line)
	}
	return v, true, nil
}

// MultiQuickPick shows a multi-choice menu; answers are comma-separated
// indices, labels, or values, empty keeps the pre-picked defaults.
func (t *Terminal) MultiQuickPick(title string, items []PickItem) ([]string, bool, error) {
	if title != "" {
		fmt.Fprintln(t.out, t.titleStyle.Render(title))
	}
	for i, item := range items {
		mark := " "
		if item.Picked {
			mark = "x"
		}
		fmt.Fprintf(t.out, "  [%s] %d) %s\n", mark, i+1, item.Label)
	}
	line, ok := t.promptLine("choices (comma-separated, empty for defaults): ", pickCompleter(items, true))
	if !ok {
		return nil, false, nil
	}
	if line == "" {
		var out []string
		for _, item := range items {
			if item.Picked {
				out = append(out, item.Value)
			}
		}
		return out, true, nil
	}
	var out []string
	for _, field := range strings.Split(line, ",") {
		field = strings.TrimSpace(field)
		v, ok := resolvePick(items, field)
		if !ok {
			return nil, false, fmt.Errorf("invalid choice %q", field)
		}
		out = append(out, v)
	}
	return out, true, nil
}

// Dialog shows a message with numbered buttons.
func (t *Terminal) Dialog(message, title string, buttons []string) (string, bool, error) {
	if title != "" {
		fmt.Fprintln(t.out, t.titleStyle.Render(title))
	}
	fmt.Fprintln(t.out, message)
	items := make([]PickItem, len(buttons))
	for i, b := range buttons {
		items[i] = PickItem{Label: b, Value: b}
	}
	return t.QuickPick("", items)
}

func (t *Terminal) ShowInfo(message string)    { fmt.Fprintln(t.out, t.infoStyle.Render(message)) }
func (t *Terminal) ShowWarning(message string) { fmt.Fprintln(t.out, t.warnStyle.Render(message)) }
func (t *Terminal) ShowError(message string)   { fmt.Fprintln(t.out, t.errStyle.Render(message)) }

// SetProgress prints transient progress text.
func (t *Terminal) SetProgress(message string) {
	fmt.Fprintln(t.out, t.dimStyle.Render("… "+message))
}

// StartDiff opens an inline diff of original against an initially empty
// right-hand side; every Update re-renders.
func (t *Terminal) StartDiff(title, original, ext string) (DiffSession, error) {
	fmt.Fprintln(t.out, t.titleStyle.Render("diff: "+title))
	return &terminalDiff{t: t, original: original}, nil
}

type terminalDiff struct {
	t        *Terminal
	original string
	current  string
	closed   bool
}

func (d *terminalDiff) Update(refactored string) error {
	d.current = refactored
	diffs := d.t.dmp.DiffMain(d.original, refactored, false)
	diffs = d.t.dmp.DiffCleanupSemantic(diffs)
	var sb strings.Builder
	for _, df := range diffs {
		switch df.Type {
		case diffmatchpatch.DiffInsert:
			sb.WriteString(d.t.addStyle.Render(df.Text))
		case diffmatchpatch.DiffDelete:
			sb.WriteString(d.t.delStyle.Render(df.Text))
		default:
			sb.WriteString(df.Text)
		}
	}
	fmt.Fprintln(d.t.out, d.t.dimStyle.Render("----"))
	fmt.Fprintln(d.t.out, sb.String())
	return nil
}

func (d *terminalDiff) Wait() (bool, error) {
	items := []PickItem{
		{Label: "yes", Value: "yes", Description: "apply the refactored version"},
		{Label: "no", Value: "no", Description: "discard and cancel the run"},
	}
	line, ok := d.t.promptLine("accept refactored version? [y/N]: ", pickCompleter(items, false))
	if !ok {
		return false, nil
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

func (d *terminalDiff) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	fmt.Fprintln(d.t.out, d.t.dimStyle.Render("diff closed"))
	return nil
}
