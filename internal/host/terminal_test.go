package host

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/go-prompt"
)

func newTestTerminal(t *testing.T, input string) (*Terminal, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	return NewTerminal(strings.NewReader(input), &out, dir), &out, dir
}

func TestTerminalOpenFileAndEdit(t *testing.T) {
	term, _, dir := newTestTerminal(t, "")
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ed, err := term.OpenFile("main.go", false)
	if err != nil {
		t.Fatal(err)
	}
	if ed.Language() != "go" {
		t.Fatalf("language = %q", ed.Language())
	}
	if err := ed.Replace(8, 12, "app"); err != nil {
		t.Fatal(err)
	}
	content, _ := ed.Content()
	if content != "package app\n" {
		t.Fatalf("content = %q", content)
	}
	if err := ed.Save(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "package app\n" {
		t.Fatalf("saved = %q", data)
	}
	active, err := term.ActiveEditor()
	if err != nil || active.ID() != ed.ID() {
		t.Fatalf("active = %v err = %v", active, err)
	}
}

func TestTerminalSelectionFromSpec(t *testing.T) {
	term, _, dir := newTestTerminal(t, "")
	path := filepath.Join(dir, "x.ts")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := term.SetSelectionFromSpec(path + ":6:11"); err != nil {
		t.Fatal(err)
	}
	sel, err := term.Selection()
	if err != nil || sel == nil {
		t.Fatalf("sel=%v err=%v", sel, err)
	}
	if sel.Text != "world" || sel.Start != 6 || sel.Language != "typescript" {
		t.Fatalf("sel = %+v", sel)
	}
}

func TestTerminalQuickPick(t *testing.T) {
	term, out, _ := newTestTerminal(t, "2\n")
	items := []PickItem{
		{Label: "Quick Replace", Value: "quickReplace"},
		{Label: "Show Diff", Value: "diff"},
	}
	v, ok, err := term.QuickPick("Pick a variant", items)
	if err != nil || !ok || v != "diff" {
		t.Fatalf("v=%q ok=%v err=%v", v, ok, err)
	}
	if !strings.Contains(out.String(), "Show Diff") {
		t.Fatal("menu not rendered")
	}
}

func TestTerminalInputDefault(t *testing.T) {
	term, _, _ := newTestTerminal(t, "\n")
	v, ok, err := term.Input("instructions", "tidy up")
	if err != nil || !ok || v != "tidy up" {
		t.Fatalf("v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestTerminalDiffAccept(t *testing.T) {
	term, out, _ := newTestTerminal(t, "y\n")
	d, err := term.StartDiff("grammar", "const x = 1", "ts")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Update("const x = 1;"); err != nil {
		t.Fatal(err)
	}
	accepted, err := d.Wait()
	if err != nil || !accepted {
		t.Fatalf("accepted=%v err=%v", accepted, err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil { // idempotent
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "diff: grammar") {
		t.Fatal("diff title not rendered")
	}
}

func TestTerminalInputKeepsLongPastedLine(t *testing.T) {
	// Pasting into a prompt can deliver far more than any fixed token size;
	// the whole line must come through as one answer.
	long := strings.Repeat("const x = 1; ", 8192) // ~100KiB
	term, _, _ := newTestTerminal(t, long+"\n")
	v, ok, err := term.Input("instructions", "")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if v != strings.TrimSpace(long) {
		t.Fatalf("answer truncated: got %d bytes, want %d", len(v), len(strings.TrimSpace(long)))
	}
}

func TestTerminalQuickPickByLabel(t *testing.T) {
	items := []PickItem{
		{Label: "Quick Replace", Value: "quickReplace"},
		{Label: "Show Diff", Value: "diff"},
	}
	term, _, _ := newTestTerminal(t, "show diff\n")
	v, ok, err := term.QuickPick("Pick a variant", items)
	if err != nil || !ok || v != "diff" {
		t.Fatalf("v=%q ok=%v err=%v", v, ok, err)
	}

	term, _, _ = newTestTerminal(t, "banana\n")
	if _, _, err := term.QuickPick("Pick a variant", items); err == nil {
		t.Fatal("unmatched answer did not error")
	}
}

func TestTerminalMultiQuickPickMixedAnswers(t *testing.T) {
	items := []PickItem{
		{Label: "Dry Run", Value: "dry-run"},
		{Label: "Verbose", Value: "verbose", Picked: true},
		{Label: "Format", Value: "format"},
	}
	term, _, _ := newTestTerminal(t, "1, format\n")
	got, ok, err := term.MultiQuickPick("Options", items)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0] != "dry-run" || got[1] != "format" {
		t.Fatalf("got = %v", got)
	}

	// Empty keeps the pre-picked defaults.
	term, _, _ = newTestTerminal(t, "\n")
	got, ok, err = term.MultiQuickPick("Options", items)
	if err != nil || !ok || len(got) != 1 || got[0] != "verbose" {
		t.Fatalf("got=%v ok=%v err=%v", got, ok, err)
	}
}

func TestPickCompleterCompletesAfterComma(t *testing.T) {
	items := []PickItem{
		{Label: "Dry Run", Value: "dry-run"},
		{Label: "Verbose", Value: "verbose"},
	}
	c := pickCompleter(items, true)
	suggestions, start, end := c(prompt.Document{Text: "Dry Run, ver"})
	if len(suggestions) != 1 || suggestions[0].Text != "Verbose" {
		t.Fatalf("suggestions = %v", suggestions)
	}
	if int(start) != len("Dry Run, ") || int(end) != len("Dry Run, ver") {
		t.Fatalf("range = [%d, %d)", start, end)
	}
}
