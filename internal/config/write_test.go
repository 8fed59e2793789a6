package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetKeyInFileUpdatesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	initial := `# my settings
ai.service openai

[run]
select a.go:0:1
`
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatal(err)
	}

	if err := SetKeyInFile(path, "ai.service", "anthropic"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	got := string(data)
	if !strings.Contains(got, "ai.service anthropic") {
		t.Errorf("key not updated:\n%s", got)
	}
	if strings.Contains(got, "ai.service openai") {
		t.Errorf("old value survived:\n%s", got)
	}
	if !strings.Contains(got, "# my settings") || !strings.Contains(got, "select a.go:0:1") {
		t.Errorf("comments or sections lost:\n%s", got)
	}
}

func TestSetKeyInFileInsertsBeforeSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	initial := "[run]\nselect a.go:0:1\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatal(err)
	}

	if err := SetKeyInFile(path, "verbose", "true"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	got := string(data)
	if strings.Index(got, "verbose true") > strings.Index(got, "[run]") {
		t.Errorf("new key placed inside a section:\n%s", got)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if !cfg.GetBool("verbose") {
		t.Error("round trip lost the new key")
	}
}

func TestSetKeyInFileCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config")
	if err := SetKeyInFile(path, "ai.model", "gpt-4o"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if got := cfg.GetString("ai.model"); got != "gpt-4o" {
		t.Errorf("ai.model = %q", got)
	}

	// A key with no value is stored as a bare line.
	if err := SetKeyInFile(path, "quiet", ""); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\nquiet") && !strings.HasPrefix(string(data), "quiet") {
		t.Errorf("bare key missing:\n%s", string(data))
	}
}
