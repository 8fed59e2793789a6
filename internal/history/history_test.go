package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordAndLastRun(t *testing.T) {
	s := NewMemory()
	if got := s.LastRun("/x/a.ts"); got != nil {
		t.Fatalf("empty store LastRun = %+v", got)
	}
	if err := s.Record("/x/a.ts", "default", map[string]any{"instructions": "tidy up"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record("/x/a.ts", "quick", map[string]any{"instructions": "rename"}); err != nil {
		t.Fatal(err)
	}
	last := s.LastRun("/x/a.ts")
	if last == nil || last.Variant != "quick" || last.Values["instructions"] != "rename" {
		t.Fatalf("last = %+v", last)
	}
	if runs := s.Runs("/x/a.ts"); len(runs) != 2 || runs[0].Variant != "default" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestUsageWindowCap(t *testing.T) {
	s := NewMemory()
	if err := s.Record("/x/old.ts", "default", nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < usageWindow; i++ {
		if err := s.Record("/x/busy.ts", "default", nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.UsageScore("/x/old.ts"); got != 0 {
		t.Fatalf("old usage should have aged out of the window, score = %d", got)
	}
	if got := s.UsageScore("/x/busy.ts"); got != usageWindow {
		t.Fatalf("busy score = %d, want %d", got, usageWindow)
	}
}

func TestUsageScoreMonotonic(t *testing.T) {
	s := NewMemory()
	for i := 0; i < 3; i++ {
		if err := s.Record("/x/a.ts", "default", nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Record("/x/b.ts", "default", nil); err != nil {
		t.Fatal(err)
	}
	if s.UsageScore("/x/a.ts") <= s.UsageScore("/x/b.ts") {
		t.Fatal("more-used script must score higher")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record("/x/a.ts", "diff", map[string]any{"k": "v"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	last := reloaded.LastRun("/x/a.ts")
	if last == nil || last.Variant != "diff" || last.Values["k"] != "v" {
		t.Fatalf("reloaded last = %+v", last)
	}
	if got := reloaded.UsageScore("/x/a.ts"); got != 1 {
		t.Fatalf("reloaded usage score = %d", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope", "history.json"))
	if err != nil {
		t.Fatalf("missing file must yield an empty store: %v", err)
	}
	if s.LastRun("/x/a.ts") != nil {
		t.Fatal("expected empty store")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed history must be an error")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Record(fmt.Sprintf("/x/%d.ts", i), "default", nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.UsageScore("/x/0.ts") != 0 || reloaded.LastRun("/x/0.ts") != nil {
		t.Fatal("Clear did not persist")
	}
}
