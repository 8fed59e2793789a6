package command

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/config"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{
		Config:  config.NewConfig(),
		Schema:  config.DefaultSchema(),
		WorkDir: t.TempDir(),
	}
}

func TestScriptRootsOrder(t *testing.T) {
	env := newTestEnv(t)
	userDir := t.TempDir()
	env.Config.SetGlobalOption("scripts.user-dir", userDir)

	roots, err := env.ScriptRoots()
	if err != nil {
		t.Fatalf("ScriptRoots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	if roots[0].Scope != catalog.ScopeUser || roots[0].Dir != userDir {
		t.Errorf("roots[0] = %+v, want user scope first", roots[0])
	}
	if roots[1].Scope != catalog.ScopeWorkspace {
		t.Errorf("roots[1] = %+v, want workspace scope", roots[1])
	}
	want := filepath.Join(env.WorkDir, ".refactorings")
	if roots[1].Dir != want {
		t.Errorf("workspace dir = %q, want %q", roots[1].Dir, want)
	}
}

func TestScriptRootsDisableUserScope(t *testing.T) {
	env := newTestEnv(t)
	env.Config.SetGlobalOption("scripts.disable-user-scope", "true")

	roots, err := env.ScriptRoots()
	if err != nil {
		t.Fatalf("ScriptRoots: %v", err)
	}
	if len(roots) != 1 || roots[0].Scope != catalog.ScopeWorkspace {
		t.Fatalf("roots = %+v, want workspace only", roots)
	}
}

func TestScriptRootsAbsoluteWorkspaceDir(t *testing.T) {
	env := newTestEnv(t)
	env.Config.SetGlobalOption("scripts.disable-user-scope", "true")
	abs := t.TempDir()
	env.Config.SetGlobalOption("scripts.workspace-dir", abs)

	roots, err := env.ScriptRoots()
	if err != nil {
		t.Fatalf("ScriptRoots: %v", err)
	}
	if roots[0].Dir != abs {
		t.Errorf("workspace dir = %q, want %q", roots[0].Dir, abs)
	}
}

func TestBuildProviderRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := env.BuildProvider(); err == nil {
		t.Fatal("expected error without API key")
	} else if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error should name the variable, got: %v", err)
	}
}

func TestBuildProviderUsesConfiguredKeyEnv(t *testing.T) {
	env := newTestEnv(t)
	env.Config.SetGlobalOption("ai.api-key-env", "MY_CUSTOM_KEY")
	t.Setenv("MY_CUSTOM_KEY", "sk-test")

	if _, err := env.BuildProvider(); err != nil {
		t.Fatalf("BuildProvider: %v", err)
	}
}

func TestBuildProviderUnknownService(t *testing.T) {
	env := newTestEnv(t)
	env.Config.SetGlobalOption("ai.service", "mystery")

	if _, err := env.BuildProvider(); err == nil {
		t.Fatal("expected error for unknown service without ai.api-key-env")
	}
}

func TestLogBufferSize(t *testing.T) {
	env := newTestEnv(t)
	if got := env.LogBufferSize(); got != 1000 {
		t.Errorf("default = %d, want 1000", got)
	}
	env.Config.SetGlobalOption("log.buffer-size", "250")
	if got := env.LogBufferSize(); got != 250 {
		t.Errorf("configured = %d, want 250", got)
	}
	env.Config.SetGlobalOption("log.buffer-size", "junk")
	if got := env.LogBufferSize(); got != 1000 {
		t.Errorf("invalid value = %d, want fallback 1000", got)
	}
}
