package config

import (
	"os"
	"strings"
	"testing"
)

func TestSchemaResolveOrder(t *testing.T) {
	s := DefaultSchema()
	cfg := NewConfig()

	// Schema default when nothing else is set.
	os.Unsetenv("REFACTOOL_AI_SERVICE")
	if got := s.Resolve(cfg, "ai.service"); got != "openai" {
		t.Errorf("default: got %q", got)
	}

	// Config value beats the default.
	cfg.SetGlobalOption("ai.service", "groq")
	if got := s.Resolve(cfg, "ai.service"); got != "groq" {
		t.Errorf("config: got %q", got)
	}

	// Environment beats both.
	t.Setenv("REFACTOOL_AI_SERVICE", "anthropic")
	if got := s.Resolve(cfg, "ai.service"); got != "anthropic" {
		t.Errorf("env: got %q", got)
	}
}

func TestValidateConfig(t *testing.T) {
	s := DefaultSchema()
	cfg := NewConfig()
	cfg.SetGlobalOption("verbose", "yes")
	cfg.SetGlobalOption("ai.max-tokens", "not-an-int")
	cfg.SetCommandOption("run", "select", "a.go:1:2")
	cfg.SetCommandOption("run", "bogus", "x")

	issues := ValidateConfig(cfg, s)
	if len(issues) != 2 {
		t.Fatalf("issues = %v, want 2", issues)
	}
	joined := strings.Join(issues, "\n")
	if !strings.Contains(joined, "ai.max-tokens") || !strings.Contains(joined, "bogus") {
		t.Errorf("issues = %v", issues)
	}
}

func TestValidateConfigGlobalKeyInSection(t *testing.T) {
	s := DefaultSchema()
	cfg := NewConfig()
	// Global keys may appear in command sections for per-command overrides.
	cfg.SetCommandOption("run", "ai.model", "gpt-4o-mini")
	if issues := ValidateConfig(cfg, s); len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
}

func TestFormatHelpListsAllSections(t *testing.T) {
	help := DefaultSchema().FormatHelp()
	for _, want := range []string{"Global Options:", "[list] Options:", "[run] Options:", "ai.service", "scripts.user-dir", "REFACTOOL_LOG_LEVEL"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}
