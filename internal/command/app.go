package command

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/config"
	"github.com/refactools/refactool/internal/history"
	"github.com/refactools/refactool/internal/llm"
)

// Env is the resolved application environment shared by commands: loaded
// configuration, its schema, and the workspace directory (the process working
// directory).
type Env struct {
	Config  *config.Config
	Schema  *config.ConfigSchema
	WorkDir string
}

// NewEnv builds the environment from the default config location and the
// current working directory.
func NewEnv() (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return &Env{Config: cfg, Schema: config.DefaultSchema(), WorkDir: workDir}, nil
}

// ScriptRoots returns the catalog roots in precedence order: user scope
// first, then the workspace scripts folder.
func (e *Env) ScriptRoots() ([]catalog.Root, error) {
	var roots []catalog.Root
	if !e.Config.GetBool("scripts.disable-user-scope") {
		userDir := e.Schema.Resolve(e.Config, "scripts.user-dir")
		if userDir == "" {
			var err error
			userDir, err = config.GetUserScriptsDir()
			if err != nil {
				return nil, fmt.Errorf("resolve user scripts directory: %w", err)
			}
		}
		roots = append(roots, catalog.Root{Dir: userDir, Scope: catalog.ScopeUser})
	}
	wsDir := e.Schema.Resolve(e.Config, "scripts.workspace-dir")
	if !filepath.IsAbs(wsDir) {
		wsDir = filepath.Join(e.WorkDir, wsDir)
	}
	roots = append(roots, catalog.Root{Dir: wsDir, Scope: catalog.ScopeWorkspace})
	return roots, nil
}

// OpenHistory loads the usage history store from its configured location.
func (e *Env) OpenHistory() (*history.Store, error) {
	path := e.Schema.Resolve(e.Config, "history.file")
	if path == "" {
		var err error
		path, err = config.GetHistoryPath()
		if err != nil {
			return nil, fmt.Errorf("resolve history path: %w", err)
		}
	}
	return history.Load(path)
}

// apiKeyEnvVars maps a completion service to its conventional API key
// environment variable.
var apiKeyEnvVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"groq":      "GROQ_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// BuildProvider constructs the completion provider from the ai.* options. The
// API key is never stored in config; it is read from the environment variable
// named by ai.api-key-env, or the service's conventional variable.
func (e *Env) BuildProvider() (llm.Provider, error) {
	service := e.Schema.Resolve(e.Config, "ai.service")
	model := e.Schema.Resolve(e.Config, "ai.model")

	keyEnv := e.Config.GetString("ai.api-key-env")
	if keyEnv == "" {
		keyEnv = apiKeyEnvVars[service]
	}
	if keyEnv == "" {
		return nil, fmt.Errorf("no API key environment variable known for service %q; set ai.api-key-env", service)
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("environment variable %s is not set (required for service %q)", keyEnv, service)
	}
	return llm.New(llm.ModelRef{Service: service, Model: model}, apiKey)
}

// LogLevel returns the configured slog level.
func (e *Env) LogLevel() slog.Level {
	switch strings.ToLower(e.Schema.Resolve(e.Config, "log.level")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogBufferSize returns the configured in-memory log buffer size.
func (e *Env) LogBufferSize() int {
	v := e.Schema.Resolve(e.Config, "log.buffer-size")
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 1000
	}
	return n
}
