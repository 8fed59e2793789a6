package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scope identifies which root folder a script was discovered in.
type Scope string

const (
	ScopeUser      Scope = "user"
	ScopeWorkspace Scope = "workspace"
)

// Root is one folder scanned for scripts.
type Root struct {
	Dir   string
	Scope Scope
}

// ScriptDescriptor identifies one discovered script file. Immutable;
// re-derived on every catalog listing.
type ScriptDescriptor struct {
	FilePath string
	RootDir  string
	Scope    Scope
}

// Entry is one runnable script/variant combination offered to the user.
// Ephemeral; rebuilt on every catalog open.
type Entry struct {
	Descriptor ScriptDescriptor
	Config     *RefactorConfig
	Variant    string
	Label      string
}

// Options returns the option list applicable to this entry's variant.
func (e *Entry) Options() []Option {
	return e.Config.OptionsFor(e.Variant)
}

// UsageScorer ranks scripts by run history. Implemented by history.Store.
type UsageScorer interface {
	UsageScore(filePath string) int
}

// Discover enumerates .ts files directly inside each root, in root order.
// It does not recurse, and skips generated type-declaration (.d.ts) files.
// The user-scope root is conventionally listed first, so on a filename
// collision across scopes the user-scope script wins; the duplicate is
// skipped with a warning. An unreadable user-scope folder is skipped silently
// (it may simply not exist); an unreadable workspace folder is logged.
func Discover(roots []Root, logger *slog.Logger) []ScriptDescriptor {
	var out []ScriptDescriptor
	seen := make(map[string]string) // base filename -> first file path
	for _, root := range roots {
		entries, err := os.ReadDir(root.Dir)
		if err != nil {
			if root.Scope == ScopeUser {
				logger.Debug("user script folder not readable", "dir", root.Dir, "error", err)
			} else {
				logger.Warn("script folder not readable", "dir", root.Dir, "error", err)
			}
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			name := ent.Name()
			if !strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".d.ts") {
				continue
			}
			path := filepath.Join(root.Dir, name)
			if prev, dup := seen[name]; dup {
				logger.Warn("duplicate script filename, keeping first discovered",
					"kept", prev, "skipped", path)
				continue
			}
			seen[name] = path
			out = append(out, ScriptDescriptor{FilePath: path, RootDir: root.Dir, Scope: root.Scope})
		}
	}
	return out
}

// Build expands descriptors into catalog entries: extracts each script's
// config, applies enabledWhen predicates against the editor state, expands
// variants, and ranks by usage. Failures are scoped to the offending script;
// the rest of the catalog is unaffected.
func Build(descriptors []ScriptDescriptor, scorer UsageScorer, state EditorState, logger *slog.Logger) []Entry {
	var entries []Entry
	for _, desc := range descriptors {
		src, err := os.ReadFile(desc.FilePath)
		if err != nil {
			logger.Warn("cannot read script", "path", desc.FilePath, "error", err)
			continue
		}
		cfg, err := ExtractConfig(string(src))
		if err != nil {
			logger.Warn("script excluded from catalog", "path", desc.FilePath, "error", err)
			continue
		}
		enabled, err := Enabled(cfg.EnabledWhen, state)
		if err != nil {
			logger.Warn("enabledWhen predicate failed, script disabled", "path", desc.FilePath, "error", err)
			continue
		}
		if !enabled {
			continue
		}
		entries = append(entries, expandVariants(desc, cfg)...)
	}
	if scorer != nil {
		// Stable sort: ties keep discovery order.
		sort.SliceStable(entries, func(i, j int) bool {
			return scorer.UsageScore(entries[i].Descriptor.FilePath) >
				scorer.UsageScore(entries[j].Descriptor.FilePath)
		})
	}
	return entries
}

// expandVariants produces one Entry per declared variant plus the implicit
// default. The default entry keeps the bare script name unless the variants
// map renames it.
func expandVariants(desc ScriptDescriptor, cfg *RefactorConfig) []Entry {
	var out []Entry
	hasDefault := false
	for _, v := range cfg.Variants {
		if v.ID == DefaultVariant {
			hasDefault = true
		}
	}
	if !hasDefault {
		out = append(out, Entry{Descriptor: desc, Config: cfg, Variant: DefaultVariant, Label: cfg.Name})
	}
	for _, v := range cfg.Variants {
		label := cfg.Name + " / " + v.Label
		if v.ID == DefaultVariant && v.Label == "" {
			label = cfg.Name
		}
		out = append(out, Entry{Descriptor: desc, Config: cfg, Variant: v.ID, Label: label})
	}
	return out
}
