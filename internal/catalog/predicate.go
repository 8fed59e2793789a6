package catalog

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// EditorState is the snapshot of editor state a predicate is evaluated
// against. Captured once per catalog build.
type EditorState struct {
	HasSelection bool
	Language     string
	FileText     string
}

// Enabled reports whether a script with the given predicate should appear in
// the catalog. All supplied conditions must pass. A nil predicate is always
// enabled.
func Enabled(p *Predicate, state EditorState) (bool, error) {
	if p == nil {
		return true, nil
	}
	if p.HasSelection != nil && *p.HasSelection != state.HasSelection {
		return false, nil
	}
	if p.ActiveFileContains != "" && !strings.Contains(state.FileText, p.ActiveFileContains) {
		return false, nil
	}
	if len(p.ActiveLanguageIs) > 0 {
		found := false
		for _, lang := range p.ActiveLanguageIs {
			if lang == state.Language {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	if p.Expression != "" {
		ok, err := evalExpression(p.Expression, state)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evalExpression evaluates an enabledWhen.expression predicate. The
// environment is side-effect-free: booleans describing the editor state plus
// a fileContains helper.
func evalExpression(src string, state EditorState) (bool, error) {
	env := map[string]any{
		"hasSelection": state.HasSelection,
		"language":     state.Language,
		"fileContains": func(s string) bool { return strings.Contains(state.FileText, s) },
	}
	prog, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile enabledWhen expression: %w", err)
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate enabledWhen expression: %w", err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("enabledWhen expression did not yield a boolean")
	}
	return b, nil
}
