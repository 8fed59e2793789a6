package catalog

import (
	"errors"
	"strings"
	"testing"
)

const sampleScript = `
import { runGitCommand } from './utils/git';

// Correct grammar in the selected text.
refacTools.config({
	name: 'Correct grammar',
	description: "Fix spelling and grammar ('weird' edge)",
	enabledWhen: {
		hasSelection: true,
	},
	variants: {
		quickReplace: 'Quick Replace',
		diff: 'Show Diff',
	},
	options: {
		formal: {
			label: 'Formal tone',
			default: false,
			applicableVariants: ['diff'],
		},
	},
});

refacTools.runRefactor(async (ctx) => {
	const selected = ctx.activeEditor.getSelected();
	if (!selected) throw new Error('No code selected');
});
`

func TestExtractConfigLiteral(t *testing.T) {
	lit, err := ExtractConfigLiteral(sampleScript)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.HasPrefix(lit, "{") || !strings.HasSuffix(lit, "}") {
		t.Fatalf("literal not braced: %q", lit)
	}
	if !strings.Contains(lit, "quickReplace") {
		t.Fatalf("literal truncated: %q", lit)
	}
	// The scan must not be confused by the later runRefactor body.
	if strings.Contains(lit, "runRefactor") {
		t.Fatalf("literal overran the call: %q", lit)
	}
}

func TestExtractConfigLiteralNestedParens(t *testing.T) {
	src := "refacTools.config({\n\tname: 'x',\n\tdescription: 'uses (parens) and })',\n});\n"
	lit, err := ExtractConfigLiteral(src)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(lit, "})'") {
		t.Fatalf("brace inside string broke the scan: %q", lit)
	}
}

func TestExtractConfigLiteralTypeArgument(t *testing.T) {
	src := "refacTools.config<Variants>({ name: 'x' })\n"
	if _, err := ExtractConfigLiteral(src); err != nil {
		t.Fatalf("type argument form not accepted: %v", err)
	}
}

func TestExtractConfigMissing(t *testing.T) {
	_, err := ExtractConfigLiteral("const x = 1;\n")
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("got %v, want ErrNoConfig", err)
	}
}

func TestExtractConfigRejectsIdentifierReference(t *testing.T) {
	src := "const name = 'x';\nrefacTools.config({ name: name });\n"
	if _, err := ExtractConfig(src); err == nil {
		t.Fatal("literal referencing an external identifier must be rejected")
	}
}

func TestExtractConfigDecodes(t *testing.T) {
	cfg, err := ExtractConfig(sampleScript)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cfg.Name != "Correct grammar" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if cfg.EnabledWhen == nil || cfg.EnabledWhen.HasSelection == nil || !*cfg.EnabledWhen.HasSelection {
		t.Fatal("enabledWhen.hasSelection not decoded")
	}
	if len(cfg.Variants) != 2 || cfg.Variants[0].ID != "quickReplace" || cfg.Variants[1].Label != "Show Diff" {
		t.Fatalf("variants = %+v", cfg.Variants)
	}
	if len(cfg.Options) != 1 || cfg.Options[0].ID != "formal" {
		t.Fatalf("options = %+v", cfg.Options)
	}
	if got := cfg.OptionsFor("quickReplace"); len(got) != 0 {
		t.Fatalf("formal option should not apply to quickReplace: %+v", got)
	}
	if got := cfg.OptionsFor("diff"); len(got) != 1 {
		t.Fatalf("formal option should apply to diff: %+v", got)
	}
}

func TestParseLiteralForms(t *testing.T) {
	obj, err := ParseLiteral("{\n\t// comment\n\ta: 1.5,\n\tb: [-2, 'x', `tmpl`, true, null],\n\t'c d': { nested: 0x10 },\n\t/* block */ e: false,\n}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, _ := obj.Get("a"); v != 1.5 {
		t.Fatalf("a = %v", v)
	}
	arr, _ := obj.Get("b")
	vals, ok := arr.([]any)
	if !ok || len(vals) != 5 || vals[0] != -2.0 || vals[2] != "tmpl" || vals[4] != nil {
		t.Fatalf("b = %#v", arr)
	}
	nested, _ := obj.Get("c d")
	no, ok := nested.(*Object)
	if !ok {
		t.Fatalf("c d = %#v", nested)
	}
	if v, _ := no.Get("nested"); v != 16.0 {
		t.Fatalf("nested = %v", v)
	}
}

func TestParseLiteralRejectsTemplateSubstitution(t *testing.T) {
	if _, err := ParseLiteral("{ a: `hi ${name}` }"); err == nil {
		t.Fatal("template substitution must be rejected")
	}
}

func TestParseLiteralRejectsCall(t *testing.T) {
	if _, err := ParseLiteral("{ a: getName() }"); err == nil {
		t.Fatal("call expression must be rejected")
	}
}

func TestParseLiteralKeyOrder(t *testing.T) {
	obj, err := ParseLiteral("{ z: 1, a: 2, m: 3 }")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	keys := obj.Keys()
	if len(keys) != 3 || keys[0] != "z" || keys[1] != "a" || keys[2] != "m" {
		t.Fatalf("keys = %v", keys)
	}
}
