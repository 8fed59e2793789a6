package bundler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBundleResolvesLocalImports(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "utils/shared.ts", "export const greeting: string = 'hi';\n")
	entry := write(t, dir, "script.ts", `
import { greeting } from './utils/shared';

refacTools.config({ name: 'Test' });
refacTools.runRefactor(async (ctx) => {
	ctx.log(greeting);
});
`)

	out, err := New().Bundle(entry, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "refacTools.config") {
		t.Fatalf("config call missing from bundle:\n%s", out)
	}
	if !strings.Contains(out, "hi") {
		t.Fatal("imported constant not inlined into bundle")
	}
	if strings.Contains(out, ": string") {
		t.Fatal("type annotations survived bundling")
	}
}

func TestBundleSyntaxErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "broken.ts", "refacTools.config({ name: 'x' )\n")
	if _, err := New().Bundle(entry, dir); err == nil {
		t.Fatal("syntax error must fail the bundle")
	}
}

func TestBundleUnresolvedImportIsFatal(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "missing.ts", "import { x } from './nope';\nrefacTools.config({ name: 'x' });\n")
	if _, err := New().Bundle(entry, dir); err == nil {
		t.Fatal("unresolved import must fail the bundle")
	}
}
