package refactor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/history"
	"github.com/refactools/refactool/internal/host"
)

// stubBundler skips bundling and hands the sandbox a fixed module.
type stubBundler struct{ code string }

func (b stubBundler) Bundle(entryFile, rootDir string) (string, error) {
	return b.code, nil
}

func newTestRunner(t *testing.T, f *host.Fake, p *stubProvider, script string) (*Runner, catalog.Entry) {
	t.Helper()
	return &Runner{
		Host:     f,
		Provider: p,
		History:  history.NewMemory(),
		Logger:   NewRunLogger(io.Discard, 128),
		Bundler:  stubBundler{code: script},
		WorkDir:  t.TempDir(),
	}, testEntry("runner")
}

const modernizeScript = `
refacTools.config({
	name: 'Modernize Loop',
	variants: { quickReplace: 'Quick Replace' },
});
refacTools.runRefactor(async (ctx) => {
	const selected = ctx.activeEditor.getSelected();
	if (selected === null) {
		throw new Error('no code selected');
	}
	const result = await ctx.ai.complete({
		system: 'You refactor code.',
		prompt: selected.text,
	});
	selected.replaceWith(result);
	ctx.history.add('approach', 'for-of');
});
`

func TestRunnerSuccess(t *testing.T) {
	src := "const items = [];\nfor (let i = 0; i < items.length; i++) {}\n"
	start := strings.Index(src, "for")
	end := strings.Index(src, "{}") + len("{}")

	f := host.NewFake()
	f.AddEditor("main.js", "javascript", src)
	f.Select("main.js", start, end)

	replacement := "for (const item of items) {}"
	r, entry := newTestRunner(t, f, &stubProvider{text: replacement}, modernizeScript)

	outcome, err := r.Run(context.Background(), entry, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %v, want succeeded", outcome)
	}

	ed, _ := f.Editor("main.js")
	content, _ := ed.Content()
	want := src[:start] + replacement + src[end:]
	if content != want {
		t.Fatalf("editor content = %q, want %q", content, want)
	}

	last := r.History.LastRun(entry.Descriptor.FilePath)
	if last == nil {
		t.Fatal("no history recorded for a successful run")
	}
	if last.Variant != "quickReplace" || last.Values["approach"] != "for-of" {
		t.Fatalf("history = %+v", last)
	}
}

func TestRunnerScriptFailure(t *testing.T) {
	f := host.NewFake()
	f.AddEditor("main.js", "javascript", "let x = 1;")
	// No selection: the script throws.
	r, entry := newTestRunner(t, f, &stubProvider{text: "unused"}, modernizeScript)

	outcome, err := r.Run(context.Background(), entry, nil)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v (%T), want *ScriptError", err, err)
	}
	if !strings.Contains(se.Message, "no code selected") {
		t.Fatalf("message = %q", se.Message)
	}

	if r.History.LastRun(entry.Descriptor.FilePath) != nil {
		t.Fatal("failed run leaked values into history")
	}
	foundNotice := false
	for _, n := range f.Notices {
		if strings.HasPrefix(n, "error:") && strings.Contains(n, "failed") {
			foundNotice = true
		}
	}
	if !foundNotice {
		t.Fatalf("no failure notice shown; notices = %v", f.Notices)
	}
}

func TestRunnerScriptNeverRegisters(t *testing.T) {
	f := host.NewFake()
	r, entry := newTestRunner(t, f, &stubProvider{}, `refacTools.config({ name: 'Inert' });`)

	outcome, err := r.Run(context.Background(), entry, nil)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	if err == nil || !strings.Contains(err.Error(), "runRefactor") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunnerBundleLosesConfig(t *testing.T) {
	f := host.NewFake()
	r, entry := newTestRunner(t, f, &stubProvider{}, `console.log('mangled');`)

	outcome, err := r.Run(context.Background(), entry, nil)
	if outcome != OutcomeFailed || err == nil {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
}

const cancellingScript = `
refacTools.config({ name: 'Cancelling' });
refacTools.runRefactor(async (ctx) => {
	ctx.onCancel(() => { ctx.log('cleanup ran'); });
	ctx.history.add('leaked', 'yes');
	ctx.forceCancel();
	for (;;) {}
});
`

func TestRunnerForceCancel(t *testing.T) {
	f := host.NewFake()
	var out bytes.Buffer
	r, entry := newTestRunner(t, f, &stubProvider{}, cancellingScript)
	r.Logger = NewRunLogger(&out, 128)

	outcome, err := r.Run(context.Background(), entry, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", outcome)
	}
	if !strings.Contains(out.String(), "cleanup ran") {
		t.Fatalf("cleanup callback did not run; output = %q", out.String())
	}
	if r.History.LastRun(entry.Descriptor.FilePath) != nil {
		t.Fatal("cancelled run leaked values into history")
	}
	for _, n := range f.Notices {
		if strings.HasPrefix(n, "error:") {
			t.Fatalf("cancellation raised an error notice: %q", n)
		}
	}
}

const busyProgressScript = `
refacTools.config({ name: 'Busy' });
refacTools.runRefactor(async (ctx) => {
	await ctx.ide.showProgress('crunching', () => {
		ctx.forceCancel();
		for (;;) {}
	});
});
`

func TestRunnerCancelDuringShowProgress(t *testing.T) {
	f := host.NewFake()
	r, entry := newTestRunner(t, f, &stubProvider{}, busyProgressScript)

	outcome, err := r.Run(context.Background(), entry, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", outcome)
	}
}

const quietProgressScript = `
refacTools.config({ name: 'Quiet' });
refacTools.runRefactor(async (ctx) => {
	ctx.ide.showProgress('crunching', () => { ctx.forceCancel(); });
	ctx.log('continued past progress');
});
`

func TestRunnerShowProgressSurfacesCancellation(t *testing.T) {
	f := host.NewFake()
	var out bytes.Buffer
	r, entry := newTestRunner(t, f, &stubProvider{}, quietProgressScript)
	r.Logger = NewRunLogger(&out, 128)

	outcome, err := r.Run(context.Background(), entry, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", outcome)
	}
	// The progress scope must propagate the cancellation, not the body's
	// return value; the script never resumes past it.
	if strings.Contains(out.String(), "continued past progress") {
		t.Fatalf("script continued after cancellation; output = %q", out.String())
	}
}

const historyScript = `
refacTools.config({ name: 'Remembering' });
refacTools.runRefactor(async (ctx) => {
	const last = ctx.history.getLast();
	if (last === null) {
		ctx.history.add('instructions', 'first');
	} else if (last.get('instructions') !== 'first') {
		throw new Error('unexpected history value: ' + last.get('instructions'));
	} else {
		ctx.history.add('instructions', 'second');
	}
});
`

func TestRunnerHistoryAcrossRuns(t *testing.T) {
	f := host.NewFake()
	r, entry := newTestRunner(t, f, &stubProvider{}, historyScript)

	for i := 0; i < 2; i++ {
		outcome, err := r.Run(context.Background(), entry, nil)
		if err != nil || outcome != OutcomeSucceeded {
			t.Fatalf("run %d: outcome = %v, err = %v", i, outcome, err)
		}
	}
	last := r.History.LastRun(entry.Descriptor.FilePath)
	if last == nil || last.Values["instructions"] != "second" {
		t.Fatalf("history after two runs = %+v", last)
	}
}

const promptScript = `
refacTools.config({ name: 'Prompting' });
refacTools.runRefactor(async (ctx) => {
	await ctx.prompt.text('value?');
});
`

func TestRunnerRejectsConcurrentRuns(t *testing.T) {
	f := host.NewFake()
	f.InputAnswers = []string{"x"}
	f.InputBlocker = make(chan struct{})
	r, entry := newTestRunner(t, f, &stubProvider{}, promptScript)

	type result struct {
		outcome Outcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		o, err := r.Run(context.Background(), entry, nil)
		first <- result{o, err}
	}()
	waitFor(t, "the first run to start", func() bool { return r.running.Load() })

	if _, err := r.Run(context.Background(), entry, nil); !errors.Is(err, ErrRunActive) {
		t.Fatalf("concurrent Run: err = %v, want ErrRunActive", err)
	}

	close(f.InputBlocker)
	got := <-first
	if got.err != nil || got.outcome != OutcomeSucceeded {
		t.Fatalf("first run: outcome = %v, err = %v", got.outcome, got.err)
	}
}

func TestRunnerContextCancellation(t *testing.T) {
	f := host.NewFake()
	f.InputBlocker = make(chan struct{})
	defer close(f.InputBlocker)
	r, entry := newTestRunner(t, f, &stubProvider{}, promptScript)

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan result2, 1)
	go func() {
		o, err := r.Run(ctx, entry, nil)
		done <- result2{o, err}
	}()
	waitFor(t, "the run to start", func() bool { return r.running.Load() })
	cancelCtx()

	got := <-done
	if got.err != nil {
		t.Fatalf("Run: %v", got.err)
	}
	if got.outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", got.outcome)
	}
}

type result2 struct {
	outcome Outcome
	err     error
}
