package refactor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/refactools/refactool/internal/cancel"
	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/history"
	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/llm"
)

// stubProvider is a canned completion backend. When block is non-nil,
// Complete parks until the channel is closed or the context is cancelled.
type stubProvider struct {
	text   string
	chunks []string
	block  chan struct{}
}

func (p *stubProvider) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return llm.Result{}, ctx.Err()
		}
	}
	return llm.Result{Text: p.text, Usage: llm.Usage{PromptTokens: 3, OutputTokens: 7}}, nil
}

func (p *stubProvider) CompleteStream(ctx context.Context, req llm.Request) (*llm.Stream, error) {
	return llm.NewStaticStream(p.chunks...), nil
}

func testEntry(name string) catalog.Entry {
	return catalog.Entry{
		Descriptor: catalog.ScriptDescriptor{
			FilePath: "/scripts/" + name + ".ts",
			RootDir:  "/scripts",
			Scope:    catalog.ScopeWorkspace,
		},
		Variant: "quickReplace",
		Label:   "Quick Replace",
	}
}

func newTestSession(t *testing.T, f *host.Fake, p llm.Provider) (*Session, *history.Store) {
	t.Helper()
	hist := history.NewMemory()
	s := NewSession(Params{
		Entry:       testEntry("session"),
		Host:        f,
		Provider:    p,
		History:     hist,
		Coordinator: cancel.New(),
		Logger:      NewRunLogger(io.Discard, 64),
		WorkDir:     t.TempDir(),
	})
	t.Cleanup(s.Teardown)
	return s, hist
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPromptShortCircuitsAfterCancel(t *testing.T) {
	f := host.NewFake()
	f.InputAnswers = []string{"never seen"}
	s, _ := newTestSession(t, f, &stubProvider{})

	s.Coordinator().Signal()
	if _, _, err := s.PromptText("name?", ""); err != ErrCancelled {
		t.Fatalf("PromptText after cancel: err = %v, want ErrCancelled", err)
	}
	if _, _, err := s.PromptDialog("sure?", "", nil); err != ErrCancelled {
		t.Fatalf("PromptDialog after cancel: err = %v, want ErrCancelled", err)
	}
}

func TestPromptUnblocksOnCancel(t *testing.T) {
	f := host.NewFake()
	f.InputBlocker = make(chan struct{})
	defer close(f.InputBlocker)
	s, _ := newTestSession(t, f, &stubProvider{})

	type res struct {
		ok  bool
		err error
	}
	got := make(chan res, 1)
	go func() {
		_, ok, err := s.PromptText("name?", "")
		got <- res{ok, err}
	}()

	s.Coordinator().Signal()
	select {
	case r := <-got:
		if r.err != ErrCancelled {
			t.Fatalf("err = %v, want ErrCancelled", r.err)
		}
		if r.ok {
			t.Fatal("ok = true for a cancelled prompt")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not unblock on cancel")
	}
}

func TestCompleteUnblocksOnCancel(t *testing.T) {
	f := host.NewFake()
	p := &stubProvider{block: make(chan struct{})}
	defer close(p.block)
	s, _ := newTestSession(t, f, p)

	got := make(chan error, 1)
	go func() {
		_, err := s.Complete(llm.Request{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
		got <- err
	}()

	s.Coordinator().Signal()
	select {
	case err := <-got:
		if err != ErrCancelled {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not unblock on cancel")
	}
}

func TestCompleteStreamReleasesListenerWhenExhausted(t *testing.T) {
	p := &stubProvider{chunks: []string{"a", "ab", "abc"}}
	s, _ := newTestSession(t, host.NewFake(), p)
	base := s.Coordinator().ListenerCount()

	stream, err := s.CompleteStream(llm.Request{})
	if err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}
	if got := s.Coordinator().ListenerCount(); got != base+1 {
		t.Fatalf("ListenerCount = %d while streaming, want %d", got, base+1)
	}

	for {
		if _, ok := stream.Next(); !ok {
			break
		}
	}
	waitFor(t, "abort listener released", func() bool {
		return s.Coordinator().ListenerCount() == base
	})
}

func TestCompleteStreamReleasesListenerOnCancel(t *testing.T) {
	p := &stubProvider{chunks: []string{"a"}}
	s, _ := newTestSession(t, host.NewFake(), p)

	if _, err := s.CompleteStream(llm.Request{}); err != nil {
		t.Fatalf("CompleteStream: %v", err)
	}
	s.Coordinator().Signal()
	waitFor(t, "abort listener released", func() bool {
		return s.Coordinator().ListenerCount() == 0
	})
}

func TestStagedValuesInvisibleUntilCommitted(t *testing.T) {
	s, hist := newTestSession(t, host.NewFake(), &stubProvider{})

	s.StageValue("instructions", "modernize")
	if last := s.LastRun(); last != nil {
		t.Fatalf("LastRun = %+v before commit, want nil", last)
	}

	path := s.entry.Descriptor.FilePath
	if err := hist.Record(path, s.Variant(), s.StagedValues()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	last := s.LastRun()
	if last == nil {
		t.Fatal("LastRun = nil after commit")
	}
	if last.Variant != "quickReplace" || last.Values["instructions"] != "modernize" {
		t.Fatalf("LastRun = %+v", last)
	}
}

func TestTeardownDeletesMemoryFiles(t *testing.T) {
	s, _ := newTestSession(t, host.NewFake(), &stubProvider{})

	p := s.newMemPath("tmp", ".txt")
	if err := s.mem.Write(p, []byte("scratch")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(s.mem.Paths()) != 1 {
		t.Fatalf("Paths = %v, want one entry", s.mem.Paths())
	}

	s.Teardown()
	if got := s.mem.Paths(); len(got) != 0 {
		t.Fatalf("Paths after teardown = %v, want none", got)
	}
	// Idempotent.
	s.Teardown()
}

func TestSelectedOptions(t *testing.T) {
	s := NewSession(Params{
		Entry:           testEntry("opts"),
		SelectedOptions: []string{"dry-run", "verbose"},
		Host:            host.NewFake(),
		Provider:        &stubProvider{},
		History:         history.NewMemory(),
		Coordinator:     cancel.New(),
		Logger:          NewRunLogger(io.Discard, 16),
	})
	defer s.Teardown()

	if !s.HasOption("dry-run") || s.HasOption("missing") {
		t.Fatal("HasOption misreported selected options")
	}
	got := s.SelectedOptions()
	got[0] = "mutated"
	if s.opts[0] != "dry-run" {
		t.Fatal("SelectedOptions returned a shared slice")
	}
}
