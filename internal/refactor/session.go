// Package refactor contains the per-run session context, the sandboxed
// execution of bundled scripts, and the runner that orchestrates one
// invocation end to end.
package refactor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/refactools/refactool/internal/cancel"
	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/history"
	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/llm"
	"github.com/refactools/refactool/internal/vfs"
)

// ErrCancelled is returned by capability calls once the run's coordinator has
// fired. Cancellation is an outcome, not a failure.
var ErrCancelled = errors.New("refactoring cancelled")

// Outcome is the terminal state of a run.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Params configures a Session.
type Params struct {
	Entry           catalog.Entry
	SelectedOptions []string
	Host            host.Host
	Provider        llm.Provider
	History         *history.Store
	Coordinator     *cancel.Coordinator
	Logger          *RunLogger
	WorkDir         string
}

// Session is the live state of one executing script: the capability surface
// handed to the sandboxed callback, bound to exactly one coordinator.
// Destroyed exactly once when the run settles.
type Session struct {
	ID    string
	entry catalog.Entry
	opts  []string

	host     host.Host
	provider llm.Provider
	hist     *history.Store
	coord    *cancel.Coordinator
	log      *RunLogger
	workDir  string
	mem      *vfs.FS

	mu       sync.Mutex
	staged   map[string]any
	teardown sync.Once
}

// NewSession builds a session for one catalog entry.
func NewSession(p Params) *Session {
	return &Session{
		ID:       uuid.NewString(),
		entry:    p.Entry,
		opts:     p.SelectedOptions,
		host:     p.Host,
		provider: p.Provider,
		hist:     p.History,
		coord:    p.Coordinator,
		log:      p.Logger,
		workDir:  p.WorkDir,
		mem:      vfs.New(),
		staged:   make(map[string]any),
	}
}

// Variant returns the launched entry's variant id.
func (s *Session) Variant() string { return s.entry.Variant }

// SelectedOptions returns the option ids chosen at launch.
func (s *Session) SelectedOptions() []string { return append([]string(nil), s.opts...) }

// HasOption reports whether an option id was chosen.
func (s *Session) HasOption(id string) bool {
	for _, o := range s.opts {
		if o == id {
			return true
		}
	}
	return false
}

// Coordinator returns the run's cancellation coordinator.
func (s *Session) Coordinator() *cancel.Coordinator { return s.coord }

// Mem returns the session's memory filesystem.
func (s *Session) Mem() *vfs.FS { return s.mem }

// checkActive short-circuits capability calls after cancellation.
func (s *Session) checkActive() error {
	if s.coord.IsCancelled() {
		return ErrCancelled
	}
	return nil
}

// Teardown releases the session's resources: every memory-backed file is
// deleted regardless of outcome. Idempotent; safe to invoke from either side
// of the completion/cancellation race.
func (s *Session) Teardown() {
	s.teardown.Do(func() {
		if err := s.mem.DeleteAll(); err != nil {
			s.log.Logger().Warn("session teardown", "error", err)
		}
		s.log.Logger().Debug("session torn down", "session", s.ID)
	})
}

type raced[T any] struct {
	v   T
	ok  bool
	err error
}

// race runs fn off-loop and races its settlement against cancellation. The
// loser's result is discarded; fn's resources are released by the shared
// teardown when the run settles.
func race[T any](c *cancel.Coordinator, fn func() (T, bool, error)) (T, bool, error) {
	ch := make(chan raced[T], 1)
	go func() {
		v, ok, err := fn()
		ch <- raced[T]{v, ok, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.ok, r.err
	case <-c.Done():
		var zero T
		return zero, false, ErrCancelled
	}
}

// callContext derives a context cancelled when the coordinator fires. The
// returned stop must be called to release the listener.
func (s *Session) callContext() (context.Context, func()) {
	ctx, cancelFn := context.WithCancel(context.Background())
	remove := s.coord.OnCancel(cancelFn)
	return ctx, func() {
		remove()
		cancelFn()
	}
}

// --- Prompting ---

// PromptText requests free text. ok is false when the user dismissed the
// prompt.
func (s *Session) PromptText(message, defaultValue string) (string, bool, error) {
	if err := s.checkActive(); err != nil {
		return "", false, err
	}
	return race(s.coord, func() (string, bool, error) {
		return s.host.Input(message, defaultValue)
	})
}

// PromptQuickPick requests a single choice.
func (s *Session) PromptQuickPick(title string, items []host.PickItem) (string, bool, error) {
	if err := s.checkActive(); err != nil {
		return "", false, err
	}
	return race(s.coord, func() (string, bool, error) {
		return s.host.QuickPick(title, items)
	})
}

// PromptMultiQuickPick requests any number of choices.
func (s *Session) PromptMultiQuickPick(title string, items []host.PickItem) ([]string, bool, error) {
	if err := s.checkActive(); err != nil {
		return nil, false, err
	}
	return race(s.coord, func() ([]string, bool, error) {
		return s.host.MultiQuickPick(title, items)
	})
}

// PromptDialog shows a button dialog and returns the chosen label.
func (s *Session) PromptDialog(message, title string, buttons []string) (string, bool, error) {
	if err := s.checkActive(); err != nil {
		return "", false, err
	}
	return race(s.coord, func() (string, bool, error) {
		return s.host.Dialog(message, title, buttons)
	})
}

// WaitTextSelection blocks until the user captures a selection.
func (s *Session) WaitTextSelection(message, buttonLabel string) (*host.Selection, bool, error) {
	if err := s.checkActive(); err != nil {
		return nil, false, err
	}
	return race(s.coord, func() (*host.Selection, bool, error) {
		sel, err := s.host.WaitSelection(message, buttonLabel)
		return sel, sel != nil, err
	})
}

// --- Editor access ---

// ActiveEditor resolves the editor in focus at call time.
func (s *Session) ActiveEditor() (host.Editor, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s.host.ActiveEditor()
}

// Editor resolves an editor by stable identity.
func (s *Session) Editor(id string) (host.Editor, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s.host.Editor(id)
}

// Selection returns the current selection, or nil when there is none.
func (s *Session) Selection() (*host.Selection, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s.host.Selection()
}

// ReplaceSelection splices text over a previously captured selection.
func (s *Session) ReplaceSelection(sel *host.Selection, text string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	ed, err := s.host.Editor(sel.EditorID)
	if err != nil {
		return err
	}
	return ed.Replace(sel.Start, sel.End, text)
}

// OpenFile opens a file as an editor.
func (s *Session) OpenFile(path string, beside bool) (host.Editor, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s.host.OpenFile(path, beside)
}

// NewUnsavedFile opens an untitled editor pre-filled with content.
func (s *Session) NewUnsavedFile(content, language string) (host.Editor, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s.host.NewUntitled(content, language)
}

// --- History ---

// StageValue records a key/value pair in the run's value bag; the bag is
// flushed to durable history only on success.
func (s *Session) StageValue(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[key] = value
}

// StagedValues returns a copy of the run's value bag.
func (s *Session) StagedValues() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.staged))
	for k, v := range s.staged {
		out[k] = v
	}
	return out
}

// LastRun returns the previous successful run's record for this script, or
// nil. The current run's staged values are never visible here.
func (s *Session) LastRun() *history.Run {
	return s.hist.LastRun(s.entry.Descriptor.FilePath)
}

// AllRuns returns every recorded run for this script, oldest first.
func (s *Session) AllRuns() []history.Run {
	return s.hist.Runs(s.entry.Descriptor.FilePath)
}

// --- Completion ---

// Complete performs a completion, aborted on cancellation. Usage is logged.
func (s *Session) Complete(req llm.Request) (llm.Result, error) {
	if err := s.checkActive(); err != nil {
		return llm.Result{}, err
	}
	ctx, stop := s.callContext()
	defer stop()
	res, err := s.provider.Complete(ctx, req)
	if err != nil {
		if s.coord.IsCancelled() {
			return llm.Result{}, ErrCancelled
		}
		return llm.Result{}, err
	}
	s.log.Logger().Info("completion finished",
		"prompt_tokens", res.Usage.PromptTokens,
		"output_tokens", res.Usage.OutputTokens)
	return res, nil
}

// CompleteStream starts a streamed completion whose underlying request is
// aborted when the run is cancelled.
func (s *Session) CompleteStream(req llm.Request) (*llm.Stream, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	ctx, stop := s.callContext()
	stream, err := s.provider.CompleteStream(ctx, req)
	if err != nil {
		stop()
		if s.coord.IsCancelled() {
			return nil, ErrCancelled
		}
		return nil, err
	}
	// The stream outlives this call and must still abort on a later cancel,
	// so the listener stays registered until the stream settles (exhausted,
	// failed, or cancelled) or the coordinator fires, whichever is first.
	go func() {
		select {
		case <-stream.Done():
		case <-s.coord.Done():
		}
		stop()
	}()
	return stream, nil
}

// --- Messages and progress ---

func (s *Session) ShowInfo(msg string)    { s.host.ShowInfo(msg) }
func (s *Session) ShowWarning(msg string) { s.host.ShowWarning(msg) }
func (s *Session) ShowError(msg string)   { s.host.ShowError(msg) }

// SetProgress reports transient progress text, dropped after cancellation.
func (s *Session) SetProgress(msg string) {
	if s.coord.IsCancelled() {
		return
	}
	s.host.SetProgress(msg)
}

// ForceCancel lets the script terminate its own run.
func (s *Session) ForceCancel() { s.coord.ForceCancel() }

// Log writes a line to the run log.
func (s *Session) Log(msg string) {
	s.log.Logger().Info(msg, "session", s.ID)
	s.log.Print(msg)
}

// newMemPath allocates a fresh path in the session's memory filesystem.
func (s *Session) newMemPath(dir, ext string) string {
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return vfs.Scheme + "/" + dir + "/" + uuid.NewString() + ext
}
