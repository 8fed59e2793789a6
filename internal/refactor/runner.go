package refactor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/refactools/refactool/internal/bundler"
	"github.com/refactools/refactool/internal/cancel"
	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/history"
	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/llm"
)

// Runner orchestrates one refactoring invocation end to end: coordinator,
// session, sandbox, the completion/cancellation race, teardown, and the
// history commit. At most one run is live at a time.
type Runner struct {
	Host     host.Host
	Provider llm.Provider
	History  *history.Store
	Logger   *RunLogger
	Bundler  bundler.Bundler
	WorkDir  string

	running atomic.Bool
}

// ErrRunActive is returned when a run is started while another is live.
var ErrRunActive = errors.New("a refactoring run is already active")

// Run executes one catalog entry. ctx carries host-level cancellation (e.g.
// an interrupt signal), which is escalated into the run's coordinator. The
// returned error is nil for both success and cancellation; cancellation is an
// outcome, not a failure.
func (r *Runner) Run(ctx context.Context, entry catalog.Entry, selectedOptions []string) (Outcome, error) {
	if !r.running.CompareAndSwap(false, true) {
		return OutcomeFailed, ErrRunActive
	}
	defer r.running.Store(false)

	coord := cancel.New()
	stopEscalation := context.AfterFunc(ctx, coord.Signal)
	defer stopEscalation()

	session := NewSession(Params{
		Entry:           entry,
		SelectedOptions: selectedOptions,
		Host:            r.Host,
		Provider:        r.Provider,
		History:         r.History,
		Coordinator:     coord,
		Logger:          r.Logger,
		WorkDir:         r.WorkDir,
	})
	// Teardown runs exactly once regardless of which race branch settles
	// first; every memory-backed file dies with the session.
	defer session.Teardown()

	logger := r.Logger.Logger()
	logger.Info("run starting",
		"script", entry.Descriptor.FilePath,
		"variant", entry.Variant,
		"session", session.ID)

	sandbox := NewSandbox(r.Bundler)
	err := sandbox.Execute(session, entry.Descriptor.FilePath, entry.Descriptor.RootDir)

	switch {
	case coord.IsCancelled() || errors.Is(err, ErrCancelled):
		// No error notification for a cancel, only a log line.
		logger.Info("run cancelled", "script", entry.Descriptor.FilePath, "session", session.ID)
		return OutcomeCancelled, nil

	case err != nil:
		var se *ScriptError
		if errors.As(err, &se) && se.Stack != "" {
			logger.Error("run failed",
				"script", entry.Descriptor.FilePath, "error", se.Message, "stack", se.Stack)
		} else {
			logger.Error("run failed", "script", entry.Descriptor.FilePath, "error", err)
		}
		r.Host.ShowError(fmt.Sprintf("refactoring %q failed: %s", entry.Label, err))
		return OutcomeFailed, err

	default:
		// Values are committed to durable history only on success.
		if err := r.History.Record(entry.Descriptor.FilePath, entry.Variant, session.StagedValues()); err != nil {
			logger.Warn("history commit failed", "script", entry.Descriptor.FilePath, "error", err)
		}
		logger.Info("run succeeded", "script", entry.Descriptor.FilePath, "session", session.ID)
		return OutcomeSucceeded, nil
	}
}
