package refactor

import (
	"fmt"

	"github.com/refactools/refactool/internal/llm"
)

// OriginalKind tags the three forms a diff original can take.
type OriginalKind int

const (
	// OriginalText diffs against literal text.
	OriginalText OriginalKind = iota
	// OriginalSelection diffs against a captured selection; accepting
	// replaces the selection.
	OriginalSelection
	// OriginalEditorOffset diffs against an editor's content with the
	// refactored value spliced in at a byte offset.
	OriginalEditorOffset
)

// DiffOriginal is the resolved-once original side of a diff. Each case
// carries exactly the fields it needs.
type DiffOriginal struct {
	Kind OriginalKind

	// OriginalText
	Text string

	// OriginalSelection
	EditorID string
	SelStart int
	SelEnd   int
	SelText  string

	// OriginalEditorOffset
	Offset int

	// set by resolveOriginal when a selection original could be located in
	// its source document, so the panes show it in situ.
	inDocument bool
}

// TextOriginal diffs against literal text.
func TextOriginal(text string) DiffOriginal {
	return DiffOriginal{Kind: OriginalText, Text: text}
}

// SelectionOriginal diffs against a captured selection.
func SelectionOriginal(editorID string, start, end int, text string) DiffOriginal {
	return DiffOriginal{
		Kind:     OriginalSelection,
		EditorID: editorID,
		SelStart: start,
		SelEnd:   end,
		SelText:  text,
	}
}

// EditorOffsetOriginal diffs against an editor's content with refactored
// values spliced in at offset.
func EditorOffsetOriginal(editorID string, offset int) DiffOriginal {
	return DiffOriginal{Kind: OriginalEditorOffset, EditorID: editorID, Offset: offset}
}

// DiffSource is the refactored side: a complete value or a lazy, single-pass
// sequence of cumulative strings with an explicit done signal and cancel.
type DiffSource interface {
	// Next returns the next cumulative value; ok is false once exhausted.
	Next() (value string, ok bool, err error)
	Cancel()
}

// StaticSource is a complete refactored value.
type StaticSource string

// Next yields the value once.
func (s *StaticSource) Next() (string, bool, error) {
	if s == nil {
		return "", false, nil
	}
	v := string(*s)
	*s = ""
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *StaticSource) Cancel() {}

// NewStaticSource wraps a complete string as a DiffSource.
func NewStaticSource(v string) DiffSource {
	s := StaticSource(v)
	return &s
}

// StreamSource adapts a completion stream.
type StreamSource struct{ Stream *llm.Stream }

func (s *StreamSource) Next() (string, bool, error) {
	v, ok := s.Stream.Next()
	if !ok {
		return "", false, s.Stream.Err()
	}
	return v, true, nil
}

func (s *StreamSource) Cancel() { s.Stream.Cancel() }

// FuncSource adapts an arbitrary next/cancel pair, e.g. one driven by script
// code. Inline sources are drained on the calling goroutine instead of the
// cancellation race: script-driven next functions touch the JS runtime, which
// must only ever be used from the loop thread. Cancellation still interrupts
// them via the runtime interrupt.
type FuncSource struct {
	Inline   bool
	NextFn   func() (string, bool, error)
	CancelFn func()
}

func (f *FuncSource) Next() (string, bool, error) { return f.NextFn() }

func (f *FuncSource) Cancel() {
	if f.CancelFn != nil {
		f.CancelFn()
	}
}

// DiffOptions parameterize ShowDiff.
type DiffOptions struct {
	Title      string
	Original   DiffOriginal
	Refactored DiffSource
	Ext        string
}

// DiffResult is the outcome of a diff session.
type DiffResult struct {
	// Accepted is false when the view was closed, rejected, or the run was
	// cancelled mid-diff.
	Accepted bool
	// Content is the accepted refactored value. For editor-offset originals
	// it is the full document with the value spliced in; for selection
	// originals it is the raw value, ready to replace the selection.
	Content string
}

// ShowDiff materializes a two-pane diff of the resolved original against the
// refactored value. A lazy refactored sequence is drained into the right-hand
// side as values arrive, each a prefix-extension of the last. After the
// sequence is exhausted the call suspends until the user accepts (returning
// the final content) or closes the view. The diff view and all virtual diff
// files are torn down on every exit path. Closing without acceptance cancels
// the run.
func (s *Session) ShowDiff(opts DiffOptions) (DiffResult, error) {
	if err := s.checkActive(); err != nil {
		return DiffResult{}, err
	}

	origText, err := s.resolveOriginal(&opts.Original)
	if err != nil {
		return DiffResult{}, err
	}

	// Virtual copies of both panes; deleted on every exit path.
	origPath := s.newMemPath("diff", opts.Ext)
	rightPath := s.newMemPath("diff", opts.Ext)
	if err := s.mem.Write(origPath, []byte(origText)); err != nil {
		return DiffResult{}, err
	}
	cleanupFiles := func() {
		s.mem.Remove(origPath)
		s.mem.Remove(rightPath)
	}
	defer cleanupFiles()

	view, err := s.host.StartDiff(opts.Title, origText, opts.Ext)
	if err != nil {
		return DiffResult{}, err
	}
	defer view.Close()

	inline := false
	if fs, isFunc := opts.Refactored.(*FuncSource); isFunc && fs.Inline {
		inline = true
	}
	next := func() (string, bool, error) {
		if inline {
			if s.coord.IsCancelled() {
				return "", false, ErrCancelled
			}
			return opts.Refactored.Next()
		}
		return race(s.coord, opts.Refactored.Next)
	}

	final := ""
	for {
		v, ok, err := next()
		if err != nil {
			opts.Refactored.Cancel()
			if err == ErrCancelled {
				return DiffResult{}, nil
			}
			return DiffResult{}, err
		}
		if !ok {
			break
		}
		final = v
		right := s.spliceRefactored(&opts.Original, origText, v)
		if err := s.mem.Write(rightPath, []byte(right)); err != nil {
			return DiffResult{}, err
		}
		if err := view.Update(right); err != nil {
			return DiffResult{}, err
		}
		s.SetProgress(fmt.Sprintf("refactoring %s (%d chars)", opts.Title, len(v)))
	}
	s.SetProgress(fmt.Sprintf("refactoring %s: done", opts.Title))

	accepted, _, err := race(s.coord, func() (bool, bool, error) {
		a, err := view.Wait()
		return a, true, err
	})
	if err != nil {
		if err == ErrCancelled {
			return DiffResult{}, nil
		}
		return DiffResult{}, err
	}
	if !accepted {
		// A dismissed diff cancels the run.
		s.log.Logger().Info("diff closed without acceptance", "title", opts.Title)
		s.coord.Signal()
		return DiffResult{}, nil
	}

	// Splicing is for display only, except for editor-offset originals where
	// the accepted value is the whole document. Selection originals hand back
	// the raw refactored text so the caller can replace the selection with it.
	content := final
	if opts.Original.Kind == OriginalEditorOffset {
		content = s.spliceRefactored(&opts.Original, origText, final)
	}
	return DiffResult{Accepted: true, Content: content}, nil
}

// resolveOriginal materializes the original pane once, at the start of the
// diff.
func (s *Session) resolveOriginal(o *DiffOriginal) (string, error) {
	switch o.Kind {
	case OriginalText:
		return o.Text, nil
	case OriginalSelection:
		// Show the selection in situ when the source editor is still
		// reachable and the captured offsets still match; otherwise degrade
		// to the selection text alone.
		if ed, err := s.host.Editor(o.EditorID); err == nil {
			if content, err := ed.Content(); err == nil &&
				o.SelStart >= 0 && o.SelStart <= o.SelEnd && o.SelEnd <= len(content) &&
				content[o.SelStart:o.SelEnd] == o.SelText {
				o.inDocument = true
				return content, nil
			}
		}
		return o.SelText, nil
	case OriginalEditorOffset:
		ed, err := s.host.Editor(o.EditorID)
		if err != nil {
			return "", err
		}
		content, err := ed.Content()
		if err != nil {
			return "", err
		}
		if o.Offset < 0 || o.Offset > len(content) {
			return "", fmt.Errorf("diff offset %d out of range", o.Offset)
		}
		o.Text = content
		return content, nil
	default:
		return "", fmt.Errorf("unknown diff original kind %d", o.Kind)
	}
}

// spliceRefactored produces the right-hand pane for a cumulative value.
func (s *Session) spliceRefactored(o *DiffOriginal, origText, v string) string {
	switch o.Kind {
	case OriginalEditorOffset:
		return origText[:o.Offset] + v + origText[o.Offset:]
	case OriginalSelection:
		if o.inDocument {
			return origText[:o.SelStart] + v + origText[o.SelEnd:]
		}
	}
	return v
}
