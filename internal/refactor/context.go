package refactor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/llm"
)

// cancelRegistry holds the cleanup callbacks a script registered via
// ctx.onCancel. Callbacks run on the event loop after the interrupted program
// unwinds; deregistration is explicit and idempotent.
type cancelRegistry struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]goja.Callable
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{fns: make(map[int]goja.Callable)}
}

func (r *cancelRegistry) add(fn goja.Callable) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.fns[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.fns, id)
		r.mu.Unlock()
	}
}

// invokeAll runs every registered callback once, tolerating failures. Must be
// called on the loop thread.
func (r *cancelRegistry) invokeAll() {
	r.mu.Lock()
	fns := make([]goja.Callable, 0, len(r.fns))
	for _, fn := range r.fns {
		fns = append(fns, fn)
	}
	r.fns = make(map[int]goja.Callable)
	r.mu.Unlock()
	for _, fn := range fns {
		func() {
			defer func() { recover() }()
			fn(goja.Undefined())
		}()
	}
}

// buildScriptContext assembles the capability object passed to the script's
// run callback. All bridges are synchronous: they block the loop thread and
// race the underlying host call against cancellation, so an awaited value is
// always settled by the time the script resumes.
func buildScriptContext(s *Session, vm *goja.Runtime, reg *cancelRegistry) map[string]any {
	ctx := map[string]any{
		"variant":         s.Variant(),
		"selectedOptions": s.SelectedOptions(),
		"hasOption":       func(id string) bool { return s.HasOption(id) },
		"log":             func(v goja.Value) { s.Log(v.String()) },
		"forceCancel":     func() { s.ForceCancel() },
		"isCancelled":     func() bool { return s.coord.IsCancelled() },

		"onCancel": func(fn goja.Value) (any, error) {
			callable, ok := goja.AssertFunction(fn)
			if !ok {
				return nil, fmt.Errorf("onCancel expects a function")
			}
			remove := reg.add(callable)
			return remove, nil
		},

		"prompt":   promptGroup(s, vm),
		"ide":      ideGroup(s, vm),
		"history":  historyGroup(s, vm),
		"fs":       fsGroup(s),
		"ai":       aiGroup(s, vm),
		"showDiff": showDiffBridge(s, vm),
	}

	// The active editor at session start; the ide group resolves editors at
	// call time when the focus may have moved.
	if ed, err := s.host.ActiveEditor(); err == nil {
		ctx["activeEditor"] = editorObject(s, ed)
	} else {
		ctx["activeEditor"] = nil
	}
	return ctx
}

func selectionObject(s *Session, sel *host.Selection) map[string]any {
	return map[string]any{
		"text":     sel.Text,
		"language": sel.Language,
		"start":    sel.Start,
		"end":      sel.End,
		"editorId": sel.EditorID,
		"replaceWith": func(text string) error {
			return s.ReplaceSelection(sel, text)
		},
	}
}

func editorObject(s *Session, ed host.Editor) map[string]any {
	return map[string]any{
		"id":        ed.ID(),
		"filepath":  ed.Path(),
		"filename":  filepath.Base(ed.Path()),
		"language":  ed.Language(),
		"extension": strings.TrimPrefix(filepath.Ext(ed.Path()), "."),
		"getContent": func() (string, error) {
			if err := s.checkActive(); err != nil {
				return "", err
			}
			return ed.Content()
		},
		"setContent": func(text string) error {
			if err := s.checkActive(); err != nil {
				return err
			}
			return ed.SetContent(text)
		},
		"replaceContent": func(text string) error {
			if err := s.checkActive(); err != nil {
				return err
			}
			return ed.SetContent(text)
		},
		"insertContent": func(text string, offset int) error {
			if err := s.checkActive(); err != nil {
				return err
			}
			return ed.Insert(offset, text)
		},
		"getSelected": func() (any, error) {
			sel, err := s.Selection()
			if err != nil {
				return nil, err
			}
			if sel == nil || sel.EditorID != ed.ID() {
				return nil, nil
			}
			return selectionObject(s, sel), nil
		},
		"format": func() error {
			if err := s.checkActive(); err != nil {
				return err
			}
			return ed.Format()
		},
		"save": func() error {
			if err := s.checkActive(); err != nil {
				return err
			}
			return ed.Save()
		},
	}
}

func promptGroup(s *Session, vm *goja.Runtime) map[string]any {
	return map[string]any{
		"text": func(message string, defaultValue ...string) (any, error) {
			def := ""
			if len(defaultValue) > 0 {
				def = defaultValue[0]
			}
			v, ok, err := s.PromptText(message, def)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return v, nil
		},
		"quickPick": func(arg goja.Value) (any, error) {
			title, items, err := decodePick(vm, arg)
			if err != nil {
				return nil, err
			}
			v, ok, err := s.PromptQuickPick(title, items)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return v, nil
		},
		"multiQuickPick": func(arg goja.Value) (any, error) {
			title, items, err := decodePick(vm, arg)
			if err != nil {
				return nil, err
			}
			vs, ok, err := s.PromptMultiQuickPick(title, items)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return vs, nil
		},
		"dialog": func(message string, arg goja.Value) (any, error) {
			title := ""
			var buttons []string
			if arg != nil && !goja.IsUndefined(arg) && !goja.IsNull(arg) {
				obj := arg.ToObject(vm)
				if v := obj.Get("title"); v != nil && !goja.IsUndefined(v) {
					title = v.String()
				}
				if v := obj.Get("buttons"); v != nil && !goja.IsUndefined(v) {
					raw, _ := v.Export().([]any)
					for _, b := range raw {
						buttons = append(buttons, fmt.Sprint(b))
					}
				}
			}
			if len(buttons) == 0 {
				buttons = []string{"Ok", "Cancel"}
			}
			choice, ok, err := s.PromptDialog(message, title, buttons)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return choice, nil
		},
		"waitTextSelection": func(message, buttonLabel string) (any, error) {
			sel, ok, err := s.WaitTextSelection(message, buttonLabel)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return selectionObject(s, sel), nil
		},
	}
}

// decodePick turns {title, options, default} into host pick items. options
// entries are either plain strings or {label, value, description}.
func decodePick(vm *goja.Runtime, arg goja.Value) (string, []host.PickItem, error) {
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		return "", nil, fmt.Errorf("quick pick requires an options object")
	}
	obj := arg.ToObject(vm)
	title := ""
	if v := obj.Get("title"); v != nil && !goja.IsUndefined(v) {
		title = v.String()
	}
	def := ""
	if v := obj.Get("default"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		def = v.String()
	}
	rawOpts := obj.Get("options")
	if rawOpts == nil || goja.IsUndefined(rawOpts) {
		return "", nil, fmt.Errorf("quick pick requires options")
	}
	exported, ok := rawOpts.Export().([]any)
	if !ok {
		return "", nil, fmt.Errorf("quick pick options must be an array")
	}
	var items []host.PickItem
	for _, e := range exported {
		switch t := e.(type) {
		case string:
			items = append(items, host.PickItem{Label: t, Value: t, Picked: t == def})
		case map[string]any:
			item := host.PickItem{}
			if v, ok := t["label"].(string); ok {
				item.Label = v
			}
			if v, ok := t["value"].(string); ok {
				item.Value = v
			} else {
				item.Value = item.Label
			}
			if v, ok := t["description"].(string); ok {
				item.Description = v
			}
			if v, ok := t["picked"].(bool); ok {
				item.Picked = v
			}
			if def != "" && item.Value == def {
				item.Picked = true
			}
			items = append(items, item)
		default:
			return "", nil, fmt.Errorf("quick pick option has unsupported type %T", e)
		}
	}
	return title, items, nil
}

func ideGroup(s *Session, vm *goja.Runtime) map[string]any {
	return map[string]any{
		"getActiveEditor": func() (any, error) {
			ed, err := s.ActiveEditor()
			if err != nil {
				return nil, err
			}
			return editorObject(s, ed), nil
		},
		"getEditor": func(id string) (any, error) {
			ed, err := s.Editor(id)
			if err != nil {
				return nil, err
			}
			return editorObject(s, ed), nil
		},
		"openFile": func(path string, beside ...bool) (any, error) {
			b := len(beside) > 0 && beside[0]
			ed, err := s.OpenFile(path, b)
			if err != nil {
				return nil, err
			}
			return editorObject(s, ed), nil
		},
		"newUnsavedFile": func(content, language string) (any, error) {
			ed, err := s.NewUnsavedFile(content, language)
			if err != nil {
				return nil, err
			}
			return editorObject(s, ed), nil
		},
		"showInfoMessage":    func(msg string) { s.ShowInfo(msg) },
		"showWarningMessage": func(msg string) { s.ShowWarning(msg) },
		"showErrorMessage":   func(msg string) { s.ShowError(msg) },
		"setGeneralProgress": func(msg string) { s.SetProgress(msg) },
		"showProgress": func(message string, fn goja.Value) (goja.Value, error) {
			callable, ok := goja.AssertFunction(fn)
			if !ok {
				return nil, fmt.Errorf("showProgress expects a function")
			}
			// The body runs on the loop thread; a cancel mid-body reaches it
			// through the run's interrupt (Ctrl-C or forceCancel), so the
			// scope's job is to check the latch on entry and exit and
			// propagate cancellation instead of the body's value.
			if s.coord.IsCancelled() {
				return nil, ErrCancelled
			}
			s.SetProgress(message)
			v, err := callable(goja.Undefined())
			if s.coord.IsCancelled() {
				return nil, ErrCancelled
			}
			return v, err
		},
	}
}

func historyGroup(s *Session, vm *goja.Runtime) map[string]any {
	return map[string]any{
		"add": func(key string, value goja.Value) {
			s.StageValue(key, value.Export())
		},
		"getLast": func() any {
			last := s.LastRun()
			if last == nil {
				return nil
			}
			values := last.Values
			return map[string]any{
				"variant": last.Variant,
				"values":  values,
				"get": func(key string) any {
					if values == nil {
						return nil
					}
					return values[key]
				},
			}
		},
		"getAll": func() []map[string]any {
			runs := s.AllRuns()
			out := make([]map[string]any, 0, len(runs))
			for _, r := range runs {
				out = append(out, map[string]any{"variant": r.Variant, "values": r.Values})
			}
			return out
		},
	}
}

func fsGroup(s *Session) map[string]any {
	return map[string]any{
		"getWorkspacePath":           func() string { return s.WorkspacePath() },
		"getPathRelativeToWorkspace": func(p string) string { return s.RelToWorkspace(p) },
		"readFile":                   func(p string) (string, error) { return s.ReadFile(p) },
		"writeFile":                  func(p, content string) error { return s.WriteFile(p, content) },
		"createFile":                 func(p, content string) error { return s.CreateFile(p, content) },
		"deleteFile":                 func(p string) error { return s.DeleteFile(p) },
		"moveFile":                   func(oldPath, newPath string) error { return s.MoveFile(oldPath, newPath) },
		"renameFile":                 func(p, newName string) error { return s.RenameFile(p, newName) },
		"fileExists":                 func(p string) bool { return s.FileExists(p) },
		"createFolder":               func(p string) error { return s.CreateFolder(p) },
		"deleteFolder":               func(p string) error { return s.DeleteFolder(p) },
		"moveFolder":                 func(oldPath, newPath string) error { return s.MoveFolder(oldPath, newPath) },
		"renameFolder":               func(p, newName string) error { return s.RenameFolder(p, newName) },
		"createMemPath":              func(ext string) string { return s.newMemPath("tmp", ext) },
		"readDirectory": func(dir string, opts map[string]any) ([]string, error) {
			var o ReadDirOptions
			if v, ok := opts["filesFilter"].(string); ok {
				o.FilesFilter = v
			}
			if v, ok := opts["includeFolders"].(bool); ok {
				o.IncludeFolders = v
			}
			if v, ok := opts["recursive"].(bool); ok {
				o.Recursive = v
			}
			return s.ReadDirectory(dir, o)
		},
		"createTempFile": func(ext, initial string) (map[string]any, error) {
			tf, err := s.CreateTempFile(ext, initial)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"path":       tf.Path,
				"update":     func(content string) error { return tf.Update(content) },
				"getContent": func() (string, error) { return tf.GetContent() },
				"dispose":    func() error { return tf.Dispose() },
				"openEditor": func() (any, error) {
					ed, err := tf.OpenEditor()
					if err != nil {
						return nil, err
					}
					return editorObject(s, ed), nil
				},
			}, nil
		},
	}
}

// decodeRequest turns {system, prompt, messages, maxTokens, stop} into a
// completion request. prompt is shorthand for a single user message.
func decodeRequest(vm *goja.Runtime, arg goja.Value) (llm.Request, error) {
	var req llm.Request
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		return req, fmt.Errorf("completion requires a request object")
	}
	obj := arg.ToObject(vm)
	if v := obj.Get("system"); v != nil && !goja.IsUndefined(v) {
		req.System = v.String()
	}
	if v := obj.Get("maxTokens"); v != nil && !goja.IsUndefined(v) {
		req.MaxTokens = int(v.ToInteger())
	}
	if v := obj.Get("stop"); v != nil && !goja.IsUndefined(v) {
		if raw, ok := v.Export().([]any); ok {
			for _, sv := range raw {
				req.StopSequences = append(req.StopSequences, fmt.Sprint(sv))
			}
		}
	}
	if v := obj.Get("messages"); v != nil && !goja.IsUndefined(v) {
		raw, ok := v.Export().([]any)
		if !ok {
			return req, fmt.Errorf("messages must be an array")
		}
		for _, m := range raw {
			mm, ok := m.(map[string]any)
			if !ok {
				return req, fmt.Errorf("messages entries must be objects")
			}
			role, _ := mm["role"].(string)
			content, _ := mm["content"].(string)
			req.Messages = append(req.Messages, llm.Message{Role: role, Content: content})
		}
	}
	if v := obj.Get("prompt"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		req.Messages = append(req.Messages, llm.Message{Role: "user", Content: v.String()})
	}
	if len(req.Messages) == 0 {
		return req, fmt.Errorf("completion requires prompt or messages")
	}
	return req, nil
}

func aiGroup(s *Session, vm *goja.Runtime) map[string]any {
	return map[string]any{
		"complete": func(arg goja.Value) (string, error) {
			req, err := decodeRequest(vm, arg)
			if err != nil {
				return "", err
			}
			res, err := s.Complete(req)
			if err != nil {
				return "", err
			}
			return res.Text, nil
		},
		"completeStream": func(arg goja.Value) (map[string]any, error) {
			req, err := decodeRequest(vm, arg)
			if err != nil {
				return nil, err
			}
			stream, err := s.CompleteStream(req)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"next": func() (map[string]any, error) {
					v, ok := stream.Next()
					if !ok {
						if err := stream.Err(); err != nil {
							return nil, err
						}
						return map[string]any{"value": stream.Last(), "done": true}, nil
					}
					return map[string]any{"value": v, "done": false}, nil
				},
				"cancel": func() { stream.Cancel() },
			}, nil
		},
	}
}

func showDiffBridge(s *Session, vm *goja.Runtime) func(arg goja.Value) (any, error) {
	return func(arg goja.Value) (any, error) {
		if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
			return nil, fmt.Errorf("showDiff requires an options object")
		}
		obj := arg.ToObject(vm)
		opts := DiffOptions{}
		if v := obj.Get("title"); v != nil && !goja.IsUndefined(v) {
			opts.Title = v.String()
		}
		if v := obj.Get("ext"); v != nil && !goja.IsUndefined(v) {
			opts.Ext = v.String()
		}

		orig, err := decodeOriginal(vm, obj.Get("original"))
		if err != nil {
			return nil, err
		}
		opts.Original = orig

		src, err := decodeRefactored(vm, obj.Get("refactored"))
		if err != nil {
			return nil, err
		}
		opts.Refactored = src

		res, err := s.ShowDiff(opts)
		if err != nil {
			return nil, err
		}
		if !res.Accepted {
			return false, nil
		}
		return res.Content, nil
	}
}

// decodeOriginal resolves the three-case original union: literal text, a
// captured selection object, or {editor, offset}.
func decodeOriginal(vm *goja.Runtime, v goja.Value) (DiffOriginal, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return DiffOriginal{}, fmt.Errorf("showDiff requires an original")
	}
	if s, ok := v.Export().(string); ok {
		return TextOriginal(s), nil
	}
	obj := v.ToObject(vm)
	if ev := obj.Get("editorId"); ev != nil && !goja.IsUndefined(ev) {
		start := int(obj.Get("start").ToInteger())
		end := int(obj.Get("end").ToInteger())
		text := obj.Get("text").String()
		return SelectionOriginal(ev.String(), start, end, text), nil
	}
	if ev := obj.Get("editor"); ev != nil && !goja.IsUndefined(ev) && !goja.IsNull(ev) {
		edObj := ev.ToObject(vm)
		id := edObj.Get("id")
		if id == nil || goja.IsUndefined(id) {
			return DiffOriginal{}, fmt.Errorf("showDiff original editor has no id")
		}
		offset := int(obj.Get("offset").ToInteger())
		return EditorOffsetOriginal(id.String(), offset), nil
	}
	return DiffOriginal{}, fmt.Errorf("showDiff original must be text, a selection, or {editor, offset}")
}

// decodeRefactored resolves the refactored side: a complete string or a lazy
// {next, cancel} sequence. Script-driven sequences must run on the loop
// thread, so they are marked inline.
func decodeRefactored(vm *goja.Runtime, v goja.Value) (DiffSource, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("showDiff requires a refactored value")
	}
	if s, ok := v.Export().(string); ok {
		return NewStaticSource(s), nil
	}
	obj := v.ToObject(vm)
	nextVal := obj.Get("next")
	nextFn, ok := goja.AssertFunction(nextVal)
	if !ok {
		return nil, fmt.Errorf("showDiff refactored must be a string or a {next, cancel} sequence")
	}
	var cancelFn goja.Callable
	if cv := obj.Get("cancel"); cv != nil {
		cancelFn, _ = goja.AssertFunction(cv)
	}
	return &FuncSource{
		Inline: true,
		NextFn: func() (string, bool, error) {
			res, err := nextFn(obj)
			if err != nil {
				return "", false, err
			}
			resObj := res.ToObject(vm)
			if resObj.Get("done").ToBoolean() {
				return "", false, nil
			}
			return resObj.Get("value").String(), true, nil
		},
		CancelFn: func() {
			if cancelFn != nil {
				cancelFn(obj)
			}
		},
	}, nil
}
