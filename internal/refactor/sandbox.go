package refactor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/buffer"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/process"
	"github.com/dop251/goja_nodejs/require"
	"github.com/dop251/goja_nodejs/url"

	"github.com/refactools/refactool/internal/bundler"
)

// configMarker must survive bundling; its absence means the bundler was
// misconfigured and silently produced a broken module.
const configMarker = "refacTools.config"

// entrypointGlue installs the refacTools global. runRefactor is the single
// integration point: it invokes the callback with the live session context
// and reports the promise's settlement to the bridge. The callback's return
// value is not interpreted.
const entrypointGlue = `(function (bridge) {
	globalThis.refacTools = {
		config: function (cfg) {},
		runRefactor: function (fn) {
			bridge.registered();
			Promise.resolve()
				.then(function () { return fn(bridge.ctx); })
				.then(function () { bridge.done(null); },
					function (err) { bridge.done(err); });
		},
	};
})`

// ScriptError is an error thrown by script code, with its stack when one was
// available. Opaque by the time it reaches the user; there is no error
// taxonomy inside the sandbox.
type ScriptError struct {
	Message string
	Stack   string
}

func (e *ScriptError) Error() string { return e.Message }

func scriptError(v goja.Value) error {
	if v == nil || goja.IsNull(v) || goja.IsUndefined(v) {
		return nil
	}
	se := &ScriptError{Message: v.String()}
	if obj, ok := v.(*goja.Object); ok {
		if sv := obj.Get("stack"); sv != nil && !goja.IsUndefined(sv) {
			se.Stack = sv.String()
		}
	}
	return se
}

// Sandbox bundles a script and executes it inside a fresh, isolated JS
// runtime whose global surface is an explicit allow-list: refacTools,
// console, Buffer, URL, a process shim, timers, and fetch. Nothing else.
type Sandbox struct {
	bundler bundler.Bundler
}

// NewSandbox creates a sandbox using b to produce executable modules.
func NewSandbox(b bundler.Bundler) *Sandbox { return &Sandbox{bundler: b} }

// Execute bundles scriptPath and runs it wired to s. It returns when the
// script's run callback settles or the run is cancelled, whichever is first.
// Script-thrown errors come back as *ScriptError.
func (sb *Sandbox) Execute(s *Session, scriptPath, rootDir string) error {
	code, err := sb.bundler.Bundle(scriptPath, rootDir)
	if err != nil {
		return err
	}
	if !strings.Contains(code, configMarker) {
		return fmt.Errorf("bundle of %s lost its configuration call; refusing to execute", filepath.Base(scriptPath))
	}

	registry := require.NewRegistry()
	loop := eventloop.NewEventLoop(eventloop.WithRegistry(registry), eventloop.EnableConsole(true))
	loop.Start()
	defer loop.Stop()

	reg := newCancelRegistry()
	done := make(chan error, 1)
	var doneOnce sync.Once
	signalDone := func(err error) { doneOnce.Do(func() { done <- err }) }

	var registered atomic.Bool
	var rtPtr atomic.Pointer[goja.Runtime]

	// On cancel: interrupt any running JS, then, after the program unwinds,
	// run the script's registered cleanup callbacks on the loop.
	cleanupRan := make(chan struct{})
	removeCancel := s.coord.OnCancel(func() {
		if rt := rtPtr.Load(); rt != nil {
			rt.Interrupt(ErrCancelled)
		}
		loop.RunOnLoop(func(vm *goja.Runtime) {
			vm.ClearInterrupt()
			reg.invokeAll()
			close(cleanupRan)
		})
	})
	defer removeCancel()

	loop.RunOnLoop(func(vm *goja.Runtime) {
		rtPtr.Store(vm)
		buffer.Enable(vm)
		url.Enable(vm)
		process.Enable(vm)
		_ = vm.Set("fetch", fetchFunc(s, vm))

		bridge := map[string]any{
			"ctx":        buildScriptContext(s, vm, reg),
			"registered": func() { registered.Store(true) },
			"done":       func(errVal goja.Value) { signalDone(scriptError(errVal)) },
		}
		glueVal, err := vm.RunString(entrypointGlue)
		if err != nil {
			signalDone(err)
			return
		}
		glueFn, ok := goja.AssertFunction(glueVal)
		if !ok {
			signalDone(errors.New("entrypoint glue did not evaluate to a function"))
			return
		}
		if _, err := glueFn(goja.Undefined(), vm.ToValue(bridge)); err != nil {
			signalDone(err)
			return
		}

		prog, err := goja.Compile(filepath.Base(scriptPath),
			"(function(module, exports, require) {\n"+code+"\n})", false)
		if err != nil {
			signalDone(fmt.Errorf("compile bundle: %w", err))
			return
		}
		wrapperVal, err := vm.RunProgram(prog)
		if err != nil {
			signalDone(err)
			return
		}
		wrapper, ok := goja.AssertFunction(wrapperVal)
		if !ok {
			signalDone(errors.New("bundle did not evaluate to a module wrapper"))
			return
		}
		module := vm.NewObject()
		exports := vm.NewObject()
		_ = module.Set("exports", exports)
		requireStub := vm.ToValue(func(name string) (any, error) {
			return nil, fmt.Errorf("module %q is not available in the sandbox", name)
		})
		if _, err := wrapper(goja.Undefined(), module, exports, requireStub); err != nil {
			signalDone(err)
			return
		}
		if !registered.Load() {
			signalDone(errors.New("script did not call refacTools.runRefactor"))
		}
	})

	select {
	case err := <-done:
		if s.coord.IsCancelled() {
			select {
			case <-cleanupRan:
			case <-time.After(2 * time.Second):
			}
			return ErrCancelled
		}
		return err
	case <-s.coord.Done():
		// Give registered cleanup callbacks a chance to run before the loop
		// stops.
		select {
		case <-cleanupRan:
		case <-time.After(2 * time.Second):
		}
		return ErrCancelled
	}
}
