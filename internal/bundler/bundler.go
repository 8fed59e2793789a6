// Package bundler turns one TypeScript script file into a single executable
// CommonJS module, resolving local imports against the script's root folder.
package bundler

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Bundler produces a self-contained module from an entry file.
type Bundler interface {
	Bundle(entryFile, rootDir string) (string, error)
}

// Esbuild bundles with the esbuild API. TypeScript is handled natively;
// the refacTools entrypoint stays a free identifier supplied by the sandbox.
type Esbuild struct{}

// New returns the esbuild-backed bundler.
func New() *Esbuild { return &Esbuild{} }

// Bundle compiles entryFile and its local imports into one CommonJS module.
func (e *Esbuild) Bundle(entryFile, rootDir string) (string, error) {
	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{entryFile},
		AbsWorkingDir: rootDir,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatCommonJS,
		Platform:      api.PlatformNode,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{})
		return "", fmt.Errorf("bundle %s: %s", entryFile, strings.TrimSpace(strings.Join(msgs, "\n")))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundle %s: no output produced", entryFile)
	}
	return string(result.OutputFiles[0].Contents), nil
}
