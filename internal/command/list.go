package command

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/refactor"
)

// ListCommand prints the refactoring catalog: every runnable script/variant
// combination, ranked by recent usage and filtered by each script's
// enabledWhen predicate against the given editor state.
type ListCommand struct {
	*BaseCommand
	env *Env

	file       string
	selectSpec string
	verbose    bool
}

// NewListCommand creates a new list command.
func NewListCommand(env *Env) *ListCommand {
	return &ListCommand{
		BaseCommand: NewBaseCommand(
			"list",
			"List available refactorings",
			"list [options]",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the list command.
func (c *ListCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.file, "file", "", "Evaluate enabledWhen predicates against this file")
	fs.StringVar(&c.selectSpec, "select", "", "Selection spec file:start:end for predicate evaluation")
	fs.BoolVar(&c.verbose, "v", false, "Include script paths and descriptions")
}

// editorState derives the predicate input from the -file/-select flags. With
// neither flag the state is empty: scripts requiring a selection or a
// language are filtered out.
func (c *ListCommand) editorState() (catalog.EditorState, error) {
	var state catalog.EditorState
	path := c.file
	if c.selectSpec != "" {
		parts := strings.Split(c.selectSpec, ":")
		if len(parts) < 3 {
			return state, fmt.Errorf("selection spec %q: want file:start:end", c.selectSpec)
		}
		path = strings.Join(parts[:len(parts)-2], ":")
		state.HasSelection = true
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return state, fmt.Errorf("read %s: %w", path, err)
		}
		state.FileText = string(data)
		state.Language = host.LanguageForPath(path)
	}
	return state, nil
}

// Execute prints the catalog.
func (c *ListCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}

	state, err := c.editorState()
	if err != nil {
		return err
	}
	roots, err := c.env.ScriptRoots()
	if err != nil {
		return err
	}
	hist, err := c.env.OpenHistory()
	if err != nil {
		return err
	}

	logger := refactor.NewRunLogger(stderr, c.env.LogBufferSize())
	descriptors := catalog.Discover(roots, logger.Logger())
	entries := catalog.Build(descriptors, hist, state, logger.Logger())

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stdout, "No refactorings available. Add scripts to a scripts folder ('refactool init' creates one).")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVARIANT\tSCOPE\tRUNS")
	for _, e := range entries {
		name := scriptName(e.Descriptor)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			name, e.Variant, e.Descriptor.Scope, hist.UsageScore(e.Descriptor.FilePath))
		if c.verbose {
			_, _ = fmt.Fprintf(w, "  %s\t\t\t\n", e.Label)
			if e.Config.Description != "" {
				_, _ = fmt.Fprintf(w, "  %s\t\t\t\n", e.Config.Description)
			}
			_, _ = fmt.Fprintf(w, "  %s\t\t\t\n", e.Descriptor.FilePath)
		}
	}
	return w.Flush()
}

// scriptName is the user-facing identifier of a script: its base filename
// without the .ts extension.
func scriptName(d catalog.ScriptDescriptor) string {
	return strings.TrimSuffix(filepath.Base(d.FilePath), ".ts")
}
