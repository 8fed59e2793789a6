package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/refactools/refactool/internal/bundler"
	"github.com/refactools/refactool/internal/catalog"
	"github.com/refactools/refactool/internal/history"
	"github.com/refactools/refactool/internal/host"
	"github.com/refactools/refactool/internal/refactor"
)

// RunCommand executes one refactoring: it builds the catalog, resolves which
// entry to run (by name or interactive pick), collects option toggles, and
// hands off to the runner. Ctrl-C cancels the run cooperatively.
type RunCommand struct {
	*BaseCommand
	env *Env

	selectSpec string
	variant    string
	optionsCSV string
}

// NewRunCommand creates a new run command.
func NewRunCommand(env *Env) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a refactoring",
			"run [options] [script-name]",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.selectSpec, "select", "", "Selection spec file:start:end (byte offsets)")
	fs.StringVar(&c.variant, "variant", "", "Variant id to run (skips the variant pick)")
	fs.StringVar(&c.optionsCSV, "options", "", "Comma-separated option ids to enable (skips the options pick)")
}

// Execute runs one refactoring end to end.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 1 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args[1:])
		return fmt.Errorf("unexpected arguments")
	}

	terminal := host.NewTerminal(os.Stdin, stdout, c.env.WorkDir)

	selectSpec := c.selectSpec
	if selectSpec == "" {
		selectSpec, _ = c.env.Config.GetCommandOption("run", "select")
	}
	if selectSpec != "" {
		if err := terminal.SetSelectionFromSpec(selectSpec); err != nil {
			return err
		}
	}

	hist, err := c.env.OpenHistory()
	if err != nil {
		return err
	}
	entry, err := c.resolveEntry(args, terminal, hist, stderr)
	if err != nil {
		return err
	}

	selected, err := c.resolveOptions(entry, terminal)
	if err != nil {
		return err
	}

	provider, err := c.env.BuildProvider()
	if err != nil {
		return err
	}

	runner := &refactor.Runner{
		Host:     terminal,
		Provider: provider,
		History:  hist,
		Logger:   refactor.NewRunLogger(stdout, c.env.LogBufferSize()),
		Bundler:  bundler.New(),
		WorkDir:  c.env.WorkDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := runner.Run(ctx, entry, selected)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "%s: %s\n", entry.Label, outcome)
	return nil
}

// resolveEntry picks the catalog entry to run: by script name argument when
// given, otherwise interactively.
func (c *RunCommand) resolveEntry(args []string, terminal *host.Terminal, hist *history.Store, stderr io.Writer) (catalog.Entry, error) {
	state := editorStateFromHost(terminal)
	roots, err := c.env.ScriptRoots()
	if err != nil {
		return catalog.Entry{}, err
	}
	logger := refactor.NewRunLogger(stderr, c.env.LogBufferSize())
	descriptors := catalog.Discover(roots, logger.Logger())
	entries := catalog.Build(descriptors, hist, state, logger.Logger())
	if len(entries) == 0 {
		return catalog.Entry{}, fmt.Errorf("no refactorings available for the current context")
	}

	if len(args) == 1 {
		return c.matchEntry(entries, args[0], terminal)
	}

	// Interactive pick over the ranked catalog.
	items := make([]host.PickItem, len(entries))
	for i, e := range entries {
		items[i] = host.PickItem{
			Label:       e.Label,
			Value:       fmt.Sprint(i),
			Description: e.Config.Description,
		}
	}
	choice, ok, err := terminal.QuickPick("Select a refactoring", items)
	if err != nil {
		return catalog.Entry{}, err
	}
	if !ok {
		return catalog.Entry{}, fmt.Errorf("no refactoring selected")
	}
	var idx int
	if _, err := fmt.Sscanf(choice, "%d", &idx); err != nil || idx < 0 || idx >= len(entries) {
		return catalog.Entry{}, fmt.Errorf("invalid selection %q", choice)
	}
	return entries[idx], nil
}

// matchEntry resolves a script name (and optional -variant) to one entry.
// When the script declares several variants and none was named, the user
// picks one.
func (c *RunCommand) matchEntry(entries []catalog.Entry, name string, terminal *host.Terminal) (catalog.Entry, error) {
	var matched []catalog.Entry
	for _, e := range entries {
		if scriptName(e.Descriptor) != name {
			continue
		}
		if c.variant != "" && e.Variant != c.variant {
			continue
		}
		matched = append(matched, e)
	}
	switch len(matched) {
	case 0:
		if c.variant != "" {
			return catalog.Entry{}, fmt.Errorf("no refactoring %q with variant %q", name, c.variant)
		}
		return catalog.Entry{}, fmt.Errorf("no refactoring named %q", name)
	case 1:
		return matched[0], nil
	}

	items := make([]host.PickItem, len(matched))
	for i, e := range matched {
		items[i] = host.PickItem{Label: e.Label, Value: e.Variant}
	}
	choice, ok, err := terminal.QuickPick("Select a variant", items)
	if err != nil {
		return catalog.Entry{}, err
	}
	if !ok {
		return catalog.Entry{}, fmt.Errorf("no variant selected")
	}
	for _, e := range matched {
		if e.Variant == choice {
			return e, nil
		}
	}
	return catalog.Entry{}, fmt.Errorf("invalid variant %q", choice)
}

// resolveOptions collects the option toggles for the entry: the -options flag
// when given, otherwise an interactive multi-pick seeded with the declared
// defaults. Entries without options skip the pick entirely.
func (c *RunCommand) resolveOptions(entry catalog.Entry, terminal *host.Terminal) ([]string, error) {
	declared := entry.Options()
	if len(declared) == 0 {
		return nil, nil
	}

	csv := c.optionsCSV
	if csv == "" {
		csv, _ = c.env.Config.GetCommandOption("run", "options")
	}
	if csv != "" {
		var out []string
		for _, id := range strings.Split(csv, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if !hasOptionID(declared, id) {
				return nil, fmt.Errorf("unknown option %q for %s", id, entry.Label)
			}
			out = append(out, id)
		}
		return out, nil
	}

	items := make([]host.PickItem, len(declared))
	for i, opt := range declared {
		items[i] = host.PickItem{
			Label:       opt.Label,
			Value:       opt.ID,
			Description: opt.Description,
			Picked:      opt.Default,
		}
	}
	selected, ok, err := terminal.MultiQuickPick("Options for "+entry.Label, items)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return selected, nil
}

func hasOptionID(opts []catalog.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// editorStateFromHost derives the predicate input from the host's current
// selection and active editor.
func editorStateFromHost(terminal *host.Terminal) catalog.EditorState {
	var state catalog.EditorState
	if sel, _ := terminal.Selection(); sel != nil {
		state.HasSelection = true
		state.Language = sel.Language
		if ed, err := terminal.Editor(sel.EditorID); err == nil {
			if content, err := ed.Content(); err == nil {
				state.FileText = content
			}
		}
	}
	return state
}
