// Package command implements the refactool CLI commands.
package command

import (
	"flag"
	"io"
)

// Command is one CLI subcommand. The app parses flags through SetupFlags and
// hands Execute the leftover positional arguments.
type Command interface {
	Name() string
	Description() string
	Usage() string

	// SetupFlags registers the command's flags on fs before parsing.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command. All output goes through the given writers.
	Execute(args []string, stdout, stderr io.Writer) error
}

// BaseCommand carries the static metadata shared by every command; concrete
// commands embed it and supply Execute.
type BaseCommand struct {
	name, description, usage string
}

func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{name: name, description: description, usage: usage}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

// SetupFlags registers nothing; commands with flags override it.
func (c *BaseCommand) SetupFlags(*flag.FlagSet) {}
