package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/refactools/refactool/internal/command"
	"github.com/refactools/refactool/internal/refactor"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		if errors.Is(err, refactor.ErrCancelled) {
			_, _ = fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(130)
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := command.NewEnv()
	if err != nil {
		return err
	}

	registry := command.NewRegistry()
	helpCmd := command.NewHelpCommand(registry)
	registry.Register(helpCmd)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(env.Config))
	registry.Register(command.NewInitCommand())
	registry.Register(command.NewListCommand(env))
	registry.Register(command.NewRunCommand(env))

	if len(os.Args) < 2 {
		return helpCmd.Execute([]string{}, os.Stdout, os.Stderr)
	}

	cmdName := os.Args[1]
	if cmdName == "-h" || cmdName == "--help" {
		return helpCmd.Execute([]string{}, os.Stdout, os.Stderr)
	}

	cmd, err := registry.Get(cmdName)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmdName)
		_, _ = fmt.Fprintln(os.Stderr, "Use 'refactool help' to see available commands.")
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ExitOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s\n", cmd.Usage())
		_, _ = fmt.Fprintf(os.Stderr, "\n%s\n\n", cmd.Description())
		_, _ = fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)

	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	return cmd.Execute(fs.Args(), os.Stdout, os.Stderr)
}
