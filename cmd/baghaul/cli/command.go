// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is a minimal subcommand dispatcher over pflag.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one CLI command or subcommand.
type Command struct {
	// Name is the command name as typed by the user.
	Name string

	// Summary is a one-line description shown in the parent's help.
	Summary string

	// Description is the longer help text for the command itself.
	Description string

	// Usage overrides the synthesized usage line when set.
	Usage string

	// Flags returns the command's flag set. Called lazily; nil means
	// the command takes no flags.
	Flags func() *pflag.FlagSet

	// Subcommands are dispatched by the first positional argument.
	Subcommands []*Command

	// Run executes the command with the arguments left after flag
	// parsing. Exactly one of Run or Subcommands should be set.
	Run func(args []string) error

	parent *Command
}

// Execute parses args and dispatches to a subcommand or Run.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			name := args[0]
			for _, sub := range c.Subcommands {
				if sub.Name == name {
					sub.parent = c
					return sub.Execute(args[1:])
				}
			}
			return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", name, c.fullName())
		}
		if c.Run == nil {
			c.PrintHelp(os.Stderr)
			if len(args) == 0 {
				return fmt.Errorf("subcommand required")
			}
			return fmt.Errorf("subcommand required (got %q)", args[0])
		}
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			return fmt.Errorf("%v\n\nRun '%s --help' for usage.", err, c.fullName())
		}
		args = flagSet.Args()
	}

	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		return nil
	}
	return c.Run(args)
}

// PrintHelp writes the command's help text.
func (c *Command) PrintHelp(w io.Writer) {
	if c.Description != "" {
		fmt.Fprintln(w, c.Description)
		fmt.Fprintln(w)
	} else if c.Summary != "" {
		fmt.Fprintln(w, c.Summary)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Commands:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Flags:")
		fmt.Fprint(w, c.Flags().FlagUsages())
	}
}

func (c *Command) usageLine() string {
	if c.Usage != "" {
		return c.Usage
	}
	line := c.fullName()
	if len(c.Subcommands) > 0 {
		line += " <command>"
	}
	if c.Flags != nil {
		line += " [flags]"
	}
	return line
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
