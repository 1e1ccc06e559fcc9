package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

// KillCommand terminates an in-flight execution.
type KillCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	executionID string
}

// NewKillCommand returns the "kill" command.
func NewKillCommand(rootCmd *RootCommand, app *kingpin.Application) *KillCommand {
	c := &KillCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("kill", "Terminate an in-flight execution.")
	c.Cmd.Arg("execution-id", "Execution ID to terminate.").Required().StringVar(&c.executionID)

	return c
}

// Name returns the full command name.
func (c KillCommand) Name() string { return c.Cmd.FullCommand() }

// Run terminates the execution and prints whether one was found.
func (c KillCommand) Run(ctx context.Context) error {
	o, err := newOrchestrator(c.rootCmd)
	if err != nil {
		return err
	}

	terminated := o.Kill(c.executionID)

	p := newPrinter(c.rootCmd)
	if terminated {
		return p.PrintMessage(fmt.Sprintf("terminated execution %s", c.executionID))
	}
	return p.PrintMessage(fmt.Sprintf("no in-flight execution %s was found", c.executionID))
}
