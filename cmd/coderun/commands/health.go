package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

// HealthCommand reports container runtime reachability and sandbox load.
type HealthCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewHealthCommand returns the "health" command.
func NewHealthCommand(rootCmd *RootCommand, app *kingpin.Application) *HealthCommand {
	c := &HealthCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("health", "Report container runtime reachability and active sandbox count.")
	return c
}

// Name returns the full command name.
func (c HealthCommand) Name() string { return c.Cmd.FullCommand() }

// Run queries and prints the orchestrator's health.
func (c HealthCommand) Run(ctx context.Context) error {
	o, err := newOrchestrator(c.rootCmd)
	if err != nil {
		return err
	}

	reachable, active := o.Health(ctx)

	p := newPrinter(c.rootCmd)
	if err := p.PrintHealth(reachable, active); err != nil {
		return fmt.Errorf("could not print health: %w", err)
	}
	if !reachable {
		return fmt.Errorf("container runtime is unreachable")
	}
	return nil
}
