package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/sandbox/docker"
)

// DoctorCommand runs preflight checks against the container runtime.
type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the "doctor" command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("doctor", "Run preflight checks against the container runtime.")
	return c
}

// Name returns the full command name.
func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

// Run checks daemon reachability and every required image, printing a
// summary and failing the process if any check reported an error.
func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	engine, err := docker.NewEngine(docker.EngineConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create docker engine: %w", err)
	}

	results := engine.Check(ctx, imageList)

	fmt.Fprintln(out, "Checking docker runtime...")
	for _, r := range results {
		fmt.Fprintf(out, "  %s %-30s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	ok, warnings, errs := model.CountByStatus(results)
	fmt.Fprintln(out)
	if errs == 0 && warnings == 0 {
		fmt.Fprintln(out, "All checks passed!")
	} else {
		fmt.Fprintf(out, "%d ok, %d warning(s), %d error(s)\n", ok, warnings, errs)
	}

	if model.HasErrors(results) {
		return fmt.Errorf("preflight checks failed with %d error(s)", errs)
	}
	return nil
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}
