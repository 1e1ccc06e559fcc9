package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/opensbx/coderun/internal/model"
)

// RunCommand executes one source file in a sandboxed container.
type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	language   string
	sourcePath string
	stdinPath  string
	wallTimeMs int
}

// NewRunCommand returns the "run" command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Execute a source file in a hardened sandbox.")
	c.Cmd.Arg("language", "Language ID (python, javascript, cpp, java).").Required().StringVar(&c.language)
	c.Cmd.Arg("source", "Path to the source file, or \"-\" for stdin.").Required().StringVar(&c.sourcePath)
	c.Cmd.Flag("stdin", "Path to a file supplying the program's standard input.").StringVar(&c.stdinPath)
	c.Cmd.Flag("wall-timeout-ms", "Override the wall-clock timeout in milliseconds.").IntVar(&c.wallTimeMs)

	return c
}

// Name returns the full command name.
func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

// Run executes the requested source file and prints its result.
func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	source, err := readSource(c.sourcePath, c.rootCmd.Stdin)
	if err != nil {
		return fmt.Errorf("could not read source: %w", err)
	}

	var stdin string
	if c.stdinPath != "" {
		data, err := os.ReadFile(c.stdinPath)
		if err != nil {
			return fmt.Errorf("could not read stdin file: %w", err)
		}
		stdin = string(data)
	}

	req := model.ExecutionRequest{
		Language: model.LanguageID(c.language),
		Source:   source,
		Stdin:    stdin,
	}
	if c.wallTimeMs > 0 {
		ms := c.wallTimeMs
		req.Limits = &model.LimitsOverride{WallTimeoutMs: &ms}
	}

	o, err := newOrchestrator(c.rootCmd)
	if err != nil {
		return err
	}

	logger.Debugf("Executing %s source from %s", c.language, c.sourcePath)
	result, err := o.Execute(ctx, req, model.InvocationContext{})
	if err != nil {
		return fmt.Errorf("could not execute request: %w", err)
	}

	p := newPrinter(c.rootCmd)
	if err := p.PrintResult(*result); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}

	if result.Status != model.StatusSuccess {
		os.Exit(1)
	}
	return nil
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file %q: %w", path, err)
	}
	return string(data), nil
}
