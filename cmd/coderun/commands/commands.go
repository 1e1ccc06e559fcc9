// Package commands implements the coderun CLI's subcommands.
package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/opensbx/coderun/internal/log"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// OutputTable renders results as aligned text.
	OutputTable = "table"
	// OutputJSON renders results as JSON.
	OutputJSON = "json"
)

// Command represents an application command; every command registered
// on main implements this.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand holds the global configuration shared by every subcommand.
type RootCommand struct {
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	Output     string
	DataDir    string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand registers the global flags and returns their holder.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("output", "Selects the result rendering.").Short('o').Default(OutputTable).EnumVar(&c.Output, OutputTable, OutputJSON)

	defaultDataDir := filepath.Join(homeDir(), ".coderun")
	app.Flag("data-dir", "Root directory for per-execution workspaces.").Envar("CODERUN_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)

	return c
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
