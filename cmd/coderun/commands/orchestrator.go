package commands

import (
	"fmt"

	"github.com/opensbx/coderun/internal/config"
	"github.com/opensbx/coderun/internal/orchestrator"
	"github.com/opensbx/coderun/internal/printer"
	"github.com/opensbx/coderun/internal/registry"
	"github.com/opensbx/coderun/internal/sandbox/docker"
	"github.com/opensbx/coderun/internal/screener"
	"github.com/opensbx/coderun/internal/task/memory"
	"github.com/opensbx/coderun/internal/workspace"
)

// newOrchestrator wires the Language Registry, Screener, Workspace
// Manager, and a real Docker Sandbox Supervisor into an Orchestrator,
// per the environment configuration in spec.md §6.
func newOrchestrator(root *RootCommand) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}

	reg, err := registry.New(registry.Config{Limits: cfg, Logger: root.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create language registry: %w", err)
	}

	ws, err := workspace.New(workspace.Config{DataDir: root.DataDir, Logger: root.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create workspace manager: %w", err)
	}

	tasks, err := memory.NewManager(memory.ManagerConfig{Logger: root.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create step tracker: %w", err)
	}

	engine, err := docker.NewEngine(docker.EngineConfig{
		OutputCapBytes: cfg.OutputCapBytes,
		Tasks:          tasks,
		Logger:         root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create docker sandbox supervisor: %w", err)
	}

	return orchestrator.New(orchestrator.Config{
		Registry:                reg,
		Screener:                screener.New(),
		Workspace:               ws,
		Supervisor:              engine,
		MaxConcurrentExecutions: cfg.MaxConcurrentExecutions,
		OutputCapBytes:          cfg.OutputCapBytes,
		Logger:                  root.Logger,
	})
}

// imageList is the set of images required at startup (spec.md §6).
var imageList = []string{
	"python:3.9-alpine",
	"node:16-alpine",
	"gcc:9-alpine",
	"openjdk:11-alpine",
}

func newPrinter(root *RootCommand) printer.Printer {
	if root.Output == OutputJSON {
		return printer.NewJSONPrinter(root.Stdout)
	}
	return printer.NewTablePrinter(root.Stdout)
}
