package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensbx/coderun/internal/config"
	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/orchestrator"
	"github.com/opensbx/coderun/internal/registry"
	"github.com/opensbx/coderun/internal/sandbox/docker"
	"github.com/opensbx/coderun/internal/screener"
	"github.com/opensbx/coderun/internal/task/memory"
	"github.com/opensbx/coderun/internal/workspace"
)

const defaultDataDir = ".coderun"

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. An empty Config{} uses
// ~/.coderun for per-execution workspaces and the environment's default
// resource limits.
type Config struct {
	// DataDir is the base directory for per-execution workspaces.
	// Default: ~/.coderun.
	DataDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// MaxConcurrentExecutions caps the number of sandboxes running at once.
	// Default: the environment's MAX_CONCURRENT_EXECUTIONS, or 10.
	MaxConcurrentExecutions int

	// MetadataSink, if set, is invoked once per completed execution with its
	// result. A panic in the sink is recovered and logged and never fails
	// the execution it describes.
	MetadataSink MetadataSink
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, defaultDataDir)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for executing untrusted source code in
// a hardened, ephemeral sandbox.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	orch    *orchestrator.Orchestrator
	closeFn func() error
}

// New creates a new SDK client, wiring the Language Registry, Screener,
// Workspace Manager, and a Docker-backed Sandbox Supervisor behind a single
// Orchestrator.
//
// The caller must call [Client.Close] when done. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	limits, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load resource limits: %w", err)
	}
	if cfg.MaxConcurrentExecutions > 0 {
		limits.MaxConcurrentExecutions = cfg.MaxConcurrentExecutions
	}

	reg, err := registry.New(registry.Config{Limits: limits, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create language registry: %w", err)
	}

	ws, err := workspace.New(workspace.Config{DataDir: cfg.DataDir, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create workspace manager: %w", err)
	}

	tasks, err := memory.NewManager(memory.ManagerConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create step tracker: %w", err)
	}

	engine, err := docker.NewEngine(docker.EngineConfig{
		OutputCapBytes: limits.OutputCapBytes,
		Tasks:          tasks,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create docker sandbox supervisor: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Registry:                reg,
		Screener:                screener.New(),
		Workspace:               ws,
		Supervisor:              engine,
		MaxConcurrentExecutions: limits.MaxConcurrentExecutions,
		OutputCapBytes:          limits.OutputCapBytes,
		MetadataSink:            toInternalSink(cfg.MetadataSink),
		Logger:                  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create orchestrator: %w", err)
	}

	return &Client{orch: orch}, nil
}

// Close releases resources held by the client. After Close returns, the
// client must not be used.
//
// The underlying Docker Sandbox Supervisor holds no resources beyond its
// per-execution containers, which are destroyed as each execution
// completes, so Close is currently a no-op kept for SDK-lifecycle symmetry.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
