// Package fake provides an in-memory Sandbox Supervisor for unit tests
// that never shells out to a real container runtime.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/model"
)

// RunHandler lets a test customize the RawOutcome returned for a given
// run, in place of the default "echo success" behavior.
type RunHandler func(ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error)

// Config is the configuration for the fake Sandbox Supervisor.
type Config struct {
	// Handler overrides the default successful-run simulation. Optional.
	Handler RunHandler
	Logger  log.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Fake"})
	return nil
}

// Engine is a fake implementation of sandbox.Supervisor. It simulates
// container lifecycle in memory so tests can exercise the orchestrator
// without a Docker daemon.
type Engine struct {
	handler RunHandler
	logger  log.Logger

	mu        sync.Mutex
	live      map[string]bool
	killed    map[string]bool
	reachable bool
}

// NewEngine creates a new fake Sandbox Supervisor.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		handler:   cfg.Handler,
		logger:    cfg.Logger,
		live:      make(map[string]bool),
		killed:    make(map[string]bool),
		reachable: true,
	}, nil
}

// SetReachable controls what Health reports for runtimeReachable.
func (e *Engine) SetReachable(reachable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reachable = reachable
}

// Run simulates running one execution. By default it returns a
// Success-shaped outcome describing the invocation, unless a Handler
// was configured.
func (e *Engine) Run(ctx context.Context, ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
	e.mu.Lock()
	e.live[ws.ExecutionID] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.live, ws.ExecutionID)
		e.mu.Unlock()
	}()

	if e.handler != nil {
		return e.handler(ws, spec, limits)
	}

	e.mu.Lock()
	wasKilled := e.killed[ws.ExecutionID]
	e.mu.Unlock()
	if wasKilled {
		return model.RawOutcome{TerminationCause: model.TerminationKilledByTimeout}, nil
	}

	e.logger.Infof("Running fake sandbox for execution %s: %v", ws.ExecutionID, spec.Launch.Cmd)
	return model.RawOutcome{
		Stdout:           fmt.Sprintf("fake output for: %v\n", spec.Launch.Cmd),
		ExitCode:         0,
		TerminationCause: model.TerminationExited,
	}, nil
}

// Kill marks executionID as killed and reports whether it was live.
func (e *Engine) Kill(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.live[executionID]
	e.killed[executionID] = true
	return ok
}

// Health reports the configured reachability and the current live count.
func (e *Engine) Health(ctx context.Context) (bool, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reachable, len(e.live)
}

// EnsureImages always reports success for every image.
func (e *Engine) EnsureImages(ctx context.Context, images []string) map[string]error {
	results := make(map[string]error, len(images))
	for _, img := range images {
		results[img] = nil
	}
	return results
}
