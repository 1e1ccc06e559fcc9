package lib

import (
	"context"
	"fmt"

	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/sandbox/docker"
)

// DefaultImages lists the language runtime images a deployment typically
// wants checked and pre-pulled at startup.
var DefaultImages = []string{
	"python:3.9-alpine",
	"node:16-alpine",
	"gcc:9-alpine",
	"openjdk:11-alpine",
}

// Doctor runs preflight checks against the container runtime: daemon
// reachability and, for each entry in images, whether it is already
// present locally. Pass [DefaultImages] for the stock language set.
func Doctor(ctx context.Context, images []string, logger log.Logger) ([]CheckResult, error) {
	engine, err := docker.NewEngine(docker.EngineConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create docker engine: %w", err)
	}
	return fromInternalCheckResults(engine.Check(ctx, images)), nil
}
