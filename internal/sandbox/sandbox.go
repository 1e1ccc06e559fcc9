// Package sandbox defines the Sandbox Supervisor contract (spec.md
// §4.4): run one disposable, hardened container per execution and
// report its raw outcome. Concrete engines (docker, fake) implement
// Supervisor.
package sandbox

import (
	"context"

	"github.com/opensbx/coderun/internal/model"
)

// Supervisor is the interface for running one execution inside an
// isolated container. Implementations own the container's full
// lifecycle for the duration of one Run call; no container outlives it.
type Supervisor interface {
	// Run creates, starts, supervises, and reaps exactly one container
	// for ws/spec/limits, returning its RawOutcome. Run blocks until the
	// container has exited (or been killed) and been removed.
	Run(ctx context.Context, ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error)

	// Kill terminates the in-flight container registered for
	// executionID, if any, and reports whether one was found and
	// signaled. It is safe to call concurrently with Run and is
	// idempotent.
	Kill(executionID string) (terminated bool)

	// Health reports whether the container runtime is reachable and how
	// many sandboxes are currently live.
	Health(ctx context.Context) (runtimeReachable bool, activeSandboxCount int)

	// EnsureImages pre-pulls the given images at startup. A failure to
	// pull one image is returned per-image rather than aborting the
	// whole pass, so callers can log-and-continue per spec.md §6.
	EnsureImages(ctx context.Context, images []string) map[string]error
}
