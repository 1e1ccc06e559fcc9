// Package orchestrator implements the Execution Orchestrator (spec.md
// §4.6): it drives one execution end to end through the Screener,
// Workspace Manager, Language Registry, Sandbox Supervisor and Result
// Normalizer, and owns the concurrency admission gate.
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/normalizer"
	"github.com/opensbx/coderun/internal/registry"
	"github.com/opensbx/coderun/internal/sandbox"
	"github.com/opensbx/coderun/internal/screener"
	"github.com/opensbx/coderun/internal/workspace"
)

// MetadataSink receives the final result of every execution alongside
// the caller-supplied invocation context, for an external persistence
// layer. Per spec.md §6, a sink failure must not fail the execution.
type MetadataSink func(ctx context.Context, result model.ExecutionResult, invocation model.InvocationContext)

// Config is the configuration for the Execution Orchestrator.
type Config struct {
	Registry   *registry.Registry
	Screener   *screener.Screener
	Workspace  *workspace.Manager
	Supervisor sandbox.Supervisor

	// MaxConcurrentExecutions bounds simultaneously running sandboxes
	// (spec.md §5's MAX_CONCURRENT_EXECUTIONS). Excess calls wait; they
	// never fail-fast, since the spec leaves fail-fast-vs-wait as an
	// operator policy and waiting is the safer default for a library.
	MaxConcurrentExecutions int

	// OutputCapBytes bounds stdout/stderr length before truncation.
	OutputCapBytes int

	// MetadataSink is called once per execution with its final result,
	// if set. A panic in it is recovered and logged; it never fails the
	// execution.
	MetadataSink MetadataSink

	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Screener == nil {
		return fmt.Errorf("screener is required")
	}
	if c.Workspace == nil {
		return fmt.Errorf("workspace manager is required")
	}
	if c.Supervisor == nil {
		return fmt.Errorf("sandbox supervisor is required")
	}
	if c.MaxConcurrentExecutions <= 0 {
		c.MaxConcurrentExecutions = 10
	}
	if c.OutputCapBytes <= 0 {
		c.OutputCapBytes = model.OutputCapBytes
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "orchestrator.Orchestrator"})
	return nil
}

// Orchestrator drives one execution at a time through every collaborator
// in spec.md §4.6's ten-step sequence. It is safe for concurrent use.
type Orchestrator struct {
	registry   *registry.Registry
	screener   *screener.Screener
	workspace  *workspace.Manager
	supervisor sandbox.Supervisor
	normalizer *normalizer.Normalizer

	admission *semaphore.Weighted
	sink      MetadataSink
	logger    log.Logger
}

// New creates an Orchestrator. Per spec.md §6, it asks the supervisor to
// pre-pull every registered language's image before returning; a failure
// to pull one image is logged, not fatal, since the image can still be
// pulled lazily on first use.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		registry:   cfg.Registry,
		screener:   cfg.Screener,
		workspace:  cfg.Workspace,
		supervisor: cfg.Supervisor,
		normalizer: normalizer.New(cfg.OutputCapBytes),
		admission:  semaphore.NewWeighted(int64(cfg.MaxConcurrentExecutions)),
		sink:       cfg.MetadataSink,
		logger:     cfg.Logger,
	}

	o.ensureImages(context.Background())

	return o, nil
}

// ensureImages pre-pulls every registered language's image, logging
// per-image failures without aborting startup.
func (o *Orchestrator) ensureImages(ctx context.Context) {
	specs := o.registry.List()
	images := make([]string, 0, len(specs))
	for _, spec := range specs {
		images = append(images, spec.Image)
	}

	for img, err := range o.supervisor.EnsureImages(ctx, images) {
		if err != nil {
			o.logger.Warningf("Could not pre-pull image %s: %s", img, err)
		}
	}
}

// Execute runs req through validation, screening, sandboxing and
// normalization, returning the caller-facing ExecutionResult. It never
// returns an error for caller-input problems; those are reported as
// ExecutionResult.Status values (ValidationRejected, etc.) per spec.md
// §7. A non-nil error indicates the orchestrator itself could not run
// the request (e.g. the admission gate's context was cancelled first).
func (o *Orchestrator) Execute(ctx context.Context, req model.ExecutionRequest, invocation model.InvocationContext) (*model.ExecutionResult, error) {
	executionID := newExecutionID()
	start := time.Now()

	// Step 2: validate request bounds.
	if err := req.Validate(); err != nil {
		return o.reject(ctx, executionID, invocation, []string{err.Error()}), nil
	}

	spec, err := o.registry.Lookup(req.Language)
	if err != nil {
		return o.reject(ctx, executionID, invocation, []string{fmt.Sprintf("unsupported language %q", req.Language)}), nil
	}

	// Step 3: screen the source; reject immediately without ever
	// touching the filesystem or the container runtime.
	screening := o.screener.Validate(req.Source, req.Language)
	if !screening.Accepted {
		return o.reject(ctx, executionID, invocation, screening.Violations), nil
	}

	// Step 5: resolve limits.
	limits := resolveLimits(spec.Default, req.Limits)

	// Admission gate (spec.md §5): wait for a slot before allocating any
	// container-side resource.
	if err := o.admission.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for an execution slot: %w", err)
	}
	defer o.admission.Release(1)

	runCtx, cancel := deadlineContext(ctx, limits.WallTimeoutMs)
	defer cancel()

	result := o.run(runCtx, executionID, req, screening.SanitizedSource, spec, limits, start)
	o.notifySink(ctx, *result, invocation)
	return result, nil
}

// run performs steps 6-9: create the workspace, invoke the supervisor,
// normalize the outcome, and destroy the workspace. It guarantees
// workspace destroy and sandbox reap run even if the supervisor fails,
// per spec.md §4.6's "no partial state leaks out" rule (the supervisor
// itself guarantees container reap on every return path).
func (o *Orchestrator) run(ctx context.Context, executionID string, req model.ExecutionRequest, sanitizedSource string, spec model.LanguageSpec, limits model.ResolvedLimits, start time.Time) *model.ExecutionResult {
	ws, err := o.workspace.Create(executionID)
	if err != nil {
		return o.internalError(executionID, err, start)
	}
	defer o.workspace.Destroy(ws)

	if err := o.workspace.WriteSource(&ws, spec, sanitizedSource); err != nil {
		return o.internalError(executionID, err, start)
	}
	if err := o.workspace.WriteStdin(&ws, req.Stdin); err != nil {
		return o.internalError(executionID, err, start)
	}

	outcome, err := o.supervisor.Run(ctx, ws, spec, limits)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome.TerminationCause = model.TerminationKilledByTimeout
		} else {
			return o.internalError(executionID, err, start)
		}
	}

	sourceFilename := spec.SourceFilename(sanitizedSource)
	result := o.normalizer.Normalize(executionID, outcome, sourceFilename)
	result.WallTimeMs = time.Since(start).Milliseconds()
	return &result
}

// Kill terminates the in-flight execution identified by executionID, if
// one is running, and reports whether it found one.
func (o *Orchestrator) Kill(executionID string) bool {
	return o.supervisor.Kill(executionID)
}

// Health reports whether the container runtime is reachable and how
// many sandboxes are currently live.
func (o *Orchestrator) Health(ctx context.Context) (bool, int) {
	return o.supervisor.Health(ctx)
}

func (o *Orchestrator) reject(ctx context.Context, executionID string, invocation model.InvocationContext, violations []string) *model.ExecutionResult {
	result := &model.ExecutionResult{
		ExecutionID: executionID,
		Status:      model.StatusValidationRejected,
		Violations:  violations,
	}
	o.notifySink(ctx, *result, invocation)
	return result
}

func (o *Orchestrator) internalError(executionID string, err error, start time.Time) *model.ExecutionResult {
	o.logger.Errorf("Execution %s failed internally: %s", executionID, err)
	return &model.ExecutionResult{
		ExecutionID: executionID,
		Status:      model.StatusInternalError,
		Stderr:      err.Error(),
		WallTimeMs:  time.Since(start).Milliseconds(),
	}
}

func (o *Orchestrator) notifySink(ctx context.Context, result model.ExecutionResult, invocation model.InvocationContext) {
	if o.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorf("Metadata sink panicked for execution %s: %v", result.ExecutionID, r)
		}
	}()
	o.sink(ctx, result, invocation)
}

// resolveLimits merges an optional caller override on top of a
// LanguageSpec's defaults, clipping every honored field to its allowed
// range (spec.md §3/§4.6 step 5): the wall timeout to
// [MinWallTimeoutMs, MaxWallTimeoutMs], and no field above the
// language's own positive default.
func resolveLimits(defaults model.ResolvedLimits, override *model.LimitsOverride) model.ResolvedLimits {
	limits := defaults
	if override == nil {
		return limits
	}
	if override.WallTimeoutMs != nil {
		ms := *override.WallTimeoutMs
		if ms < model.MinWallTimeoutMs {
			ms = model.MinWallTimeoutMs
		}
		if ms > model.MaxWallTimeoutMs {
			ms = model.MaxWallTimeoutMs
		}
		if defaults.WallTimeoutMs > 0 && ms > defaults.WallTimeoutMs {
			ms = defaults.WallTimeoutMs
		}
		limits.WallTimeoutMs = ms
	}
	if override.MemoryBytes != nil && *override.MemoryBytes > 0 {
		limits.MemoryBytes = *override.MemoryBytes
		if defaults.MemoryBytes > 0 && limits.MemoryBytes > defaults.MemoryBytes {
			limits.MemoryBytes = defaults.MemoryBytes
		}
	}
	if override.CPUFraction != nil && *override.CPUFraction > 0 {
		limits.CPUFraction = *override.CPUFraction
		if defaults.CPUFraction > 0 && limits.CPUFraction > defaults.CPUFraction {
			limits.CPUFraction = defaults.CPUFraction
		}
	}
	return limits
}

// deadlineContext derives the execution's cancellation token from the
// caller's context deadline or the resolved wall-clock limit, whichever
// is shorter (spec.md §5).
func deadlineContext(ctx context.Context, wallTimeoutMs int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(wallTimeoutMs)*time.Millisecond)
}

// newExecutionID generates "exec_<monotonic_ts>_<16 hex>" per spec.md
// §4.6 step 1.
func newExecutionID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("exec_%d_%s", time.Now().UnixNano(), hex.EncodeToString(buf))
}
