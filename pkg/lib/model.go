package lib

import (
	"context"
	"errors"

	"github.com/opensbx/coderun/internal/model"
)

// Sentinel errors returned by SDK methods. Use [errors.Is] to test for them.
var (
	// ErrNotValid matches a returned error that wraps the engine's internal
	// not-valid sentinel. Requests that fail validation or screening are
	// not reported through it; they come back with
	// StatusValidationRejected.
	ErrNotValid = errors.New("not valid")
	// ErrInternal indicates an unexpected failure in the execution
	// pipeline itself, not attributable to the submitted source.
	ErrInternal = errors.New("internal error")
)

// ExecutionStatus classifies how an execution concluded.
type ExecutionStatus string

// Execution outcomes, mirroring spec.md §3's status taxonomy.
const (
	StatusSuccess             ExecutionStatus = "success"
	StatusRuntimeError        ExecutionStatus = "runtime_error"
	StatusCompilationError    ExecutionStatus = "compilation_error"
	StatusTimeout             ExecutionStatus = "timeout"
	StatusMemoryLimitExceeded ExecutionStatus = "memory_limit_exceeded"
	StatusValidationRejected  ExecutionStatus = "validation_rejected"
	StatusInternalError       ExecutionStatus = "internal_error"
)

// LimitsOverride narrows the language's default resource limits for a
// single execution. Every field is optional; unset fields keep the
// language's default.
type LimitsOverride struct {
	WallTimeoutMs *int
	MemoryBytes   *int64
	CPUFraction   *float64
}

// ExecutionRequest describes one piece of source code to run.
type ExecutionRequest struct {
	// Language selects the runtime/toolchain (e.g. "python", "cpp").
	Language string
	// Source is the program text.
	Source string
	// Stdin is fed to the program's standard input.
	Stdin string
	// Limits, if set, overrides the language's default resource limits.
	Limits *LimitsOverride
}

// InvocationContext identifies the caller for auditing and metadata-sink
// purposes. Both fields are optional.
type InvocationContext struct {
	CallerID      string
	CallerAddress string
}

// ExecutionResult is the outcome of one execution.
type ExecutionResult struct {
	ExecutionID     string
	Status          ExecutionStatus
	Stdout          string
	Stderr          string
	ExitCode        int
	WallTimeMs      int
	PeakMemoryBytes *int64
	Violations      []string
}

// MetadataSink, when set on [Config], is called once per completed
// execution. A panic in the sink is recovered and logged by the SDK and
// never fails the execution it describes.
type MetadataSink func(ctx context.Context, result ExecutionResult, invocation InvocationContext)

// CheckStatus classifies a single preflight check's outcome.
type CheckStatus string

// Check outcomes.
const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusError   CheckStatus = "error"
)

// CheckResult is the outcome of a single preflight check run by [Doctor].
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}

func toInternalRequest(req ExecutionRequest) model.ExecutionRequest {
	internal := model.ExecutionRequest{
		Language: model.LanguageID(req.Language),
		Source:   req.Source,
		Stdin:    req.Stdin,
	}
	if req.Limits != nil {
		internal.Limits = &model.LimitsOverride{
			WallTimeoutMs: req.Limits.WallTimeoutMs,
			MemoryBytes:   req.Limits.MemoryBytes,
			CPUFraction:   req.Limits.CPUFraction,
		}
	}
	return internal
}

func toInternalInvocation(inv InvocationContext) model.InvocationContext {
	return model.InvocationContext{
		CallerID:      inv.CallerID,
		CallerAddress: inv.CallerAddress,
	}
}

func fromInternalResult(r model.ExecutionResult) ExecutionResult {
	return ExecutionResult{
		ExecutionID:     r.ExecutionID,
		Status:          ExecutionStatus(r.Status),
		Stdout:          r.Stdout,
		Stderr:          r.Stderr,
		ExitCode:        r.ExitCode,
		WallTimeMs:      int(r.WallTimeMs),
		PeakMemoryBytes: r.PeakMemoryBytes,
		Violations:      r.Violations,
	}
}

func toInternalSink(sink MetadataSink) func(context.Context, model.ExecutionResult, model.InvocationContext) {
	if sink == nil {
		return nil
	}
	return func(ctx context.Context, result model.ExecutionResult, invocation model.InvocationContext) {
		sink(ctx, fromInternalResult(result), InvocationContext{
			CallerID:      invocation.CallerID,
			CallerAddress: invocation.CallerAddress,
		})
	}
}

func fromInternalCheckResults(results []model.CheckResult) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return out
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrInternal):
		return joinErrors(err, ErrInternal)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
