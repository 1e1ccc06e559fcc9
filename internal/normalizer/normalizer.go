// Package normalizer implements the Result Normalizer (spec.md §4.5):
// it maps a Sandbox Supervisor's RawOutcome onto a caller-facing
// ExecutionStatus, redacts filesystem paths from stdout/stderr, and
// truncates output to the configured cap.
package normalizer

import (
	"regexp"
	"strings"

	"github.com/opensbx/coderun/internal/model"
)

var tmpPathRe = regexp.MustCompile(`/tmp/[^\s'"]+`)

// homePathRe strips absolute home/system paths such as /home/<user>/...
// or /root/...; this runs after the /tmp and source-filename
// substitutions so it only catches what those left behind.
var homePathRe = regexp.MustCompile(`(?:/home/[^\s'"]+|/root/[^\s'"]+)`)

// Normalizer holds the configured output cap; it carries no other
// state and is safe for concurrent use.
type Normalizer struct {
	outputCapBytes int
}

// New creates a Normalizer that caps stdout/stderr at capBytes.
func New(capBytes int) *Normalizer {
	if capBytes <= 0 {
		capBytes = model.OutputCapBytes
	}
	return &Normalizer{outputCapBytes: capBytes}
}

// Normalize maps outcome onto an ExecutionResult, applying redaction
// (in the order spec.md §4.5 specifies) before truncation.
func (n *Normalizer) Normalize(executionID string, outcome model.RawOutcome, sourceFilename string) model.ExecutionResult {
	status := n.classify(outcome)

	stdout := n.redact(outcome.Stdout, sourceFilename)
	stderr := n.redact(outcome.Stderr, sourceFilename)
	stdout = n.truncate(stdout)
	stderr = n.truncate(stderr)

	return model.ExecutionResult{
		ExecutionID:     executionID,
		Status:          status,
		Stdout:          stdout,
		Stderr:          stderr,
		ExitCode:        outcome.ExitCode,
		WallTimeMs:      outcome.WallTimeMs,
		PeakMemoryBytes: outcome.PeakMemoryBytes,
	}
}

// classify maps a RawOutcome's termination cause and exit code onto an
// ExecutionStatus per spec.md §4.5's table. ValidationRejected is never
// produced here; the orchestrator short-circuits before a sandbox ever
// runs.
func (n *Normalizer) classify(outcome model.RawOutcome) model.ExecutionStatus {
	switch outcome.TerminationCause {
	case model.TerminationKilledByTimeout:
		return model.StatusTimeout
	case model.TerminationKilledByMemory:
		return model.StatusMemoryLimitExceeded
	case model.TerminationInternalFailure:
		return model.StatusInternalError
	case model.TerminationExited:
		if outcome.ExitCode != 0 && looksLikeCompilerDiagnostic(outcome.Stderr) {
			return model.StatusCompilationError
		}
		if outcome.ExitCode == 0 {
			return model.StatusSuccess
		}
		return model.StatusRuntimeError
	default:
		return model.StatusInternalError
	}
}

// compilerDiagnosticMarkers are heuristic substrings that indicate
// stderr came from a compile step rather than the running program
// (spec.md §4.5/§9: classification here is a heuristic, not a
// two-phase launch with independent exit codes).
var compilerDiagnosticMarkers = []string{
	"error:",
	"Compilation failed",
	"cannot find symbol",
	"fatal error:",
	": error ",
}

func looksLikeCompilerDiagnostic(stderr string) bool {
	for _, marker := range compilerDiagnosticMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// redact applies the three path-redaction rules in spec.md §4.5's
// required order: /tmp/<path> first, then the source filename, then
// any remaining absolute home/system path.
func (n *Normalizer) redact(s, sourceFilename string) string {
	s = tmpPathRe.ReplaceAllString(s, "[temp_file]")
	if sourceFilename != "" {
		s = strings.ReplaceAll(s, sourceFilename, "[script]")
	}
	s = homePathRe.ReplaceAllString(s, "")
	return s
}

// truncate enforces the output cap, appending exactly one truncation
// marker when the content was cut. The marker itself counts against the
// cap so the result never exceeds n.outputCapBytes (spec.md §8's
// len(stdout) <= OUTPUT_CAP_BYTES).
func (n *Normalizer) truncate(s string) string {
	if len(s) <= n.outputCapBytes {
		return s
	}
	contentCap := n.outputCapBytes - len(model.TruncationMarker)
	if contentCap < 0 {
		contentCap = 0
	}
	return s[:contentCap] + model.TruncationMarker
}
