package printer

import (
	"encoding/json"
	"io"

	"github.com/opensbx/coderun/internal/model"
)

// JSONPrinter renders an execution result as JSON.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// resultOutput is the JSON shape for one ExecutionResult.
type resultOutput struct {
	ExecutionID     string   `json:"execution_id"`
	Status          string   `json:"status"`
	Stdout          string   `json:"stdout"`
	Stderr          string   `json:"stderr"`
	ExitCode        int      `json:"exit_code"`
	WallTimeMs      int64    `json:"wall_time_ms"`
	PeakMemoryBytes *int64   `json:"peak_memory_bytes,omitempty"`
	Violations      []string `json:"violations,omitempty"`
}

// healthOutput is the JSON shape for a health check.
type healthOutput struct {
	RuntimeReachable   bool `json:"runtime_reachable"`
	ActiveSandboxCount int  `json:"active_sandbox_count"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintResult renders result as a JSON object.
func (j *JSONPrinter) PrintResult(result model.ExecutionResult) error {
	output := resultOutput{
		ExecutionID:     result.ExecutionID,
		Status:          string(result.Status),
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		ExitCode:        result.ExitCode,
		WallTimeMs:      result.WallTimeMs,
		PeakMemoryBytes: result.PeakMemoryBytes,
		Violations:      result.Violations,
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintHealth renders a health check as a JSON object.
func (j *JSONPrinter) PrintHealth(runtimeReachable bool, activeSandboxCount int) error {
	output := healthOutput{
		RuntimeReachable:   runtimeReachable,
		ActiveSandboxCount: activeSandboxCount,
	}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
