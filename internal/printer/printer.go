// Package printer renders an ExecutionResult for the CLI, in either a
// human-readable table form or JSON.
package printer

import "github.com/opensbx/coderun/internal/model"

// Printer knows how to render an execution result and simple messages.
type Printer interface {
	PrintResult(result model.ExecutionResult) error
	PrintHealth(runtimeReachable bool, activeSandboxCount int) error
	PrintMessage(msg string) error
}
