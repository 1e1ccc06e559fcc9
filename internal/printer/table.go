package printer

import (
	"fmt"
	"io"

	"github.com/opensbx/coderun/internal/model"
)

// TablePrinter renders an execution result as plain, aligned text.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintResult renders the result's status line followed by its
// streams, in the order a terminal reader expects them.
func (t *TablePrinter) PrintResult(result model.ExecutionResult) error {
	fmt.Fprintf(t.writer, "execution:  %s\n", result.ExecutionID)
	fmt.Fprintf(t.writer, "status:     %s\n", result.Status)
	fmt.Fprintf(t.writer, "exit code:  %d\n", result.ExitCode)
	fmt.Fprintf(t.writer, "wall time:  %d ms\n", result.WallTimeMs)
	if result.PeakMemoryBytes != nil {
		fmt.Fprintf(t.writer, "peak mem:   %s\n", FormatBytes(*result.PeakMemoryBytes))
	}
	if len(result.Violations) > 0 {
		fmt.Fprintln(t.writer, "violations:")
		for _, v := range result.Violations {
			fmt.Fprintf(t.writer, "  - %s\n", v)
		}
	}
	if result.Stdout != "" {
		fmt.Fprintln(t.writer, "--- stdout ---")
		fmt.Fprintln(t.writer, result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintln(t.writer, "--- stderr ---")
		fmt.Fprintln(t.writer, result.Stderr)
	}
	return nil
}

// PrintHealth renders a one-line health summary.
func (t *TablePrinter) PrintHealth(runtimeReachable bool, activeSandboxCount int) error {
	status := "unreachable"
	if runtimeReachable {
		status = "reachable"
	}
	fmt.Fprintf(t.writer, "runtime:    %s\n", status)
	fmt.Fprintf(t.writer, "active:     %d\n", activeSandboxCount)
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
