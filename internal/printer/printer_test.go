package printer_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/printer"
)

func resultFixture() model.ExecutionResult {
	peak := int64(24 * 1024 * 1024)
	return model.ExecutionResult{
		ExecutionID:     "exec_1_deadbeef",
		Status:          model.StatusSuccess,
		Stdout:          "hello\n",
		ExitCode:        0,
		WallTimeMs:      42,
		PeakMemoryBytes: &peak,
	}
}

func TestTablePrinterPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintResult(resultFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "execution:  exec_1_deadbeef")
	assert.Contains(t, out, "status:     success")
	assert.Contains(t, out, "peak mem:   24.0 MB")
	assert.Contains(t, out, "hello")
}

func TestTablePrinterPrintResultShowsViolations(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintResult(model.ExecutionResult{
		ExecutionID: "exec_1_deadbeef",
		Status:      model.StatusValidationRejected,
		Violations:  []string{"source exceeds 50000 bytes"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "violations:")
	assert.Contains(t, out, "- source exceeds 50000 bytes")
}

func TestJSONPrinterPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintResult(resultFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"execution_id": "exec_1_deadbeef"`)
	assert.Contains(t, out, `"status": "success"`)
	assert.Contains(t, out, `"peak_memory_bytes": 25165824`)
}

func TestTablePrinterPrintHealth(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintHealth(true, 3)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "runtime:    reachable")
	assert.Contains(t, out, "active:     3")
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
