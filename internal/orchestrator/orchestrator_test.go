package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/orchestrator"
	"github.com/opensbx/coderun/internal/registry"
	"github.com/opensbx/coderun/internal/sandbox/fake"
	"github.com/opensbx/coderun/internal/screener"
	"github.com/opensbx/coderun/internal/workspace"
)

func newOrchestrator(t *testing.T, handler fake.RunHandler, sink orchestrator.MetadataSink) *orchestrator.Orchestrator {
	t.Helper()

	reg, err := registry.New(registry.Config{Limits: model.Config{
		MaxMemoryBytes:          128 * 1024 * 1024,
		MaxCPUFraction:          0.5,
		DockerTimeoutMs:         30_000,
		CompiledDockerTimeoutMs: 45_000,
	}})
	require.NoError(t, err)

	ws, err := workspace.New(workspace.Config{DataDir: t.TempDir()})
	require.NoError(t, err)

	engine, err := fake.NewEngine(fake.Config{Handler: handler})
	require.NoError(t, err)

	o, err := orchestrator.New(orchestrator.Config{
		Registry:                reg,
		Screener:                screener.New(),
		Workspace:               ws,
		Supervisor:              engine,
		MaxConcurrentExecutions: 2,
		MetadataSink:            sink,
	})
	require.NoError(t, err)
	return o
}

func TestExecuteSuccess(t *testing.T) {
	o := newOrchestrator(t, nil, nil)

	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "print('hello')\n",
	}, model.InvocationContext{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Contains(t, result.ExecutionID, "exec_")
}

func TestExecuteRejectsUnknownLanguage(t *testing.T) {
	o := newOrchestrator(t, nil, nil)

	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "cobol",
		Source:   "IDENTIFICATION DIVISION.",
	}, model.InvocationContext{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidationRejected, result.Status)
	assert.NotEmpty(t, result.Violations)
}

func TestExecuteRejectsEmptySourceWithoutTouchingSandbox(t *testing.T) {
	o := newOrchestrator(t, func(ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
		t.Fatal("sandbox should never run for an invalid request")
		return model.RawOutcome{}, nil
	}, nil)

	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "",
	}, model.InvocationContext{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidationRejected, result.Status)
}

func TestExecuteRejectsForbiddenPatternBeforeSandboxRuns(t *testing.T) {
	o := newOrchestrator(t, func(ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
		t.Fatal("sandbox should never run for screened-out source")
		return model.RawOutcome{}, nil
	}, nil)

	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "import os\nos.system('ls')\n",
	}, model.InvocationContext{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidationRejected, result.Status)
	assert.NotEmpty(t, result.Violations)
}

func TestExecuteDestroysWorkspaceAfterRun(t *testing.T) {
	var capturedDir string
	o := newOrchestrator(t, func(ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
		capturedDir = ws.Dir
		_, statErr := os.Stat(filepath.Join(ws.Dir, "main.py"))
		assert.NoError(t, statErr)
		return model.RawOutcome{ExitCode: 0, TerminationCause: model.TerminationExited}, nil
	}, nil)

	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "print(1)\n",
	}, model.InvocationContext{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, result.Status)

	_, statErr := os.Stat(capturedDir)
	assert.True(t, os.IsNotExist(statErr), "workspace directory should be removed after execution")
}

func TestExecuteReportsTimeoutOnSupervisorTimeoutOutcome(t *testing.T) {
	o := newOrchestrator(t, func(ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
		return model.RawOutcome{TerminationCause: model.TerminationKilledByTimeout}, nil
	}, nil)

	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "while True: pass\n",
	}, model.InvocationContext{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusTimeout, result.Status)
}

func TestExecuteInvokesMetadataSinkExactlyOnce(t *testing.T) {
	var calls int
	var gotID string
	sink := func(ctx context.Context, result model.ExecutionResult, invocation model.InvocationContext) {
		calls++
		gotID = result.ExecutionID
	}

	o := newOrchestrator(t, nil, sink)
	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "print(1)\n",
	}, model.InvocationContext{CallerID: "caller-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, result.ExecutionID, gotID)
}

func TestExecuteSurvivesPanickingMetadataSink(t *testing.T) {
	sink := func(ctx context.Context, result model.ExecutionResult, invocation model.InvocationContext) {
		panic("sink exploded")
	}

	o := newOrchestrator(t, nil, sink)
	result, err := o.Execute(context.Background(), model.ExecutionRequest{
		Language: "python",
		Source:   "print(1)\n",
	}, model.InvocationContext{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, result.Status)
}

func TestKillDelegatesToSupervisor(t *testing.T) {
	o := newOrchestrator(t, nil, nil)
	assert.False(t, o.Kill("exec_does_not_exist"))
}

func TestHealthDelegatesToSupervisor(t *testing.T) {
	o := newOrchestrator(t, nil, nil)
	reachable, active := o.Health(context.Background())
	assert.True(t, reachable)
	assert.Equal(t, 0, active)
}
