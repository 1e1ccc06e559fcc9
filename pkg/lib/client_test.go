package lib

import (
	"context"
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

// newTestClient wires a Client around a fake Sandbox Supervisor so tests
// never need a real Docker daemon.
func newTestClient(t *testing.T, handler fake.RunHandler, sink MetadataSink) *Client {
	t.Helper()

	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)

	ws, err := workspace.New(workspace.Config{DataDir: t.TempDir()})
	require.NoError(t, err)

	engine, err := fake.NewEngine(fake.Config{Handler: handler})
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Config{
		Registry:   reg,
		Screener:   screener.New(),
		Workspace:  ws,
		Supervisor: engine,
		MetadataSink: func(ctx context.Context, result model.ExecutionResult, invocation model.InvocationContext) {
			if sink != nil {
				sink(ctx, fromInternalResult(result), InvocationContext{
					CallerID:      invocation.CallerID,
					CallerAddress: invocation.CallerAddress,
				})
			}
		},
	})
	require.NoError(t, err)

	return &Client{orch: orch}
}

func TestClientExecute_Success(t *testing.T) {
	client := newTestClient(t, nil, nil)

	result, err := client.Execute(context.Background(), ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
	}, InvocationContext{CallerID: "test-suite"})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.NotEmpty(t, result.ExecutionID)
}

func TestClientExecute_RejectsUnknownLanguage(t *testing.T) {
	client := newTestClient(t, nil, nil)

	result, err := client.Execute(context.Background(), ExecutionRequest{
		Language: "cobol",
		Source:   "IDENTIFICATION DIVISION.",
	}, InvocationContext{})

	require.NoError(t, err)
	assert.Equal(t, StatusValidationRejected, result.Status)
	assert.NotEmpty(t, result.Violations)
}

func TestClientExecute_AppliesLimitsOverride(t *testing.T) {
	var seenLimits model.ResolvedLimits
	client := newTestClient(t, func(ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
		seenLimits = limits
		return model.RawOutcome{ExitCode: 0}, nil
	}, nil)

	ms := 1500
	_, err := client.Execute(context.Background(), ExecutionRequest{
		Language: "python",
		Source:   "pass",
		Limits:   &LimitsOverride{WallTimeoutMs: &ms},
	}, InvocationContext{})

	require.NoError(t, err)
	assert.Equal(t, 1500, seenLimits.WallTimeoutMs)
}

func TestClientExecute_InvokesMetadataSink(t *testing.T) {
	var gotInvocation InvocationContext
	var calls int
	client := newTestClient(t, nil, func(ctx context.Context, result ExecutionResult, invocation InvocationContext) {
		calls++
		gotInvocation = invocation
	})

	_, err := client.Execute(context.Background(), ExecutionRequest{
		Language: "python",
		Source:   "pass",
	}, InvocationContext{CallerID: "grader-7"})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "grader-7", gotInvocation.CallerID)
}

func TestClientKillAndHealth(t *testing.T) {
	client := newTestClient(t, nil, nil)

	assert.False(t, client.Kill("exec_does_not_exist"))

	reachable, active := client.Health(context.Background())
	assert.True(t, reachable)
	assert.Equal(t, 0, active)
}

func TestClientClose(t *testing.T) {
	client := newTestClient(t, nil, nil)
	assert.NoError(t, client.Close())
}
