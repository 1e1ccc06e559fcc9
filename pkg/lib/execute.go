package lib

import (
	"context"
	"fmt"
)

// Execute runs req in a hardened, single-use sandbox and returns its
// outcome.
//
// Execute reports caller-input problems (unsupported language, rejected
// source, oversized payload) through [ExecutionResult.Status], never
// through the returned error. The error is non-nil only when the
// orchestrator itself could not run the request at all, for example
// when ctx is cancelled while waiting for a free execution slot.
func (c *Client) Execute(ctx context.Context, req ExecutionRequest, invocation InvocationContext) (*ExecutionResult, error) {
	result, err := c.orch.Execute(ctx, toInternalRequest(req), toInternalInvocation(invocation))
	if err != nil {
		return nil, fmt.Errorf("could not execute request: %w", mapError(err))
	}
	out := fromInternalResult(*result)
	return &out, nil
}

// Kill terminates the in-flight execution identified by executionID, if
// one is running, and reports whether it found one.
func (c *Client) Kill(executionID string) bool {
	return c.orch.Kill(executionID)
}

// Health reports whether the container runtime is reachable and how
// many sandboxes are currently live.
func (c *Client) Health(ctx context.Context) (bool, int) {
	return c.orch.Health(ctx)
}
