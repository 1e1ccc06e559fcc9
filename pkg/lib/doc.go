// Package lib provides a Go SDK for executing untrusted source code in a
// hardened, ephemeral sandbox.
//
// This package wraps the same Execution Orchestrator the coderun CLI uses,
// letting applications run one-off code submissions without shelling out to
// a binary. It is useful for grading services, playgrounds, and anything
// else that needs to run caller-supplied code safely.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Execute(ctx, lib.ExecutionRequest{
//	    Language: "python",
//	    Source:   "print('hello')",
//	}, lib.InvocationContext{CallerID: "playground"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stdout, result.Status)
//
// # Resource Overrides
//
// A request can narrow (never widen) a language's default limits:
//
//	ms := 2000
//	client.Execute(ctx, lib.ExecutionRequest{
//	    Language: "python",
//	    Source:   src,
//	    Limits:   &lib.LimitsOverride{WallTimeoutMs: &ms},
//	}, lib.InvocationContext{})
//
// # Terminating a Running Execution
//
//	client.Kill(result.ExecutionID)
//
// # Health and Preflight Checks
//
//	reachable, active := client.Health(ctx)
//
//	results, _ := lib.Doctor(ctx, lib.DefaultImages, nil)
//	for _, r := range results {
//	    fmt.Printf("%s: %s (%s)\n", r.ID, r.Message, r.Status)
//	}
//
// # Metadata Sink
//
// Set [Config].MetadataSink to receive every execution's final result,
// for example to persist it to an audit log. A sink that panics or
// misbehaves never fails the execution it describes:
//
//	lib.New(ctx, lib.Config{
//	    MetadataSink: func(ctx context.Context, result lib.ExecutionResult, inv lib.InvocationContext) {
//	        auditLog.Record(result, inv)
//	    },
//	})
//
// # Error Handling
//
// Execute reports caller-input problems (rejected source, unsupported
// language) through [ExecutionResult.Status], never through its returned
// error. The returned error is non-nil only when the orchestrator itself
// could not run the request, and can be inspected with [errors.Is]:
//
//   - [ErrNotValid]: the orchestrator was misconfigured or given an invalid request it could not even reject cleanly.
//   - [ErrInternal]: an unexpected failure in the execution pipeline itself.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. Execute
// admits callers through a bounded semaphore (see [Config].MaxConcurrentExecutions);
// calls beyond that bound wait rather than fail.
package lib
