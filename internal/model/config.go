package model

// Config is the process-wide, env-sourced configuration described in
// spec.md §6. internal/config parses environment variables (with k/m/g
// byte-suffix support) into this type.
type Config struct {
	MaxMemoryBytes          int64
	MaxCPUFraction          float64
	DockerTimeoutMs         int
	CompiledDockerTimeoutMs int
	MaxConcurrentExecutions int
	OutputCapBytes          int
}
