package model

import "time"

// Workspace is the per-execution host directory bind-mounted into the
// sandbox (spec.md §3). It is owned by the orchestrator for the
// lifetime of exactly one execution.
type Workspace struct {
	ExecutionID string
	Dir         string
	CreatedAt   time.Time
	SourcePath  string
	StdinPath   string // empty when no stdin was supplied
}
