// Package conventions centralizes the on-disk naming scheme for
// execution workspaces so the Workspace Manager and CLI agree on paths
// without repeating string literals.
package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default coderun data directory name (relative to home).
	DefaultDataDir = ".coderun"
	// WorkspacesDir is the subdirectory holding one directory per execution.
	WorkspacesDir = "workspaces"

	// StdinFile is the filename stdin is written to, as a sibling of the
	// source file inside a workspace.
	StdinFile = "stdin"

	// ContainerWorkdir is the bind-mount target inside the sandbox
	// container; the workspace directory is mounted here.
	ContainerWorkdir = "/app"
)

// WorkspaceDir returns the host directory for a specific execution.
func WorkspaceDir(dataDir, executionID string) string {
	return filepath.Join(dataDir, WorkspacesDir, executionID)
}

// WorkspaceFilePath returns the full path to a file inside an
// execution's workspace directory.
func WorkspaceFilePath(dataDir, executionID, filename string) string {
	return filepath.Join(WorkspaceDir(dataDir, executionID), filename)
}

// StdinPath returns the path to an execution's stdin file.
func StdinPath(dataDir, executionID string) string {
	return WorkspaceFilePath(dataDir, executionID, StdinFile)
}
