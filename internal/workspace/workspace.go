// Package workspace implements the Workspace Manager (spec.md §4.3): it
// allocates a host directory per execution, writes the sanitized source
// and optional stdin into it, and later reclaims it. The directory is
// bind-mounted read/write into the sandbox container at
// conventions.ContainerWorkdir.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opensbx/coderun/internal/conventions"
	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/model"
)

// dirPerm intentionally excludes world-writable bits (spec.md §4.3).
const dirPerm = 0o750

// filePerm intentionally excludes world-writable bits.
const filePerm = 0o640

// Config is the configuration for the Workspace Manager.
type Config struct {
	// DataDir is the root under which per-execution directories are
	// created, e.g. "$HOME/.coderun".
	DataDir string
	Logger  log.Logger
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = home + string(os.PathSeparator) + conventions.DefaultDataDir
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "workspace.Manager"})
	return nil
}

// Manager is the Workspace Manager.
type Manager struct {
	dataDir string
	logger  log.Logger
}

// New creates a Workspace Manager rooted at cfg.DataDir.
func New(cfg Config) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Manager{dataDir: cfg.DataDir, logger: cfg.Logger}, nil
}

// Create allocates a fresh, non-world-writable directory scoped to
// executionID.
func (m *Manager) Create(executionID string) (model.Workspace, error) {
	dir := conventions.WorkspaceDir(m.dataDir, executionID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return model.Workspace{}, fmt.Errorf("creating workspace directory: %w: %w", err, model.ErrInternal)
	}
	// os.MkdirAll does not apply perm to a dir that already existed; force it.
	if err := os.Chmod(dir, dirPerm); err != nil {
		return model.Workspace{}, fmt.Errorf("setting workspace directory permissions: %w: %w", err, model.ErrInternal)
	}

	m.logger.Debugf("Created workspace for execution %s at %s", executionID, dir)
	return model.Workspace{
		ExecutionID: executionID,
		Dir:         dir,
		CreatedAt:   time.Now(),
	}, nil
}

// WriteSource writes sanitizedSource to spec.SourceFilename(sanitizedSource)
// inside ws.Dir, recording the resulting path on ws.
func (m *Manager) WriteSource(ws *model.Workspace, spec model.LanguageSpec, sanitizedSource string) error {
	filename := spec.SourceFilename(sanitizedSource)
	path := filepath.Join(ws.Dir, filename)
	if err := os.WriteFile(path, []byte(sanitizedSource), filePerm); err != nil {
		return fmt.Errorf("writing source file: %w: %w", err, model.ErrInternal)
	}
	ws.SourcePath = path
	return nil
}

// WriteStdin writes stdin as a sibling file of the source, recording
// the resulting path on ws. It is a no-op when stdin is empty.
func (m *Manager) WriteStdin(ws *model.Workspace, stdin string) error {
	if stdin == "" {
		return nil
	}
	path := filepath.Join(ws.Dir, conventions.StdinFile)
	if err := os.WriteFile(path, []byte(stdin), filePerm); err != nil {
		return fmt.Errorf("writing stdin file: %w: %w", err, model.ErrInternal)
	}
	ws.StdinPath = path
	return nil
}

// Destroy recursively removes ws.Dir. Per spec.md §4.3 this never
// throws upward: a removal failure is logged and swallowed, since a
// failed cleanup must not fail an otherwise-successful execution.
func (m *Manager) Destroy(ws model.Workspace) {
	if ws.Dir == "" {
		return
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		m.logger.Errorf("Failed to remove workspace %s for execution %s: %s", ws.Dir, ws.ExecutionID, err)
		return
	}
	m.logger.Debugf("Destroyed workspace for execution %s", ws.ExecutionID)
}
