// Package io loads operator-supplied Language Registry overrides from
// YAML, letting a deployment adjust per-language images, launch
// commands, and resource limits without a rebuild.
package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/opensbx/coderun/internal/model"
)

// LanguageOverrideLoader reads a YAML file of Language Registry entries
// and returns validated domain models ready for registry.Register.
type LanguageOverrideLoader struct {
	fs fs.FS
}

// NewLanguageOverrideLoader creates a loader rooted at filesystem.
func NewLanguageOverrideLoader(filesystem fs.FS) *LanguageOverrideLoader {
	return &LanguageOverrideLoader{fs: filesystem}
}

// Load reads path and returns one LanguageSpec per entry, in file order.
// SourceFilename is always the fixed-name convention; class-derived
// filenames (Java) stay a registry built-in and cannot be overridden
// through YAML.
func (l *LanguageOverrideLoader) Load(ctx context.Context, path string) ([]model.LanguageSpec, error) {
	data, err := fs.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading language overrides file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var doc languageOverridesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	specs := make([]model.LanguageSpec, 0, len(doc.Languages))
	for _, entry := range doc.Languages {
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("language %q: %w: %w", entry.ID, err, model.ErrNotValid)
		}
		specs = append(specs, entry.toModel())
	}
	return specs, nil
}

// languageOverridesDoc is the top-level YAML document shape.
type languageOverridesDoc struct {
	Languages []languageOverrideEntry `yaml:"languages"`
}

// languageOverrideEntry is one language's YAML entry.
type languageOverrideEntry struct {
	ID               string         `yaml:"id"`
	Image            string         `yaml:"image"`
	Cmd              []string       `yaml:"cmd"`
	SourceFilename   string         `yaml:"source_filename"`
	SupportsCompile  bool           `yaml:"supports_compile"`
	CompileTimeoutMs int            `yaml:"compile_timeout_ms"`
	RunTimeoutMs     int            `yaml:"run_timeout_ms"`
	Limits           overrideLimits `yaml:"limits"`
}

type overrideLimits struct {
	WallTimeoutMs int     `yaml:"wall_timeout_ms"`
	MemoryBytes   int64   `yaml:"memory_bytes"`
	CPUFraction   float64 `yaml:"cpu_fraction"`
}

func (e languageOverrideEntry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Image == "" {
		return fmt.Errorf("image is required")
	}
	if len(e.Cmd) == 0 {
		return fmt.Errorf("cmd must not be empty")
	}
	if e.SourceFilename == "" {
		return fmt.Errorf("source_filename is required")
	}
	if e.Limits.WallTimeoutMs < model.MinWallTimeoutMs || e.Limits.WallTimeoutMs > model.MaxWallTimeoutMs {
		return fmt.Errorf("limits.wall_timeout_ms %d out of range [%d, %d]", e.Limits.WallTimeoutMs, model.MinWallTimeoutMs, model.MaxWallTimeoutMs)
	}
	if e.Limits.MemoryBytes <= 0 {
		return fmt.Errorf("limits.memory_bytes must be positive")
	}
	if e.Limits.CPUFraction <= 0 {
		return fmt.Errorf("limits.cpu_fraction must be positive")
	}
	return nil
}

func (e languageOverrideEntry) toModel() model.LanguageSpec {
	filename := e.SourceFilename
	return model.LanguageSpec{
		ID:               model.LanguageID(e.ID),
		Image:            e.Image,
		Launch:           model.LaunchSpec{Cmd: e.Cmd},
		SupportsCompile:  e.SupportsCompile,
		CompileTimeoutMs: e.CompileTimeoutMs,
		RunTimeoutMs:     e.RunTimeoutMs,
		Default: model.ResolvedLimits{
			WallTimeoutMs: e.Limits.WallTimeoutMs,
			MemoryBytes:   e.Limits.MemoryBytes,
			CPUFraction:   e.Limits.CPUFraction,
		},
		SourceFilename: func(string) string { return filename },
	}
}
