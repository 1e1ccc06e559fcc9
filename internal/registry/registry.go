// Package registry implements the Language Registry (spec.md §4.1): a
// read-only-at-steady-state table mapping a language identifier to its
// container image, source filename convention, launch command, and
// default resource limits.
package registry

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/model"
)

// ErrNotFound is returned by Lookup for an unknown language ID.
var ErrNotFound = model.ErrNotFound

// Config is the configuration for the Language Registry.
type Config struct {
	// Limits provides the process-wide defaults new entries fall back to
	// when not overridden per-language.
	Limits model.Config
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "registry.Registry"})
	return nil
}

// Registry is the Language Registry. It is safe for concurrent use;
// in practice it is populated once at startup and read for the rest of
// the process lifetime.
type Registry struct {
	mu     sync.RWMutex
	langs  map[model.LanguageID]model.LanguageSpec
	logger log.Logger
}

// New creates a Registry pre-populated with the four languages required
// by spec.md §6's image table.
func New(cfg Config) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Registry{
		langs:  make(map[model.LanguageID]model.LanguageSpec),
		logger: cfg.Logger,
	}
	r.registerDefaults(cfg.Limits)
	return r, nil
}

// Register adds or replaces a language entry.
func (r *Registry) Register(spec model.LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[spec.ID] = spec
	r.logger.Debugf("Registered language: %s", spec.ID)
}

// Lookup returns the LanguageSpec for id, or ErrNotFound.
func (r *Registry) Lookup(id model.LanguageID) (model.LanguageSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.langs[id]
	if !ok {
		return model.LanguageSpec{}, fmt.Errorf("language %q: %w", id, ErrNotFound)
	}
	return spec, nil
}

// List returns all registered language specs.
func (r *Registry) List() []model.LanguageSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]model.LanguageSpec, 0, len(r.langs))
	for _, s := range r.langs {
		specs = append(specs, s)
	}
	return specs
}

func (r *Registry) registerDefaults(limits model.Config) {
	def := model.ResolvedLimits{
		WallTimeoutMs: limits.DockerTimeoutMs,
		MemoryBytes:   limits.MaxMemoryBytes,
		CPUFraction:   limits.MaxCPUFraction,
	}
	compiledDef := def
	compiledDef.WallTimeoutMs = limits.CompiledDockerTimeoutMs

	r.Register(model.LanguageSpec{
		ID:             "python",
		Image:          "python:3.9-alpine",
		Launch:         model.LaunchSpec{Cmd: []string{"python3", "main.py"}},
		Default:        def,
		RunTimeoutMs:   limits.DockerTimeoutMs,
		SourceFilename: fixedFilename("main.py"),
	})

	r.Register(model.LanguageSpec{
		ID:             "javascript",
		Image:          "node:16-alpine",
		Launch:         model.LaunchSpec{Cmd: []string{"node", "main.js"}},
		Default:        def,
		RunTimeoutMs:   limits.DockerTimeoutMs,
		SourceFilename: fixedFilename("main.js"),
	})

	r.Register(model.LanguageSpec{
		ID:               "cpp",
		Image:            "gcc:9-alpine",
		Launch:           model.LaunchSpec{Cmd: []string{"sh", "-c", "g++ -O2 -o main main.cpp && ./main"}},
		Default:          compiledDef,
		SupportsCompile:  true,
		CompileTimeoutMs: limits.CompiledDockerTimeoutMs / 3,
		RunTimeoutMs:     limits.DockerTimeoutMs,
		SourceFilename:   fixedFilename("main.cpp"),
	})

	r.Register(model.LanguageSpec{
		ID:               "java",
		Image:            "openjdk:11-alpine",
		Launch:           model.LaunchSpec{Cmd: []string{"sh", "-c", javaLaunchTemplate}},
		Default:          compiledDef,
		SupportsCompile:  true,
		CompileTimeoutMs: limits.CompiledDockerTimeoutMs / 2,
		RunTimeoutMs:     limits.DockerTimeoutMs,
		SourceFilename:   javaSourceFilename,
	})
}

func fixedFilename(name string) func(string) string {
	return func(string) string { return name }
}

// javaLaunchTemplate compiles whatever .java file is present and runs
// the class matching the filename, since SourceFilename already derived
// the file name from the public class (or the "Main" fallback).
const javaLaunchTemplate = `CLASS=$(basename "$(ls *.java)" .java) && javac "$CLASS.java" && java "$CLASS"`

var (
	publicClassRe = regexp.MustCompile(`public\s+class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	anyClassRe    = regexp.MustCompile(`\bclass\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
)

// defaultJavaClass is used when the source declares no class at all.
const defaultJavaClass = "Main"

// javaSourceFilename implements the lexical rule from spec.md §4.1: scan
// for the first public-class declaration and use its identifier; if
// none, scan for any class declaration; else fall back to a fixed
// default. This is intentionally not a parser — the first matching
// token is authoritative, matching the real compile-then-run invocation
// contract (javac requires the public class name to match the filename).
func javaSourceFilename(source string) string {
	if m := publicClassRe.FindStringSubmatch(source); m != nil {
		return m[1] + ".java"
	}
	if m := anyClassRe.FindStringSubmatch(source); m != nil {
		return m[1] + ".java"
	}
	return defaultJavaClass + ".java"
}
