// Package config loads the engine's process-wide configuration from
// environment variables, following spec.md §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opensbx/coderun/internal/model"
)

// Defaults, per spec.md §6.
const (
	DefaultMaxMemory              = "128m"
	DefaultMaxCPU                 = "0.5"
	DefaultDockerTimeoutMs        = 30_000
	DefaultCompiledDockerTimeout  = 45_000
	DefaultMaxConcurrentExecution = 10
	DefaultOutputCapBytes         = 100_000
)

// Env var names.
const (
	EnvMaxMemory              = "MAX_MEMORY"
	EnvMaxCPU                 = "MAX_CPU"
	EnvDockerTimeout          = "DOCKER_TIMEOUT"
	EnvMaxConcurrentExecution = "MAX_CONCURRENT_EXECUTIONS"
	EnvOutputCapBytes         = "OUTPUT_CAP_BYTES"
)

// Load reads configuration from the process environment, applying
// spec.md §6 defaults for anything unset.
func Load() (model.Config, error) {
	memBytes, err := ParseByteSize(getEnv(EnvMaxMemory, DefaultMaxMemory))
	if err != nil {
		return model.Config{}, fmt.Errorf("invalid %s: %w", EnvMaxMemory, err)
	}

	cpuFraction, err := strconv.ParseFloat(getEnv(EnvMaxCPU, DefaultMaxCPU), 64)
	if err != nil {
		return model.Config{}, fmt.Errorf("invalid %s: %w", EnvMaxCPU, err)
	}

	dockerTimeout, err := parseIntEnv(EnvDockerTimeout, DefaultDockerTimeoutMs)
	if err != nil {
		return model.Config{}, err
	}

	maxConcurrent, err := parseIntEnv(EnvMaxConcurrentExecution, DefaultMaxConcurrentExecution)
	if err != nil {
		return model.Config{}, err
	}

	outputCap, err := parseIntEnv(EnvOutputCapBytes, DefaultOutputCapBytes)
	if err != nil {
		return model.Config{}, err
	}

	return model.Config{
		MaxMemoryBytes:          memBytes,
		MaxCPUFraction:          cpuFraction,
		DockerTimeoutMs:         dockerTimeout,
		CompiledDockerTimeoutMs: DefaultCompiledDockerTimeout,
		MaxConcurrentExecutions: maxConcurrent,
		OutputCapBytes:          outputCap,
	}, nil
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func parseIntEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

// ParseByteSize parses a byte quantity with an optional k/m/g suffix
// (case-insensitive), e.g. "128m" -> 128*1024*1024. A bare number is
// interpreted as bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	mult := int64(1)
	suffix := strings.ToLower(s[len(s)-1:])
	switch suffix {
	case "k":
		mult = 1024
		s = s[:len(s)-1]
	case "m":
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case "g":
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse byte size %q: %w", s, err)
	}
	return n * mult, nil
}
