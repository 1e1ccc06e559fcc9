package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensbx/coderun/internal/config"
)

func TestParseByteSize(t *testing.T) {
	tests := map[string]struct {
		in     string
		exp    int64
		expErr bool
	}{
		"bare bytes":       {in: "512", exp: 512},
		"kilobytes suffix":  {in: "4k", exp: 4 * 1024},
		"megabytes suffix":  {in: "128m", exp: 128 * 1024 * 1024},
		"gigabytes suffix":  {in: "2g", exp: 2 * 1024 * 1024 * 1024},
		"uppercase suffix":  {in: "128M", exp: 128 * 1024 * 1024},
		"empty is an error": {in: "", expErr: true},
		"garbage is an error": {in: "abc", expErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := config.ParseByteSize(tt.in)
			if tt.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, got)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, int64(128*1024*1024), cfg.MaxMemoryBytes)
	assert.Equal(t, 0.5, cfg.MaxCPUFraction)
	assert.Equal(t, 30_000, cfg.DockerTimeoutMs)
	assert.Equal(t, 45_000, cfg.CompiledDockerTimeoutMs)
	assert.Equal(t, 10, cfg.MaxConcurrentExecutions)
	assert.Equal(t, 100_000, cfg.OutputCapBytes)
}
