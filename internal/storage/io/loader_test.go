package io

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensbx/coderun/internal/model"
)

func TestLanguageOverrideLoader_Load(t *testing.T) {
	tests := map[string]struct {
		fs     fstest.MapFS
		path   string
		expLen int
		expErr bool
		errMsg string
	}{
		"Valid single-language override should load successfully": {
			fs: fstest.MapFS{
				"languages.yaml": &fstest.MapFile{
					Data: []byte(`languages:
  - id: ruby
    image: ruby:3.2-alpine
    cmd: ["ruby", "main.rb"]
    source_filename: main.rb
    limits:
      wall_timeout_ms: 30000
      memory_bytes: 134217728
      cpu_fraction: 0.5
`),
				},
			},
			path:   "languages.yaml",
			expLen: 1,
		},
		"Empty document should load zero languages": {
			fs: fstest.MapFS{
				"empty.yaml": &fstest.MapFile{Data: []byte("---\n")},
			},
			path:   "empty.yaml",
			expLen: 0,
		},
		"Missing file should return error": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading language overrides file",
		},
		"Invalid YAML should return error": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{Data: []byte(`invalid: yaml: content: {}`)},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},
		"Entry missing image should return a validation error": {
			fs: fstest.MapFS{
				"bad.yaml": &fstest.MapFile{
					Data: []byte(`languages:
  - id: ruby
    cmd: ["ruby", "main.rb"]
    source_filename: main.rb
    limits:
      wall_timeout_ms: 30000
      memory_bytes: 134217728
      cpu_fraction: 0.5
`),
				},
			},
			path:   "bad.yaml",
			expErr: true,
			errMsg: "image is required",
		},
		"Entry with out-of-range timeout should return a validation error": {
			fs: fstest.MapFS{
				"bad.yaml": &fstest.MapFile{
					Data: []byte(`languages:
  - id: ruby
    image: ruby:3.2-alpine
    cmd: ["ruby", "main.rb"]
    source_filename: main.rb
    limits:
      wall_timeout_ms: 999999
      memory_bytes: 134217728
      cpu_fraction: 0.5
`),
				},
			},
			path:   "bad.yaml",
			expErr: true,
			errMsg: "out of range",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			loader := NewLanguageOverrideLoader(tc.fs)
			specs, err := loader.Load(context.Background(), tc.path)

			if tc.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Len(t, specs, tc.expLen)
		})
	}
}

func TestLanguageOverrideLoader_Load_ResolvesSpecFields(t *testing.T) {
	fs := fstest.MapFS{
		"languages.yaml": &fstest.MapFile{
			Data: []byte(`languages:
  - id: ruby
    image: ruby:3.2-alpine
    cmd: ["ruby", "main.rb"]
    source_filename: main.rb
    limits:
      wall_timeout_ms: 30000
      memory_bytes: 134217728
      cpu_fraction: 0.5
`),
		},
	}

	loader := NewLanguageOverrideLoader(fs)
	specs, err := loader.Load(context.Background(), "languages.yaml")
	require.NoError(t, err)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, model.LanguageID("ruby"), spec.ID)
	assert.Equal(t, "ruby:3.2-alpine", spec.Image)
	assert.Equal(t, []string{"ruby", "main.rb"}, spec.Launch.Cmd)
	assert.Equal(t, "main.rb", spec.SourceFilename(""))
	assert.Equal(t, 30000, spec.Default.WallTimeoutMs)
	assert.Equal(t, int64(134217728), spec.Default.MemoryBytes)
	assert.InDelta(t, 0.5, spec.Default.CPUFraction, 0.0001)
}

func TestLanguageOverrideLoader_Load_ContextCancellation(t *testing.T) {
	fs := fstest.MapFS{
		"languages.yaml": &fstest.MapFile{
			Data: []byte(`languages:
  - id: ruby
    image: ruby:3.2-alpine
    cmd: ["ruby", "main.rb"]
    source_filename: main.rb
    limits:
      wall_timeout_ms: 30000
      memory_bytes: 134217728
      cpu_fraction: 0.5
`),
		},
	}

	loader := NewLanguageOverrideLoader(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "languages.yaml")
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
