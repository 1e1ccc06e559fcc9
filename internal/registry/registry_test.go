package registry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/registry"
)

func testConfig() model.Config {
	return model.Config{
		MaxMemoryBytes:          128 * 1024 * 1024,
		MaxCPUFraction:          0.5,
		DockerTimeoutMs:         30_000,
		CompiledDockerTimeoutMs: 45_000,
		MaxConcurrentExecutions: 10,
		OutputCapBytes:          100_000,
	}
}

func TestNewRegistersDefaults(t *testing.T) {
	r, err := registry.New(registry.Config{Limits: testConfig()})
	require.NoError(t, err)

	for _, id := range []model.LanguageID{"python", "javascript", "cpp", "java"} {
		spec, err := r.Lookup(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, spec.Image)
		assert.NotEmpty(t, spec.Launch.Cmd)
	}

	assert.Len(t, r.List(), 4)
}

func TestLookupUnknownLanguage(t *testing.T) {
	r, err := registry.New(registry.Config{Limits: testConfig()})
	require.NoError(t, err)

	_, err = r.Lookup("cobol")
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrNotFound))
}

func TestImageTableMatchesSpec(t *testing.T) {
	r, err := registry.New(registry.Config{Limits: testConfig()})
	require.NoError(t, err)

	tests := map[model.LanguageID]string{
		"python":     "python:3.9-alpine",
		"javascript": "node:16-alpine",
		"cpp":        "gcc:9-alpine",
		"java":       "openjdk:11-alpine",
	}
	for id, image := range tests {
		spec, err := r.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, image, spec.Image)
	}
}

func TestRegisterOverridesExisting(t *testing.T) {
	r, err := registry.New(registry.Config{Limits: testConfig()})
	require.NoError(t, err)

	r.Register(model.LanguageSpec{ID: "python", Image: "python:3.12-alpine", Launch: model.LaunchSpec{Cmd: []string{"python3", "main.py"}}})

	spec, err := r.Lookup("python")
	require.NoError(t, err)
	assert.Equal(t, "python:3.12-alpine", spec.Image)
}

func TestJavaSourceFilenamePublicClass(t *testing.T) {
	r, err := registry.New(registry.Config{Limits: testConfig()})
	require.NoError(t, err)

	spec, err := r.Lookup("java")
	require.NoError(t, err)

	tests := map[string]struct {
		src string
		exp string
	}{
		"public class wins": {
			src: "import java.util.*;\npublic class Solution {\n public static void main(String[] a) {}\n}",
			exp: "Solution.java",
		},
		"falls back to any class": {
			src: "class Helper {}\nclass Another {}",
			exp: "Helper.java",
		},
		"falls back to default with no class": {
			src: "// just a comment\n",
			exp: "Main.java",
		},
		"public class after a non-public class still wins": {
			src: "class Helper {}\npublic class Entry {}",
			exp: "Entry.java",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.exp, spec.SourceFilename(tt.src))
		})
	}
}

func TestFixedSourceFilenames(t *testing.T) {
	r, err := registry.New(registry.Config{Limits: testConfig()})
	require.NoError(t, err)

	tests := map[model.LanguageID]string{
		"python":     "main.py",
		"javascript": "main.js",
		"cpp":        "main.cpp",
	}
	for id, name := range tests {
		spec, err := r.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, name, spec.SourceFilename("whatever source"))
	}
}
