package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/workspace"
)

func newManager(t *testing.T) *workspace.Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := workspace.New(workspace.Config{DataDir: dir})
	require.NoError(t, err)
	return m
}

func TestCreateAllocatesDirectory(t *testing.T) {
	m := newManager(t)

	ws, err := m.Create("exec_1")
	require.NoError(t, err)

	info, err := os.Stat(ws.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode().Perm()&0o002, "workspace directory must not be world-writable")
}

func TestWriteSourceUsesSpecFilename(t *testing.T) {
	m := newManager(t)
	ws, err := m.Create("exec_2")
	require.NoError(t, err)

	spec := model.LanguageSpec{SourceFilename: func(string) string { return "main.py" }}
	err = m.WriteSource(&ws, spec, "print(1)")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(ws.Dir, "main.py"), ws.SourcePath)
	content, err := os.ReadFile(ws.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(content))
}

func TestWriteStdinNoopWhenEmpty(t *testing.T) {
	m := newManager(t)
	ws, err := m.Create("exec_3")
	require.NoError(t, err)

	err = m.WriteStdin(&ws, "")
	require.NoError(t, err)
	assert.Empty(t, ws.StdinPath)
}

func TestWriteStdinWritesSiblingFile(t *testing.T) {
	m := newManager(t)
	ws, err := m.Create("exec_4")
	require.NoError(t, err)

	err = m.WriteStdin(&ws, "hello\n")
	require.NoError(t, err)
	require.NotEmpty(t, ws.StdinPath)

	content, err := os.ReadFile(ws.StdinPath)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestDestroyRemovesDirectory(t *testing.T) {
	m := newManager(t)
	ws, err := m.Create("exec_5")
	require.NoError(t, err)

	m.Destroy(ws)

	_, err = os.Stat(ws.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestDestroyIsSafeOnZeroValue(t *testing.T) {
	m := newManager(t)
	assert.NotPanics(t, func() {
		m.Destroy(model.Workspace{})
	})
}
