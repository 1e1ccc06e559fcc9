package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/opensbx/coderun/internal/task"
	"github.com/opensbx/coderun/internal/task/sqlite"
	"github.com/opensbx/coderun/internal/task/sqlite/migrations"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "coderun-tasks-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	db, err := sql.Open("sqlite", tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator, err := migrations.NewMigrator(db, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(context.Background()))

	return db
}

func newManager(t *testing.T) *sqlite.Manager {
	t.Helper()
	m, err := sqlite.NewManager(sqlite.ManagerConfig{DB: getTestDB(t)})
	require.NoError(t, err)
	return m
}

func TestManagerRequiresDB(t *testing.T) {
	_, err := sqlite.NewManager(sqlite.ManagerConfig{})
	assert.Error(t, err)
}

func TestAddTasksAndNextTask(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.AddTasks(ctx, "exec-1", "execute", []string{"create_container", "start_container", "wait"}))

	next, err := m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "create_container", next.Name)
	assert.Equal(t, 1, next.Sequence)
	assert.Equal(t, task.StatusPending, next.Status)
}

func TestAddTasksAppendsSequence(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.AddTask(ctx, "exec-1", "execute", "create_container"))
	require.NoError(t, m.AddTask(ctx, "exec-1", "execute", "start_container"))

	first, err := m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	require.NoError(t, m.CompleteTask(ctx, first.ID))

	second, err := m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "start_container", second.Name)
	assert.Equal(t, 2, second.Sequence)
}

func TestNextTaskReturnsNilWhenExhausted(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.AddTask(ctx, "exec-1", "execute", "reap"))

	next, err := m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	require.NoError(t, m.CompleteTask(ctx, next.ID))

	next, err = m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestFailTaskRecordsError(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.AddTask(ctx, "exec-1", "execute", "create_container"))

	next, err := m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	require.NoError(t, m.FailTask(ctx, next.ID, errors.New("daemon unreachable")))

	progress, err := m.Progress(ctx, "exec-1", "execute")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Total)
	assert.Equal(t, 0, progress.Done)
}

func TestCompleteAndFailTaskUnknownID(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	assert.Error(t, m.CompleteTask(ctx, "does-not-exist"))
	assert.Error(t, m.FailTask(ctx, "does-not-exist", errors.New("boom")))
}

func TestProgress(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.AddTasks(ctx, "exec-1", "execute", []string{"a", "b", "c"}))

	first, err := m.NextTask(ctx, "exec-1", "execute")
	require.NoError(t, err)
	require.NoError(t, m.CompleteTask(ctx, first.ID))

	progress, err := m.Progress(ctx, "exec-1", "execute")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 1, progress.Done)
}

func TestHasPendingOperation(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	_, hasPending, err := m.HasPendingOperation(ctx, "exec-1")
	require.NoError(t, err)
	assert.False(t, hasPending)

	require.NoError(t, m.AddTasks(ctx, "exec-1", "execute", []string{"a"}))

	operation, hasPending, err := m.HasPendingOperation(ctx, "exec-1")
	require.NoError(t, err)
	assert.True(t, hasPending)
	assert.Equal(t, "execute", operation)
}

func TestClearOperation(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.AddTasks(ctx, "exec-1", "execute", []string{"a", "b"}))

	require.NoError(t, m.ClearOperation(ctx, "exec-1", "execute"))

	progress, err := m.Progress(ctx, "exec-1", "execute")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Total)
}
