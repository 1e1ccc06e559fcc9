// Package memory is the default, in-process implementation of
// task.Manager: step history lives only as long as the engine process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/task"
)

// ManagerConfig is the configuration for the in-memory task manager.
type ManagerConfig struct {
	Logger log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Memory"})
	return nil
}

// Manager is an in-memory implementation of task.Manager.
type Manager struct {
	tasks  map[string]task.Task // taskID -> Task
	mu     sync.RWMutex
	logger log.Logger
}

// NewManager creates a new in-memory task manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		tasks:  make(map[string]task.Task),
		logger: cfg.Logger,
	}, nil
}

// AddTask adds a single task to an operation.
func (m *Manager) AddTask(ctx context.Context, executionID, operation, name string) error {
	return m.AddTasks(ctx, executionID, operation, []string{name})
}

// AddTasks adds multiple tasks to an operation in order.
func (m *Manager) AddTasks(ctx context.Context, executionID, operation string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	maxSeq := 0
	for _, t := range m.tasks {
		if t.ExecutionID == executionID && t.Operation == operation && t.Sequence > maxSeq {
			maxSeq = t.Sequence
		}
	}

	now := time.Now().UTC()
	for i, name := range names {
		id := ulid.Make().String()
		m.tasks[id] = task.Task{
			ID:          id,
			ExecutionID: executionID,
			Operation:   operation,
			Sequence:    maxSeq + i + 1,
			Name:        name,
			Status:      task.StatusPending,
			CreatedAt:   now,
		}
	}

	m.logger.Debugf("Added %d tasks for execution %s operation %s", len(names), executionID, operation)
	return nil
}

// NextTask returns the next pending task for an operation, or nil if all done.
func (m *Manager) NextTask(ctx context.Context, executionID, operation string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []task.Task
	for _, t := range m.tasks {
		if t.ExecutionID == executionID && t.Operation == operation && t.Status == task.StatusPending {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Sequence < candidates[j].Sequence })
	next := candidates[0]
	return &next, nil
}

// CompleteTask marks a task as completed.
func (m *Manager) CompleteTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	t.Status = task.StatusDone
	m.tasks[taskID] = t

	m.logger.Debugf("Completed task: %s", taskID)
	return nil
}

// FailTask marks a task as failed with an error message.
func (m *Manager) FailTask(ctx context.Context, taskID string, taskErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	t.Status = task.StatusFailed
	if taskErr != nil {
		t.Error = taskErr.Error()
	}
	m.tasks[taskID] = t

	m.logger.Debugf("Failed task: %s (error: %s)", taskID, t.Error)
	return nil
}

// Progress returns the completion progress for an operation.
func (m *Manager) Progress(ctx context.Context, executionID, operation string) (*task.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total, done int
	for _, t := range m.tasks {
		if t.ExecutionID == executionID && t.Operation == operation {
			total++
			if t.Status == task.StatusDone {
				done++
			}
		}
	}

	return &task.Progress{Done: done, Total: total}, nil
}

// HasPendingOperation checks if an execution has any pending operations.
func (m *Manager) HasPendingOperation(ctx context.Context, executionID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var earliest *task.Task
	for i, t := range m.tasks {
		if t.ExecutionID != executionID || t.Status != task.StatusPending {
			continue
		}
		tCopy := m.tasks[i]
		if earliest == nil || tCopy.CreatedAt.Before(earliest.CreatedAt) {
			earliest = &tCopy
		}
	}
	if earliest == nil {
		return "", false, nil
	}
	return earliest.Operation, true, nil
}

// ClearOperation removes all tasks for an operation.
func (m *Manager) ClearOperation(ctx context.Context, executionID, operation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, t := range m.tasks {
		if t.ExecutionID == executionID && t.Operation == operation {
			delete(m.tasks, id)
			n++
		}
	}

	m.logger.Debugf("Cleared %d tasks for execution %s operation %s", n, executionID, operation)
	return nil
}
