// Package task defines the Step Tracker: a Manager interface for
// recording the discrete steps of one execution's lifecycle
// ("create_container", "attach", "start_container", "wait", ...),
// used by the Sandbox Supervisor to make multi-step operations
// observable.
package task

import (
	"context"

	"github.com/opensbx/coderun/internal/model"
)

// Task, Progress and Status are aliased from model so every caller
// shares one definition regardless of which package they import it
// through.
type Task = model.Task
type Progress = model.TaskProgress
type Status = model.TaskStatus

const (
	StatusPending = model.TaskStatusPending
	StatusDone    = model.TaskStatusDone
	StatusFailed  = model.TaskStatusFailed
)

// Manager handles step tracking for multi-step operations.
type Manager interface {
	// AddTask adds a single task to an operation.
	AddTask(ctx context.Context, executionID, operation, name string) error

	// AddTasks adds multiple tasks to an operation in order.
	AddTasks(ctx context.Context, executionID, operation string, names []string) error

	// NextTask returns the next pending task for an operation, or nil if all done.
	NextTask(ctx context.Context, executionID, operation string) (*Task, error)

	// CompleteTask marks a task as completed.
	CompleteTask(ctx context.Context, taskID string) error

	// FailTask marks a task as failed with an error message.
	FailTask(ctx context.Context, taskID string, err error) error

	// Progress returns the completion progress for an operation.
	Progress(ctx context.Context, executionID, operation string) (*Progress, error)

	// HasPendingOperation checks if an execution has any pending operations.
	// Returns the operation name and true if found, empty string and false otherwise.
	HasPendingOperation(ctx context.Context, executionID string) (operation string, hasPending bool, err error)

	// ClearOperation removes all tasks for an operation.
	ClearOperation(ctx context.Context, executionID, operation string) error
}
