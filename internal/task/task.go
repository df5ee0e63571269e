package task

import (
	"context"

	"github.com/google/uuid"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier, used in logs
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing callers to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// funcTask adapts a function to the Task interface.
type funcTask struct {
	id       uuid.UUID
	taskType string
	fn       func(ctx context.Context) error
}

// NewFuncTask wraps fn as a Task with a fresh ID.
func NewFuncTask(taskType string, fn func(ctx context.Context) error) Task {
	return &funcTask{
		id:       uuid.New(),
		taskType: taskType,
		fn:       fn,
	}
}

func (t *funcTask) ID() uuid.UUID {
	return t.id
}

func (t *funcTask) Type() string {
	return t.taskType
}

func (t *funcTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}
