package store

import (
	"context"

	"github.com/joescharf/todoai/internal/models"
)

// TaskStore persists tasks. Unknown ids yield errors wrapping errs.ErrNotFound.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// ThreadStore persists conversation threads. Messages are only ever appended.
type ThreadStore interface {
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	CreateThread(ctx context.Context, th *models.Thread) error
	AppendMessages(ctx context.Context, id string, msgs ...models.Message) error
}

// Store defines the persistence interface for todoai.
type Store interface {
	TaskStore
	ThreadStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
