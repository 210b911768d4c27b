package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func newTask(t *testing.T, title string) *models.Task {
	t.Helper()
	task, err := models.NewTask(models.TaskInput{Title: title})
	require.NoError(t, err)
	return task
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DBPath: filepath.Join(t.TempDir(), "o.db")})
	require.NoError(t, err)
	defer s.Close()

	tasks, err := s.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "redis"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPersistence)
}

// --- Tasks ---

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	task, err := models.NewTask(models.TaskInput{
		Title:       "Plan launch",
		Description: "Q3 release",
		Priority:    models.TaskPriorityHigh,
		DueDate:     &due,
		URLs:        []string{"https://a.example", "https://b.example"},
		AIEnabled:   true,
		AIProvider:  models.ProviderGPT,
	})
	require.NoError(t, err)

	// Create
	require.NoError(t, s.CreateTask(ctx, task))
	assert.Len(t, task.ID, 24)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)

	// Get
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plan launch", got.Title)
	assert.Equal(t, "Q3 release", got.Description)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Equal(t, models.TaskPriorityHigh, got.Priority)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.Nil(t, got.ReminderDate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got.URLs)
	assert.True(t, got.AIEnabled)
	assert.Equal(t, models.ProviderGPT, got.AIProvider)

	// Update
	status := models.TaskStatusCompleted
	time.Sleep(2 * time.Millisecond)
	updated, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Status: &status, ClearDueDate: true})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, updated.Status)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "Plan launch", updated.Title)
	assert.True(t, updated.UpdatedAt.After(got.UpdatedAt))

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Nil(t, got.DueDate)

	// Delete
	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestListTasks_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateTask(ctx, newTask(t, fmt.Sprintf("task-%d", i))))
		time.Sleep(2 * time.Millisecond)
	}

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "task-2", tasks[0].Title)
	assert.Equal(t, "task-1", tasks[1].Title)
	assert.Equal(t, "task-0", tasks[2].Title)
}

func TestTask_UnknownID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := models.NewID()

	_, err := s.GetTask(ctx, id)
	assert.True(t, errs.IsNotFound(err))

	title := "x"
	_, err = s.UpdateTask(ctx, id, models.TaskPatch{Title: &title})
	assert.True(t, errs.IsNotFound(err))

	err = s.DeleteTask(ctx, id)
	assert.True(t, errs.IsNotFound(err))

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks, "update on unknown id must not write")
}

func TestTask_MalformedID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetTask(ctx, "not-an-id")
	assert.True(t, errs.IsValidation(err))

	err = s.DeleteTask(ctx, "123")
	assert.True(t, errs.IsValidation(err))

	_, err = s.GetThread(ctx, "zz")
	assert.True(t, errs.IsValidation(err))
}

func TestUpdateTask_RejectsInvalidPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := newTask(t, "keep me")
	require.NoError(t, s.CreateTask(ctx, task))

	empty := "  "
	_, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Title: &empty})
	assert.True(t, errs.IsValidation(err))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Title)
}

// --- Threads ---

func TestThreadCreateAndAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th := &models.Thread{
		TodoID:   models.NewID(),
		Provider: models.ProviderClaude,
		Messages: models.Turn("prompt", "brief"),
	}
	require.NoError(t, s.CreateThread(ctx, th))
	assert.Len(t, th.ID, 24)

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th.TodoID, got.TodoID)
	assert.Equal(t, models.ProviderClaude, got.Provider)
	assert.Equal(t, models.Turn("prompt", "brief"), got.Messages)

	const turns = 3
	for i := 0; i < turns; i++ {
		require.NoError(t, s.AppendMessages(ctx, th.ID, models.Turn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))...))
	}

	got, err = s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2+2*turns)
	for i := 0; i < turns; i++ {
		assert.Equal(t, models.Message{Role: models.RoleUser, Content: fmt.Sprintf("q%d", i)}, got.Messages[2+2*i])
		assert.Equal(t, models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i)}, got.Messages[3+2*i])
	}
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestAppendMessages_UnknownThread(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendMessages(context.Background(), models.NewID(), models.Turn("q", "a")...)
	assert.True(t, errs.IsNotFound(err))
}

func TestAppendMessages_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th := &models.Thread{TodoID: models.NewID(), Provider: models.ProviderGPT, Messages: models.Turn("p", "b")}
	require.NoError(t, s.CreateThread(ctx, th))

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendMessages(ctx, th.ID, models.Turn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))...))
		}(i)
	}
	wg.Wait()

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2+2*writers, "no append may be lost")

	// Each turn lands as an adjacent (user, assistant) pair.
	for i := 2; i < len(got.Messages); i += 2 {
		assert.Equal(t, models.RoleUser, got.Messages[i].Role)
		assert.Equal(t, models.RoleAssistant, got.Messages[i+1].Role)
		assert.Equal(t, got.Messages[i].Content[1:], got.Messages[i+1].Content[1:])
	}
}

func TestDeleteTask_KeepsThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTask(t, "orphan owner")
	require.NoError(t, s.CreateTask(ctx, task))
	th := &models.Thread{TodoID: task.ID, Provider: models.ProviderClaude, Messages: models.Turn("p", "b")}
	require.NoError(t, s.CreateThread(ctx, th))

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.TodoID)
	assert.Len(t, got.Messages, 2)
}
