package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/todoai/internal/errs"
)

func TestNewTask_Defaults(t *testing.T) {
	task, err := NewTask(TaskInput{Title: "  Buy milk  "})
	require.NoError(t, err)

	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, TaskPriorityMedium, task.Priority)
	assert.NotNil(t, task.URLs)
	assert.Empty(t, task.URLs)
	assert.False(t, task.AIEnabled)
	assert.Empty(t, task.AIProvider)
	assert.Empty(t, task.ThreadID)
	assert.Empty(t, task.AIBrief)
}

func TestNewTask_Validation(t *testing.T) {
	_, err := NewTask(TaskInput{Title: "   "})
	assert.True(t, errs.IsValidation(err))

	_, err = NewTask(TaskInput{Title: "x", Status: "archived"})
	assert.True(t, errs.IsValidation(err))

	_, err = NewTask(TaskInput{Title: "x", Priority: "urgent"})
	assert.True(t, errs.IsValidation(err))
}

func TestNewTask_NormalizesProvider(t *testing.T) {
	task, err := NewTask(TaskInput{Title: "x", AIEnabled: true, AIProvider: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, task.AIProvider)

	task, err = NewTask(TaskInput{Title: "x", AIEnabled: true, AIProvider: "gpt"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGPT, task.AIProvider)
}

func TestResolveProvider(t *testing.T) {
	assert.Equal(t, ProviderClaude, ResolveProvider(""))
	assert.Equal(t, ProviderClaude, ResolveProvider("unknown"))
	assert.Equal(t, ProviderClaude, ResolveProvider("claude"))
	assert.Equal(t, ProviderGPT, ResolveProvider("gpt"))
	assert.Equal(t, Provider(""), NormalizeProvider(""))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("task", NewID()))
	assert.Len(t, NewID(), 24)

	for _, bad := range []string{"", "abc", "zzzzzzzzzzzzzzzzzzzzzzzz", "0123456789abcdef012345678"} {
		err := ValidateID("task", bad)
		assert.True(t, errs.IsValidation(err), "expected validation error for %q", bad)
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2025-03-01T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), got)

	got, err = ParseTime("2025-03-01T09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	got, err = ParseTime("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Day())

	_, err = ParseTime("tomorrow")
	assert.True(t, errs.IsValidation(err))
}

func TestDecodeTaskInput(t *testing.T) {
	in, err := DecodeTaskInput([]byte(`{
		"_id": "ignored",
		"title": "Plan launch",
		"description": "Q3",
		"priority": "high",
		"dueDate": "2025-06-01T12:00:00Z",
		"reminderDate": null,
		"urls": ["https://example.com"],
		"aiEnabled": true,
		"aiProvider": "claude"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Plan launch", in.Title)
	assert.Equal(t, "Q3", in.Description)
	assert.Equal(t, TaskPriorityHigh, in.Priority)
	require.NotNil(t, in.DueDate)
	assert.Equal(t, 2025, in.DueDate.Year())
	assert.Nil(t, in.ReminderDate)
	assert.Equal(t, []string{"https://example.com"}, in.URLs)
	assert.True(t, in.AIEnabled)
	assert.Equal(t, ProviderClaude, in.AIProvider)
}

func TestDecodeTaskInput_Invalid(t *testing.T) {
	_, err := DecodeTaskInput([]byte(`not json`))
	assert.True(t, errs.IsValidation(err))

	_, err = DecodeTaskInput([]byte(`{"title": 5}`))
	assert.True(t, errs.IsValidation(err))

	_, err = DecodeTaskInput([]byte(`{"title": "x", "dueDate": "soon"}`))
	assert.True(t, errs.IsValidation(err))
}

func TestDecodeTaskPatch(t *testing.T) {
	t.Run("partial fields", func(t *testing.T) {
		p, err := DecodeTaskPatch([]byte(`{"status": "completed", "id": "x", "createdAt": "2020-01-01T00:00:00Z"}`))
		require.NoError(t, err)
		require.NotNil(t, p.Status)
		assert.Equal(t, TaskStatusCompleted, *p.Status)
		assert.Nil(t, p.Title)
		assert.Nil(t, p.DueDate)
		assert.False(t, p.ClearDueDate)
	})

	t.Run("null clears optional fields", func(t *testing.T) {
		p, err := DecodeTaskPatch([]byte(`{"dueDate": null, "reminderDate": "", "description": null, "urls": null}`))
		require.NoError(t, err)
		assert.True(t, p.ClearDueDate)
		assert.True(t, p.ClearReminderDate)
		require.NotNil(t, p.Description)
		assert.Equal(t, "", *p.Description)
		require.NotNil(t, p.URLs)
		assert.Empty(t, *p.URLs)
	})

	t.Run("dates are parsed", func(t *testing.T) {
		p, err := DecodeTaskPatch([]byte(`{"reminderDate": "2025-01-02T08:00"}`))
		require.NoError(t, err)
		require.NotNil(t, p.ReminderDate)
		assert.Equal(t, 8, p.ReminderDate.Hour())
	})

	t.Run("empty title rejected", func(t *testing.T) {
		_, err := DecodeTaskPatch([]byte(`{"title": ""}`))
		assert.True(t, errs.IsValidation(err))
		_, err = DecodeTaskPatch([]byte(`{"title": null}`))
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("unknown enum rejected", func(t *testing.T) {
		_, err := DecodeTaskPatch([]byte(`{"priority": "p0"}`))
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("only immutable keys is empty", func(t *testing.T) {
		p, err := DecodeTaskPatch([]byte(`{"_id": "abc", "updatedAt": "2020-01-01T00:00:00Z"}`))
		require.NoError(t, err)
		assert.True(t, p.Empty())
	})
}

func TestTaskPatch_Apply(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task := &Task{ID: "keep", Title: "Old", Status: TaskStatusPending, Priority: TaskPriorityLow, DueDate: &due, URLs: []string{"a"}}

	title := "New"
	status := TaskStatusInProgress
	provider := Provider("bogus")
	urls := []string{"b", "c"}
	TaskPatch{Title: &title, Status: &status, AIProvider: &provider, URLs: &urls, ClearDueDate: true}.Apply(task)

	assert.Equal(t, "keep", task.ID)
	assert.Equal(t, "New", task.Title)
	assert.Equal(t, TaskStatusInProgress, task.Status)
	assert.Equal(t, TaskPriorityLow, task.Priority)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, ProviderClaude, task.AIProvider)
	assert.Equal(t, []string{"b", "c"}, task.URLs)

	urls[0] = "mutated"
	assert.Equal(t, "b", task.URLs[0])
}

func TestTurn(t *testing.T) {
	msgs := Turn("q", "a")
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "q"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "a"}, msgs[1])
}
