package models

import (
	"strings"
	"time"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is a todo item. ThreadID and AIBrief are set by the brief follow-up write.
type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	DueDate      *time.Time   `json:"dueDate,omitempty"`
	ReminderDate *time.Time   `json:"reminderDate,omitempty"`
	URLs         []string     `json:"urls"`
	AIEnabled    bool         `json:"aiEnabled"`
	AIProvider   Provider     `json:"aiProvider,omitempty"`
	ThreadID     string       `json:"threadId,omitempty"`
	AIBrief      string       `json:"aiBrief,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// TaskInput holds the fields accepted when creating a task.
type TaskInput struct {
	Title        string
	Description  string
	Status       TaskStatus
	Priority     TaskPriority
	DueDate      *time.Time
	ReminderDate *time.Time
	URLs         []string
	AIEnabled    bool
	AIProvider   Provider
}

// NewTask validates in and returns a task with defaults applied.
// ID and timestamps are left for the store to assign.
func NewTask(in TaskInput) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("title is required")
	}

	t := &Task{
		Title:        title,
		Description:  in.Description,
		Status:       in.Status,
		Priority:     in.Priority,
		DueDate:      in.DueDate,
		ReminderDate: in.ReminderDate,
		URLs:         in.URLs,
		AIEnabled:    in.AIEnabled,
		AIProvider:   NormalizeProvider(in.AIProvider),
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	if !t.Status.Valid() {
		return nil, validationf("unknown status %q", t.Status)
	}
	if t.Priority == "" {
		t.Priority = TaskPriorityMedium
	}
	if !t.Priority.Valid() {
		return nil, validationf("unknown priority %q", t.Priority)
	}
	if t.URLs == nil {
		t.URLs = []string{}
	}
	return t, nil
}

// TaskPatch is a partial update of a task's mutable fields. Nil pointers are
// left untouched; the Clear flags remove optional timestamps.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *time.Time
	ReminderDate *time.Time
	URLs         *[]string
	AIEnabled    *bool
	AIProvider   *Provider
	ThreadID     *string
	AIBrief      *string

	ClearDueDate      bool
	ClearReminderDate bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && p.ReminderDate == nil && p.URLs == nil && p.AIEnabled == nil &&
		p.AIProvider == nil && p.ThreadID == nil && p.AIBrief == nil &&
		!p.ClearDueDate && !p.ClearReminderDate
}

// Validate checks the values carried by the patch.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return validationf("title must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return validationf("unknown status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return validationf("unknown priority %q", *p.Priority)
	}
	return nil
}

// Apply merges the patch into t. It does not touch ID, CreatedAt or UpdatedAt.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.ClearReminderDate {
		t.ReminderDate = nil
	} else if p.ReminderDate != nil {
		d := *p.ReminderDate
		t.ReminderDate = &d
	}
	if p.URLs != nil {
		t.URLs = append([]string{}, (*p.URLs)...)
	}
	if p.AIEnabled != nil {
		t.AIEnabled = *p.AIEnabled
	}
	if p.AIProvider != nil {
		t.AIProvider = NormalizeProvider(*p.AIProvider)
	}
	if p.ThreadID != nil {
		t.ThreadID = *p.ThreadID
	}
	if p.AIBrief != nil {
		t.AIBrief = *p.AIBrief
	}
}
