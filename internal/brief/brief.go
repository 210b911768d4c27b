// Package brief generates AI action plans for tasks and seeds their threads.
package brief

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/todoai/internal/llm"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/store"
)

// MaxTokens is the completion budget for a brief.
const MaxTokens = 1024

// ErrGenerationFailed wraps every provider failure of Generate.
var ErrGenerationFailed = errors.New("brief generation failed")

// Result is the outcome of a successful generation.
type Result struct {
	Brief    string
	ThreadID string
	Provider models.Provider
}

// Service composes the brief prompt, calls the provider and records the thread.
type Service struct {
	tasks    store.TaskStore
	threads  store.ThreadStore
	registry *llm.Registry
}

// NewService creates a brief service.
func NewService(tasks store.TaskStore, threads store.ThreadStore, registry *llm.Registry) *Service {
	return &Service{tasks: tasks, threads: threads, registry: registry}
}

// Generate produces a brief for the task and creates a thread seeded with the
// prompt and reply. On provider failure no thread is created.
func (s *Service) Generate(ctx context.Context, taskID string) (Result, error) {
	if err := models.ValidateID("task", taskID); err != nil {
		return Result{}, err
	}
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, err
	}

	prompt := buildPrompt(task)
	reply, provider, err := s.registry.Complete(ctx, task.AIProvider, llm.Request{
		MaxTokens: MaxTokens,
		Messages:  []models.Message{{Role: models.RoleUser, Content: prompt}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	th := &models.Thread{
		TodoID:   task.ID,
		Provider: provider,
		Messages: models.Turn(prompt, reply),
	}
	if err := s.threads.CreateThread(ctx, th); err != nil {
		return Result{}, err
	}
	return Result{Brief: reply, ThreadID: th.ID, Provider: provider}, nil
}

// Attach writes the brief and thread id back onto the task. It is a separate
// write from Generate; a failure here leaves the thread without a task link.
func (s *Service) Attach(ctx context.Context, taskID string, res Result) (*models.Task, error) {
	return s.tasks.UpdateTask(ctx, taskID, models.TaskPatch{
		AIBrief:  &res.Brief,
		ThreadID: &res.ThreadID,
	})
}

// GenerateAndAttach runs Generate then Attach.
func (s *Service) GenerateAndAttach(ctx context.Context, taskID string) (*models.Task, Result, error) {
	res, err := s.Generate(ctx, taskID)
	if err != nil {
		return nil, Result{}, err
	}
	task, err := s.Attach(ctx, taskID, res)
	if err != nil {
		return nil, res, err
	}
	return task, res, nil
}

func buildPrompt(t *models.Task) string {
	var b strings.Builder
	b.WriteString("I need a practical, concise brief on how to accomplish this task:\n\n")
	b.WriteString("Title: ")
	b.WriteString(t.Title)
	if t.Description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(t.Description)
	}
	if len(t.URLs) > 0 {
		b.WriteString("\nRelated URLs: ")
		b.WriteString(strings.Join(t.URLs, ", "))
	}
	b.WriteString("\n\nProvide a brief, actionable plan (3-5 steps max) on how to accomplish this task. ")
	b.WriteString("Be practical and concise. Respond in the same language as the task title and description.")
	return b.String()
}
