// Package conversation continues the AI thread attached to a task.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/llm"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/store"
)

// MaxTokens is the completion budget for one reply.
const MaxTokens = 2048

// ErrSendFailed wraps every provider failure of Send.
var ErrSendFailed = errors.New("message send failed")

const genericPrompt = "You are a helpful assistant helping with a task. Provide practical, concise advice. Keep responses brief and actionable."

// Service sends user messages on existing threads.
type Service struct {
	tasks    store.TaskStore
	threads  store.ThreadStore
	registry *llm.Registry
}

// NewService creates a conversation service.
func NewService(tasks store.TaskStore, threads store.ThreadStore, registry *llm.Registry) *Service {
	return &Service{tasks: tasks, threads: threads, registry: registry}
}

// Send appends message to the thread's history, asks the thread's provider
// for a reply and persists the (user, assistant) turn in one append. The task
// only supplies context; a missing task degrades to a generic prompt. Nothing
// is persisted when the provider fails.
//
// Concurrent sends on one thread may each read the same history. Both turns
// are appended, but their replies are not ordered against each other.
func (s *Service) Send(ctx context.Context, threadID, taskID, message string) (string, error) {
	if err := models.ValidateID("thread", threadID); err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		return "", errs.Validationf("message is required")
	}

	th, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return "", err
	}

	history := make([]models.Message, 0, len(th.Messages)+1)
	history = append(history, th.Messages...)
	history = append(history, models.Message{Role: models.RoleUser, Content: message})

	reply, _, err := s.registry.Complete(ctx, th.Provider, llm.Request{
		MaxTokens: MaxTokens,
		System:    s.systemPrompt(ctx, taskID),
		Messages:  history,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if err := s.threads.AppendMessages(ctx, th.ID, models.Turn(message, reply)...); err != nil {
		return "", err
	}
	return reply, nil
}

func (s *Service) systemPrompt(ctx context.Context, taskID string) string {
	if models.ValidateID("task", taskID) != nil {
		return genericPrompt
	}
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		if !errs.IsNotFound(err) {
			slog.Warn("task lookup for conversation context failed", "task", taskID, "error", err)
		}
		return genericPrompt
	}
	return taskPrompt(task.Title)
}

func taskPrompt(title string) string {
	return fmt.Sprintf("You are a helpful assistant helping with task: \"%s\". Provide practical, concise advice. Keep responses brief and actionable.", title)
}
