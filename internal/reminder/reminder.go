// Package reminder fires task reminders at their reminderDate.
package reminder

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joescharf/todoai/internal/models"
)

// DefaultBody is used when the task has no description.
const DefaultBody = "Task reminder"

// Reminder is one notification about a task.
type Reminder struct {
	TaskID string
	Title  string
	Body   string
	At     time.Time
}

// For returns the reminder for t, or false when t has none to fire.
func For(t *models.Task) (Reminder, bool) {
	if t == nil || t.ReminderDate == nil || t.Status == models.TaskStatusCompleted {
		return Reminder{}, false
	}
	body := t.Description
	if body == "" {
		body = DefaultBody
	}
	return Reminder{
		TaskID: t.ID,
		Title:  "Reminder: " + t.Title,
		Body:   body,
		At:     *t.ReminderDate,
	}, true
}

type armed struct {
	at    time.Time
	timer *time.Timer
}

// Scheduler keeps one timer per task. It is safe for concurrent use.
type Scheduler struct {
	notify func(Reminder)

	mu      sync.Mutex
	timers  map[string]*armed
	fired   map[string]time.Time
	stopped bool
}

// NewScheduler creates a scheduler that calls notify from a timer goroutine.
func NewScheduler(notify func(Reminder)) *Scheduler {
	return &Scheduler{
		notify: notify,
		timers: make(map[string]*armed),
		fired:  make(map[string]time.Time),
	}
}

// Schedule arms (or re-arms) the reminder of t. A reminder already in the past
// fires immediately. Tasks without a reminder, or completed ones, are cancelled.
// A given reminder time fires at most once.
func (s *Scheduler) Schedule(t *models.Task) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	r, ok := For(t)
	if !ok {
		s.cancelLocked(t.ID)
		return
	}
	if at, done := s.fired[t.ID]; done && at.Equal(r.At) {
		s.cancelLocked(t.ID)
		return
	}

	s.cancelLocked(t.ID)
	delay := time.Until(r.At)
	if delay < 0 {
		delay = 0
	}
	a := &armed{at: r.At}
	a.timer = time.AfterFunc(delay, func() { s.fire(a, r) })
	s.timers[t.ID] = a
}

func (s *Scheduler) fire(a *armed, r Reminder) {
	s.mu.Lock()
	// A timer replaced or cancelled after it started is stale.
	if s.timers[r.TaskID] != a {
		s.mu.Unlock()
		return
	}
	delete(s.timers, r.TaskID)
	s.fired[r.TaskID] = r.At
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(r)
	}
}

// Cancel disarms the reminder of the task with the given id.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

func (s *Scheduler) cancelLocked(id string) {
	if a, ok := s.timers[id]; ok {
		a.timer.Stop()
		delete(s.timers, id)
	}
}

// Sync reschedules from a full task listing. Timers of tasks missing from
// the listing are dropped.
func (s *Scheduler) Sync(tasks []*models.Task) {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		seen[t.ID] = true
		s.Schedule(t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		if !seen[id] {
			s.cancelLocked(id)
		}
	}
	for id := range s.fired {
		if !seen[id] {
			delete(s.fired, id)
		}
	}
}

// Pending returns the ids of tasks with an armed reminder, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop disarms every timer. Later calls to Schedule are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id := range s.timers {
		s.cancelLocked(id)
	}
}

// TaskLister is the part of the task store the sync loop needs.
type TaskLister interface {
	ListTasks(ctx context.Context) ([]*models.Task, error)
}

// Run syncs from tasks at start and then every interval until ctx is done,
// then stops the scheduler. List failures are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context, tasks TaskLister, interval time.Duration) error {
	defer s.Stop()

	resync := func() {
		list, err := tasks.ListTasks(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("reminder sync failed", "error", err)
			}
			return
		}
		s.Sync(list)
		slog.Debug("reminders synced", "pending", len(s.Pending()))
	}

	resync()
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			resync()
		}
	}
}

// LogNotifier returns a notify func that writes reminders to logger.
func LogNotifier(logger *slog.Logger) func(Reminder) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(r Reminder) {
		logger.Info(r.Title, "task", r.TaskID, "body", r.Body, "due", r.At.Format(time.RFC3339))
	}
}
