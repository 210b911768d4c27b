package reminder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/todoai/internal/models"
)

type recorder struct {
	mu  sync.Mutex
	got []Reminder
	ch  chan Reminder
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Reminder, 16)}
}

func (r *recorder) notify(rem Reminder) {
	r.mu.Lock()
	r.got = append(r.got, rem)
	r.mu.Unlock()
	r.ch <- rem
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recorder) wait(t *testing.T) Reminder {
	t.Helper()
	select {
	case rem := <-r.ch:
		return rem
	case <-time.After(2 * time.Second):
		t.Fatal("reminder did not fire")
		return Reminder{}
	}
}

func task(title string, at time.Time) *models.Task {
	return &models.Task{ID: models.NewID(), Title: title, Status: models.TaskStatusPending, ReminderDate: &at}
}

func TestFor(t *testing.T) {
	at := time.Now().Add(time.Hour)
	r, ok := For(task("Call mom", at))
	require.True(t, ok)
	assert.Equal(t, "Reminder: Call mom", r.Title)
	assert.Equal(t, DefaultBody, r.Body)
	assert.Equal(t, at, r.At)

	withDesc := task("Call mom", at)
	withDesc.Description = "birthday"
	r, _ = For(withDesc)
	assert.Equal(t, "birthday", r.Body)

	done := task("x", at)
	done.Status = models.TaskStatusCompleted
	_, ok = For(done)
	assert.False(t, ok)

	_, ok = For(&models.Task{ID: models.NewID(), Title: "no date"})
	assert.False(t, ok)
}

func TestSchedule_PastDueFiresImmediately(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(rec.notify)
	defer s.Stop()

	tk := task("Overdue", time.Now().Add(-time.Minute))
	s.Schedule(tk)

	got := rec.wait(t)
	assert.Equal(t, tk.ID, got.TaskID)
	assert.Equal(t, "Reminder: Overdue", got.Title)
	assert.Eventually(t, func() bool { return len(s.Pending()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestSchedule_FiresAtTime(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(rec.notify)
	defer s.Stop()

	tk := task("Soon", time.Now().Add(50*time.Millisecond))
	s.Schedule(tk)
	assert.Equal(t, []string{tk.ID}, s.Pending())

	got := rec.wait(t)
	assert.Equal(t, tk.ID, got.TaskID)
}

func TestSchedule_FiresOncePerTime(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(rec.notify)
	defer s.Stop()

	tk := task("Overdue", time.Now().Add(-time.Minute))
	s.Sync([]*models.Task{tk})
	rec.wait(t)

	s.Sync([]*models.Task{tk})
	s.Schedule(tk)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	// A new reminder time arms again.
	later := time.Now().Add(-time.Second)
	tk.ReminderDate = &later
	s.Schedule(tk)
	rec.wait(t)
	assert.Equal(t, 2, rec.count())
}

func TestSchedule_ReplacesPreviousTimer(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(rec.notify)
	defer s.Stop()

	tk := task("x", time.Now().Add(time.Hour))
	s.Schedule(tk)
	now := time.Now().Add(-time.Second)
	tk.ReminderDate = &now
	s.Schedule(tk)

	rec.wait(t)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestSchedule_CompletedAndClearedCancel(t *testing.T) {
	s := NewScheduler(nil)
	defer s.Stop()

	tk := task("x", time.Now().Add(time.Hour))
	s.Schedule(tk)
	require.Len(t, s.Pending(), 1)

	tk.Status = models.TaskStatusCompleted
	s.Schedule(tk)
	assert.Empty(t, s.Pending())

	tk.Status = models.TaskStatusPending
	s.Schedule(tk)
	require.Len(t, s.Pending(), 1)
	tk.ReminderDate = nil
	s.Schedule(tk)
	assert.Empty(t, s.Pending())
}

func TestCancel(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(rec.notify)
	defer s.Stop()

	tk := task("x", time.Now().Add(30*time.Millisecond))
	s.Schedule(tk)
	s.Cancel(tk.ID)
	assert.Empty(t, s.Pending())

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestSync_DropsVanishedTasks(t *testing.T) {
	s := NewScheduler(nil)
	defer s.Stop()

	a := task("a", time.Now().Add(time.Hour))
	b := task("b", time.Now().Add(time.Hour))
	s.Sync([]*models.Task{a, b})
	assert.Len(t, s.Pending(), 2)

	s.Sync([]*models.Task{b})
	assert.Equal(t, []string{b.ID}, s.Pending())
}

func TestStop(t *testing.T) {
	s := NewScheduler(nil)
	s.Schedule(task("a", time.Now().Add(time.Hour)))
	s.Stop()
	assert.Empty(t, s.Pending())

	s.Schedule(task("b", time.Now().Add(time.Hour)))
	assert.Empty(t, s.Pending(), "stopped scheduler ignores new reminders")
}

type listerFunc func(ctx context.Context) ([]*models.Task, error)

func (f listerFunc) ListTasks(ctx context.Context) ([]*models.Task, error) { return f(ctx) }

func TestRun_SyncsUntilCancelled(t *testing.T) {
	s := NewScheduler(nil)
	var mu sync.Mutex
	calls := 0
	tk := task("a", time.Now().Add(time.Hour))
	lister := listerFunc(func(context.Context) ([]*models.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 2 {
			return nil, errors.New("db down")
		}
		return []*models.Task{tk}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, lister, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{tk.ID}, s.Pending())

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, s.Pending(), "run stops the scheduler on exit")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	LogNotifier(logger)(Reminder{TaskID: "abc", Title: "Reminder: x", Body: DefaultBody, At: time.Now()})

	assert.Contains(t, buf.String(), "Reminder: x")
	assert.Contains(t, buf.String(), "task=abc")
}
