package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Persistence("create db directory", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errs.Persistence("open database", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access, which also makes each transaction below atomic
	// with respect to concurrent requests.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errs.Persistence(p, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return errs.Persistence("create migrations table", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return errs.Persistence("check migration "+name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return errs.Persistence("apply migration "+name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return errs.Persistence("record migration "+name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Tasks ---

const taskColumns = `id, title, description, status, priority, due_date, reminder_date, urls, ai_enabled, ai_provider, thread_id, ai_brief, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var status, priority, provider, urls string
	var due, reminder sql.NullTime

	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &due, &reminder,
		&urls, &t.AIEnabled, &provider, &t.ThreadID, &t.AIBrief, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	t.AIProvider = models.Provider(provider)
	if due.Valid {
		t.DueDate = &due.Time
	}
	if reminder.Valid {
		t.ReminderDate = &reminder.Time
	}
	t.URLs = []string{}
	if urls != "" {
		if err := json.Unmarshal([]byte(urls), &t.URLs); err != nil {
			return nil, fmt.Errorf("decode urls for task %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func encodeURLs(urls []string) string {
	if urls == nil {
		urls = []string{}
	}
	data, _ := json.Marshal(urls)
	return string(data)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errs.Persistence("list tasks", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errs.Persistence("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list tasks", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return getTask(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryer, id string) (*models.Task, error) {
	if err := models.ValidateID("task", id); err != nil {
		return nil, err
	}
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("task %s", id)
	}
	if err != nil {
		return nil, errs.Persistence("get task", err)
	}
	return t, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = models.NewID()
	}
	if t.URLs == nil {
		t.URLs = []string{}
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), nullTime(t.ReminderDate), encodeURLs(t.URLs),
		boolToInt(t.AIEnabled), string(t.AIProvider), t.ThreadID, t.AIBrief,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return errs.Persistence("create task", err)
	}
	return nil
}

// UpdateTask merges patch into the stored task inside one transaction.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateID("task", id); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Persistence("begin update task", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(t)
	t.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, status=?, priority=?, due_date=?, reminder_date=?, urls=?,
			ai_enabled=?, ai_provider=?, thread_id=?, ai_brief=?, updated_at=?
		WHERE id=?`,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), nullTime(t.ReminderDate), encodeURLs(t.URLs),
		boolToInt(t.AIEnabled), string(t.AIProvider), t.ThreadID, t.AIBrief, t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return nil, errs.Persistence("update task", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Persistence("commit update task", err)
	}
	return t, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	if err := models.ValidateID("task", id); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return errs.Persistence("delete task", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("task %s", id)
	}
	return nil
}

// --- Threads ---

func (s *SQLiteStore) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	if err := models.ValidateID("thread", id); err != nil {
		return nil, err
	}

	th := &models.Thread{}
	var provider string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, todo_id, provider, created_at, updated_at FROM threads WHERE id = ?`, id,
	).Scan(&th.ID, &th.TodoID, &provider, &th.CreatedAt, &th.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("thread %s", id)
	}
	if err != nil {
		return nil, errs.Persistence("get thread", err)
	}
	th.Provider = models.Provider(provider)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM thread_messages WHERE thread_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, errs.Persistence("list thread messages", err)
	}
	defer func() { _ = rows.Close() }()

	th.Messages = []models.Message{}
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&role, &m.Content); err != nil {
			return nil, errs.Persistence("scan thread message", err)
		}
		m.Role = models.Role(role)
		th.Messages = append(th.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list thread messages", err)
	}
	return th, nil
}

func (s *SQLiteStore) CreateThread(ctx context.Context, th *models.Thread) error {
	if th.ID == "" {
		th.ID = models.NewID()
	}
	if th.Messages == nil {
		th.Messages = []models.Message{}
	}
	now := time.Now().UTC()
	th.CreatedAt = now
	th.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Persistence("begin create thread", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO threads (id, todo_id, provider, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		th.ID, th.TodoID, string(th.Provider), th.CreatedAt, th.UpdatedAt,
	)
	if err != nil {
		return errs.Persistence("create thread", err)
	}
	if err := insertMessages(ctx, tx, th.ID, 0, th.Messages); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Persistence("commit create thread", err)
	}
	return nil
}

// AppendMessages adds msgs after the last stored message in one transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, id string, msgs ...models.Message) error {
	if err := models.ValidateID("thread", id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Persistence("begin append messages", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return errs.Persistence("touch thread", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("thread %s", id)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM thread_messages WHERE thread_id = ?`, id,
	).Scan(&next)
	if err != nil {
		return errs.Persistence("next message seq", err)
	}
	if err := insertMessages(ctx, tx, id, next, msgs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Persistence("commit append messages", err)
	}
	return nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, threadID string, start int, msgs []models.Message) error {
	for i, m := range msgs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO thread_messages (thread_id, seq, role, content) VALUES (?, ?, ?, ?)`,
			threadID, start+i, string(m.Role), m.Content,
		)
		if err != nil {
			return errs.Persistence("insert thread message", err)
		}
	}
	return nil
}
