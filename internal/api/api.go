package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/cors"

	"github.com/joescharf/todoai/internal/brief"
	"github.com/joescharf/todoai/internal/conversation"
	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/llm"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/reminder"
	"github.com/joescharf/todoai/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	store     store.Store
	registry  *llm.Registry
	briefs    *brief.Service
	chats     *conversation.Service
	reminders *reminder.Scheduler
}

// NewServer creates a new API server.
// The registry may be nil or empty when no AI provider is configured, and
// reminders may be nil when reminders are disabled.
func NewServer(s store.Store, registry *llm.Registry, reminders *reminder.Scheduler) *Server {
	return &Server{
		store:     s,
		registry:  registry,
		briefs:    brief.NewService(s, s, registry),
		chats:     conversation.NewService(s, s, registry),
		reminders: reminders,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/tasks", s.listTasks)
	mux.HandleFunc("POST /api/v1/tasks", s.createTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.getTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.deleteTask)

	mux.HandleFunc("POST /api/v1/briefs", s.generateBrief)
	mux.HandleFunc("POST /api/v1/messages", s.sendMessage)
	mux.HandleFunc("GET /api/v1/threads/{id}", s.getThread)

	mux.HandleFunc("GET /api/v1/healthz", s.healthz)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return requestLog(c.Handler(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLog tags each request with a ULID and writes one access log line.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps an error kind to its status code.
func writeErr(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.Validationf("request body too large")
		}
		return nil, errs.Validationf("read body: %v", err)
	}
	return data, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Validationf("invalid JSON")
	}
	return nil
}

func (s *Server) schedule(t *models.Task) {
	if s.reminders != nil {
		s.reminders.Schedule(t)
	}
}

// --- Tasks ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, err)
		return
	}
	in, err := models.DecodeTaskInput(data)
	if err != nil {
		writeErr(w, err)
		return
	}
	task, err := models.NewTask(in)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.CreateTask(r.Context(), task); err != nil {
		writeErr(w, err)
		return
	}
	s.schedule(task)

	// The task is already stored; a brief failure only costs the brief.
	if task.AIEnabled && s.registry.Configured() {
		updated, _, err := s.briefs.GenerateAndAttach(r.Context(), task.ID)
		if err != nil {
			slog.Warn("brief generation failed", "task", task.ID, "error", err)
		} else {
			task = updated
		}
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, err)
		return
	}
	patch, err := models.DecodeTaskPatch(data)
	if err != nil {
		writeErr(w, err)
		return
	}
	task, err := s.store.UpdateTask(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.schedule(task)
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	if s.reminders != nil {
		s.reminders.Cancel(id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted successfully"})
}

// --- AI ---

type briefRequest struct {
	TaskID string `json:"taskId"`
	TodoID string `json:"todoId"`
}

func (s *Server) generateBrief(w http.ResponseWriter, r *http.Request) {
	var req briefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	taskID := firstNonEmpty(req.TaskID, req.TodoID)
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	_, res, err := s.briefs.GenerateAndAttach(r.Context(), taskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"brief":    res.Brief,
		"threadId": res.ThreadID,
	})
}

type messageRequest struct {
	ThreadID string `json:"threadId"`
	TaskID   string `json:"taskId"`
	TodoID   string `json:"todoId"`
	Message  string `json:"message"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, "threadId is required")
		return
	}

	reply, err := s.chats.Send(r.Context(), req.ThreadID, firstNonEmpty(req.TaskID, req.TodoID), req.Message)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	th, err := s.store.GetThread(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": th.Messages})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
