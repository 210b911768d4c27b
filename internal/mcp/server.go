package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/todoai/internal/brief"
	"github.com/joescharf/todoai/internal/conversation"
	"github.com/joescharf/todoai/internal/llm"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/store"
)

// Server wraps the todoai data layer and exposes it as MCP tools.
type Server struct {
	store  store.Store
	briefs *brief.Service
	chats  *conversation.Service
}

// NewServer creates the MCP server wrapper. The registry may be empty, in
// which case the AI tools report the provider as not configured.
func NewServer(s store.Store, registry *llm.Registry) *Server {
	return &Server{
		store:  s,
		briefs: brief.NewService(s, s, registry),
		chats:  conversation.NewService(s, s, registry),
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("todoai", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.getTaskTool())
	srv.AddTool(s.createTaskTool())
	srv.AddTool(s.updateTaskTool())
	srv.AddTool(s.deleteTaskTool())
	srv.AddTool(s.generateBriefTool())
	srv.AddTool(s.sendMessageTool())
	srv.AddTool(s.getThreadTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// argumentsJSON re-encodes the tool arguments so they go through the same
// decoders as HTTP bodies.
func argumentsJSON(request mcp.CallToolRequest) ([]byte, error) {
	args := request.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	return json.Marshal(args)
}

// taskFieldOptions are the writable task fields shared by create and update.
func taskFieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("status", mcp.Description("Task status"), mcp.Enum("pending", "in-progress", "completed")),
		mcp.WithString("priority", mcp.Description("Task priority"), mcp.Enum("low", "medium", "high")),
		mcp.WithString("dueDate", mcp.Description("Due date (RFC 3339 or YYYY-MM-DD)")),
		mcp.WithString("reminderDate", mcp.Description("Reminder time (RFC 3339)")),
		mcp.WithArray("urls", mcp.Description("Related URLs"), mcp.WithStringItems()),
		mcp.WithBoolean("aiEnabled", mcp.Description("Generate an AI brief for the task")),
		mcp.WithString("aiProvider", mcp.Description("AI provider for the brief thread"), mcp.Enum("claude", "gpt")),
	}
}

// todo_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("todo_list_tasks",
		mcp.WithDescription("List tasks, newest first. Returns a JSON array of tasks."),
		mcp.WithString("status", mcp.Description("Filter by status: pending, in-progress, completed")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := models.TaskStatus(request.GetString("status", ""))
	if status != "" && !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", status)), nil
	}

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	if status != "" {
		filtered := make([]*models.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	return jsonResult(tasks)
}

// todo_get_task
func (s *Server) getTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("todo_get_task",
		mcp.WithDescription("Get a task by id, including its AI brief and thread id when present."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	)
	return tool, s.handleGetTask
}

func (s *Server) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get task: %v", err)), nil
	}
	return jsonResult(task)
}

// todo_create_task
func (s *Server) createTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Create a task. With aiEnabled the AI brief is generated and attached before returning."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
	}
	tool := mcp.NewTool("todo_create_task", append(opts, taskFieldOptions()...)...)
	return tool, s.handleCreateTask
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := request.RequireString("title"); err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	data, err := argumentsJSON(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	in, err := models.DecodeTaskInput(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := models.NewTask(in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	if !task.AIEnabled {
		return jsonResult(task)
	}
	updated, _, err := s.briefs.GenerateAndAttach(ctx, task.ID)
	if err != nil {
		// The task exists either way; report it with the brief failure.
		return jsonResult(map[string]any{"task": task, "briefError": err.Error()})
	}
	return jsonResult(updated)
}

// todo_update_task
func (s *Server) updateTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Update fields of a task. Only the given fields change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title", mcp.Description("New title")),
	}
	tool := mcp.NewTool("todo_update_task", append(opts, taskFieldOptions()...)...)
	return tool, s.handleUpdateTask
}

func (s *Server) handleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	data, err := argumentsJSON(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	patch, err := models.DecodeTaskPatch(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if patch.Empty() {
		return mcp.NewToolResultError("no fields to update"), nil
	}
	task, err := s.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update task: %v", err)), nil
	}
	return jsonResult(task)
}

// todo_delete_task
func (s *Server) deleteTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("todo_delete_task",
		mcp.WithDescription("Delete a task. Its AI thread is kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	)
	return tool, s.handleDeleteTask
}

func (s *Server) handleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted task %s", id)), nil
}

// todo_generate_brief
func (s *Server) generateBriefTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("todo_generate_brief",
		mcp.WithDescription("Generate a 3-5 step AI brief for a task, start a new thread with it and attach both to the task."),
		mcp.WithString("taskId", mcp.Required(), mcp.Description("Task id")),
	)
	return tool, s.handleGenerateBrief
}

func (s *Server) handleGenerateBrief(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("taskId")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: taskId"), nil
	}
	_, res, err := s.briefs.GenerateAndAttach(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{
		"brief":    res.Brief,
		"threadId": res.ThreadID,
		"provider": string(res.Provider),
	})
}

// todo_send_message
func (s *Server) sendMessageTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("todo_send_message",
		mcp.WithDescription("Send a message on a task's AI thread and return the assistant reply."),
		mcp.WithString("threadId", mcp.Required(), mcp.Description("Thread id")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("taskId", mcp.Description("Task id, used for the assistant's context")),
	)
	return tool, s.handleSendMessage
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := request.RequireString("threadId")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: threadId"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}
	reply, err := s.chats.Send(ctx, threadID, request.GetString("taskId", ""), message)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(reply), nil
}

// todo_get_thread
func (s *Server) getThreadTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("todo_get_thread",
		mcp.WithDescription("Get an AI thread with its provider and full message history."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Thread id")),
	)
	return tool, s.handleGetThread
}

func (s *Server) handleGetThread(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	th, err := s.store.GetThread(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get thread: %v", err)), nil
	}
	return jsonResult(th)
}
