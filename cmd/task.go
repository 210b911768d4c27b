package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/todoai/internal/brief"
	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/output"
	"github.com/joescharf/todoai/internal/store"
)

// Flags for task add and task update.
var (
	taskDescription string
	taskStatus      string
	taskPriority    string
	taskDue         string
	taskRemind      string
	taskURLs        []string
	taskAI          bool
	taskProvider    string
	taskTitle       string

	taskListStatus string
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"t"},
	Short:   "Manage tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task. With --ai and a configured provider, a brief is generated
and a conversation thread is started for it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun(strings.Join(args, " "))
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskShowRun(args[0])
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update task fields",
	Long:  `Update the given fields. Pass "none" to --due or --remind to clear the date.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := taskPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		return taskUpdateRun(args[0], patch)
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.TaskStatusCompleted
		return taskUpdateRun(args[0], models.TaskPatch{Status: &status})
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Long:    "Delete a task. Its conversation thread is kept.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskRmRun(args[0])
	},
}

func addTaskFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&taskDescription, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&taskStatus, "status", "", "Status: pending, in-progress, completed")
	cmd.Flags().StringVarP(&taskPriority, "priority", "p", "", "Priority: low, medium, high")
	cmd.Flags().StringVar(&taskDue, "due", "", "Due date (2006-01-02 or 2006-01-02T15:04)")
	cmd.Flags().StringVar(&taskRemind, "remind", "", "Reminder time (2006-01-02T15:04)")
	cmd.Flags().StringSliceVar(&taskURLs, "url", nil, "Related URL (repeatable)")
	cmd.Flags().BoolVar(&taskAI, "ai", false, "Enable AI assistance")
	cmd.Flags().StringVar(&taskProvider, "provider", "", "AI provider: claude, gpt")
}

func init() {
	addTaskFieldFlags(taskAddCmd)
	addTaskFieldFlags(taskUpdateCmd)
	taskUpdateCmd.Flags().StringVarP(&taskTitle, "title", "t", "", "New title")
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Only show tasks with this status")
	taskCmd.Flags().StringVar(&taskListStatus, "status", "", "Only show tasks with this status")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

// shortID is the display form of an ObjectID. ObjectIDs start with their
// creation second, so the tail is what tells tasks apart.
func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

// findTask resolves a full id or a unique id suffix as printed by shortID.
func findTask(ctx context.Context, s store.TaskStore, ref string) (*models.Task, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if models.ValidateID("task", ref) == nil {
		return s.GetTask(ctx, ref)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: task id is required", errs.ErrValidation)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var match *models.Task
	for _, t := range tasks {
		if !strings.HasSuffix(t.ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: id %q is ambiguous", errs.ErrValidation, ref)
		}
		match = t
	}
	if match == nil {
		return nil, fmt.Errorf("task %q: %w", ref, errs.ErrNotFound)
	}
	return match, nil
}

// parseDateFlag parses v, treating "" and "none" as a request to clear.
func parseDateFlag(name, v string) (*time.Time, bool, error) {
	if v == "" || strings.EqualFold(v, "none") {
		return nil, true, nil
	}
	ts, err := models.ParseTime(v)
	if err != nil {
		return nil, false, fmt.Errorf("--%s: %w", name, err)
	}
	return &ts, false, nil
}

func taskInputFromFlags(title string) (models.TaskInput, error) {
	in := models.TaskInput{
		Title:       title,
		Description: taskDescription,
		Status:      models.TaskStatus(taskStatus),
		Priority:    models.TaskPriority(taskPriority),
		URLs:        taskURLs,
		AIEnabled:   taskAI,
		AIProvider:  models.Provider(taskProvider),
	}
	if taskDue != "" {
		due, _, err := parseDateFlag("due", taskDue)
		if err != nil {
			return in, err
		}
		in.DueDate = due
	}
	if taskRemind != "" {
		at, _, err := parseDateFlag("remind", taskRemind)
		if err != nil {
			return in, err
		}
		in.ReminderDate = at
	}
	return in, nil
}

// taskPatchFromFlags builds a patch from the flags the user actually set.
func taskPatchFromFlags(cmd *cobra.Command) (models.TaskPatch, error) {
	var p models.TaskPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		p.Title = &taskTitle
	}
	if flags.Changed("description") {
		p.Description = &taskDescription
	}
	if flags.Changed("status") {
		st := models.TaskStatus(taskStatus)
		p.Status = &st
	}
	if flags.Changed("priority") {
		pr := models.TaskPriority(taskPriority)
		p.Priority = &pr
	}
	if flags.Changed("due") {
		due, unset, err := parseDateFlag("due", taskDue)
		if err != nil {
			return p, err
		}
		p.DueDate, p.ClearDueDate = due, unset
	}
	if flags.Changed("remind") {
		at, unset, err := parseDateFlag("remind", taskRemind)
		if err != nil {
			return p, err
		}
		p.ReminderDate, p.ClearReminderDate = at, unset
	}
	if flags.Changed("url") {
		urls := append([]string{}, taskURLs...)
		p.URLs = &urls
	}
	if flags.Changed("ai") {
		p.AIEnabled = &taskAI
	}
	if flags.Changed("provider") {
		pv := models.NormalizeProvider(models.Provider(taskProvider))
		p.AIProvider = &pv
	}
	return p, nil
}

func taskAddRun(title string) error {
	in, err := taskInputFromFlags(title)
	if err != nil {
		return err
	}
	t, err := models.NewTask(in)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create task %q (%s, %s)", t.Title, t.Status, t.Priority)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.CreateTask(ctx, t); err != nil {
		return err
	}
	ui.Success("Created task %s: %s", output.Cyan(shortID(t.ID)), t.Title)

	if !t.AIEnabled {
		return nil
	}
	registry := newRegistry()
	if !registry.Configured() {
		ui.Warning("AI enabled but no provider configured; skipping brief")
		return nil
	}
	ui.VerboseLog("Generating brief with %s", models.ResolveProvider(t.AIProvider))
	updated, _, err := brief.NewService(s, s, registry).GenerateAndAttach(ctx, t.ID)
	if err != nil {
		ui.Warning("Brief not generated: %v", err)
		return nil
	}
	printBrief(updated)
	return nil
}

func taskListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	var filter models.TaskStatus
	if taskListStatus != "" {
		filter = models.TaskStatus(taskListStatus)
		if !filter.Valid() {
			return fmt.Errorf("%w: unknown status %q", errs.ErrValidation, taskListStatus)
		}
	}

	tasks, err := s.ListTasks(context.Background())
	if err != nil {
		return err
	}

	now := time.Now()
	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Due", "AI"})
	shown := 0
	for _, t := range tasks {
		if filter != "" && t.Status != filter {
			continue
		}
		ai := "-"
		if t.AIEnabled {
			ai = string(models.ResolveProvider(t.AIProvider))
			if t.ThreadID != "" {
				ai += "*"
			}
		}
		_ = table.Append([]string{
			output.Cyan(shortID(t.ID)),
			output.Truncate(t.Title, 40),
			output.StatusColor(string(t.Status)),
			output.PriorityColor(string(t.Priority)),
			output.DueColor(t.DueDate, now),
			ai,
		})
		shown++
	}

	if shown == 0 {
		ui.Info("No tasks. Use 'todoai task add <title>' to create one.")
		return nil
	}
	return table.Render()
}

func taskShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	t, err := findTask(context.Background(), s, ref)
	if err != nil {
		return err
	}

	w := ui.Out
	fmt.Fprintf(w, "%s  %s\n", output.Cyan(t.ID), t.Title)
	fmt.Fprintf(w, "  Status:    %s\n", output.StatusColor(string(t.Status)))
	fmt.Fprintf(w, "  Priority:  %s\n", output.PriorityColor(string(t.Priority)))
	fmt.Fprintf(w, "  Due:       %s\n", output.DueColor(t.DueDate, time.Now()))
	if t.ReminderDate != nil {
		fmt.Fprintf(w, "  Reminder:  %s\n", t.ReminderDate.Local().Format("2006-01-02 15:04"))
	}
	if t.Description != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", t.Description)
	}
	for _, u := range t.URLs {
		fmt.Fprintf(w, "  URL:       %s\n", u)
	}
	if t.AIEnabled {
		fmt.Fprintf(w, "  AI:        %s\n", models.ResolveProvider(t.AIProvider))
	}
	if t.ThreadID != "" {
		fmt.Fprintf(w, "  Thread:    %s\n", t.ThreadID)
	}
	printBrief(t)
	return nil
}

func printBrief(t *models.Task) {
	if t == nil || t.AIBrief == "" {
		return
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, output.Yellow("Brief"))
	fmt.Fprintln(ui.Out, t.AIBrief)
}

func taskUpdateRun(ref string, patch models.TaskPatch) error {
	if patch.Empty() {
		return fmt.Errorf("%w: nothing to update", errs.ErrValidation)
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would update task %s", shortID(t.ID))
		return nil
	}

	updated, err := s.UpdateTask(ctx, t.ID, patch)
	if err != nil {
		return err
	}
	ui.Success("Updated task %s (%s)", output.Cyan(shortID(updated.ID)), output.StatusColor(string(updated.Status)))
	return nil
}

func taskRmRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete task %s: %s", shortID(t.ID), t.Title)
		return nil
	}

	if err := s.DeleteTask(ctx, t.ID); err != nil {
		return err
	}
	ui.Success("Deleted task %s: %s", shortID(t.ID), t.Title)
	return nil
}
