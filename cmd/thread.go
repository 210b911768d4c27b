package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/todoai/internal/conversation"
	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/output"
)

var (
	threadMessage string
	threadTask    string
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Read and continue task conversations",
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print a thread's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return threadShowRun(args[0])
	},
}

var threadSendCmd = &cobra.Command{
	Use:   "send <thread-id>",
	Short: "Send a follow-up message on a thread",
	Long: `Send a message to the thread's provider with the full history and
print the reply. --task supplies the task whose title frames the reply.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return threadSendRun(args[0], threadTask, threadMessage)
	},
}

func init() {
	threadSendCmd.Flags().StringVarP(&threadMessage, "message", "m", "", "Message to send (required)")
	threadSendCmd.Flags().StringVar(&threadTask, "task", "", "Task id for context")
	_ = threadSendCmd.MarkFlagRequired("message")

	threadCmd.AddCommand(threadShowCmd)
	threadCmd.AddCommand(threadSendCmd)
	rootCmd.AddCommand(threadCmd)
}

func threadShowRun(id string) error {
	if err := models.ValidateID("thread", id); err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	th, err := s.GetThread(context.Background(), id)
	if err != nil {
		return err
	}

	ui.Info("Thread %s (%s, task %s)", output.Cyan(th.ID), th.Provider, shortID(th.TodoID))
	for _, m := range th.Messages {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "[%s]\n%s\n", output.RoleColor(string(m.Role)), m.Content)
	}
	return nil
}

func threadSendRun(threadID, taskRef, message string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	// A short task id is resolved here; an unknown task only drops the context.
	taskID := taskRef
	if taskRef != "" {
		if t, err := findTask(ctx, s, taskRef); err == nil {
			taskID = t.ID
		} else if !errs.IsNotFound(err) && !errs.IsValidation(err) {
			return err
		}
	}

	if dryRun {
		ui.DryRunMsg("Would send %q on thread %s", output.Truncate(message, 40), threadID)
		return nil
	}

	reply, err := conversation.NewService(s, s, newRegistry()).Send(ctx, threadID, taskID, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, reply)
	return nil
}
