package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/todoai/internal/brief"
	"github.com/joescharf/todoai/internal/models"
	"github.com/joescharf/todoai/internal/output"
)

var briefCmd = &cobra.Command{
	Use:   "brief <task-id>",
	Short: "Generate an AI brief for a task",
	Long: `Generate an action plan for a task with its AI provider, store it on the
task, and start a new conversation thread. Running it again replaces the
brief and the task's thread link; the earlier thread is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return briefRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(briefCmd)
}

func briefRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	provider := models.ResolveProvider(t.AIProvider)
	if dryRun {
		ui.DryRunMsg("Would generate a brief for %s with %s", shortID(t.ID), provider)
		return nil
	}

	ui.VerboseLog("Generating brief with %s", provider)
	updated, res, err := brief.NewService(s, s, newRegistry()).GenerateAndAttach(ctx, t.ID)
	if err != nil {
		return err
	}

	ui.Success("Brief generated by %s, thread %s", res.Provider, output.Cyan(res.ThreadID))
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, updated.AIBrief)
	return nil
}
