package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/todoai/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client manage tasks, briefs, and threads. Configure it with:

  {
    "mcpServers": {
      "todoai": { "command": "todoai", "args": ["mcp"] }
    }
  }

Available tools: todo_list_tasks, todo_get_task, todo_create_task,
todo_update_task, todo_delete_task, todo_generate_brief,
todo_send_message, todo_get_thread`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		return mcp.NewServer(s, newRegistry()).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
