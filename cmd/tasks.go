package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background tasks of a server",
	Long:  "List, trigger and inspect the maintenance tasks of a server. Requires an admin token.",
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
