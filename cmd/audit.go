package cmd

import (
	"github.com/spf13/cobra"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse the audit log of a server",
	Long:  "Browse the audit log of a server. Requires an admin token (see 'badgebot login').",
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
