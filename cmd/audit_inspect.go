package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/badgebot/pkg/client"
)

var auditInspectCmd = &cobra.Command{
	Use:     "inspect CORRELATION-ID",
	Short:   "Show full details of a specific audit log entry",
	Example: `  badgebot audit inspect cq0n3bbv0a1a2b3c4d5g`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correlationID := args[0]
		if correlationID == "" {
			return fmt.Errorf("correlation ID cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving entries with correlation ID '%s'...", correlationID)
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         10,
			CorrelationID: correlationID,
		})
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log entry")
		}
		if len(audits) == 0 {
			log.Warn().Str("correlation_id", correlationID).Msg("no audit log entries found")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		printKV := func(key string, val any) {
			fmt.Printf("  %-26s %v\n", faint(key)+":", val)
		}

		printMap := func(m map[string]any) {
			if len(m) == 0 {
				fmt.Printf("       %s\n", faint("(none)"))
				return
			}
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Printf("       %-16s %v\n", faint(k)+":", m[k])
			}
		}

		orNone := func(s string) any {
			if s == "" {
				return faint("(none)")
			}
			return s
		}

		// a single request may produce more than one entry (e.g. reconcile, then award)
		for _, entry := range audits {
			status := green("success")
			if !entry.Success {
				status = red("failure")
			}

			fmt.Println(bold("\n── Audit Entry ──"))
			printKV("Correlation ID", correlationID)
			printKV("Time", entry.Time.Local().Format(time.RFC1123))
			printKV("Action", bold(entry.Action))
			printKV("Result", status)

			fmt.Println(bold("\n── Identity ──"))
			printKV("Caller", orNone(entry.Caller))
			printKV("Teams Email", orNone(entry.Email))
			printKV("Issuer", orNone(entry.IssuerID))

			if entry.Error != "" {
				fmt.Println(bold("\n── Error ──"))
				printKV("Message", red(entry.Error))
			}

			fmt.Println(bold("\n── Details ──"))
			printKV("Metadata", "")
			printMap(entry.Metadata)
		}
		fmt.Println()

		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditInspectCmd)
}
