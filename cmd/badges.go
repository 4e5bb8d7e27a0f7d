package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Browse badges",
	Long: `Browse the badges of the configured issuer.
'list' talks to the credentialing API directly using the owner account of the server config,
the other commands use the API of a running server with a saved caller token.`,
}

var badgesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the badge classes of the configured issuer (owner account)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		backend, err := f.NewBackend(ctx, cfg)
		if err != nil {
			return err
		}

		log.Debug().Msg("Resolving issuer...")
		issuerID, err := backend.Org.ResolveOrgIdentity(ctx)
		if err != nil {
			return logError(err, "", "failed to resolve issuer")
		}
		token, err := backend.Owner.GetOwnerToken(ctx)
		if err != nil {
			return logError(err, "", "failed to obtain owner token")
		}
		classes, err := backend.Badgr.ListBadgeClasses(ctx, token, issuerID)
		if err != nil {
			return logError(err, "", "failed to list badge classes")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Entity ID", "Name", "Created", "Description"})
		for _, bc := range classes {
			t.AppendRow(table.Row{
				bc.EntityID,
				bold(bc.Name),
				bc.CreatedAt.Local().Format(time.DateOnly),
				truncate(bc.Description, 50),
			})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

var badgesEarnedCmd = &cobra.Command{
	Use:   "earned",
	Short: "List the badges the token's user earned from the issuer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		earned, correlation, err := cli.EarnedBadges(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to get earned badges")
		}
		if len(earned) == 0 {
			log.Info().Msg("no badges earned yet")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Awarded By", "Awarded On", "Description"})
		for _, b := range earned {
			awardedOn := "n/a"
			if !b.AwardedOn.IsZero() {
				awardedOn = b.AwardedOn.Local().Format(time.DateOnly)
			}
			t.AppendRow(table.Row{bold(b.Name), b.AwardedBy, awardedOn, truncate(b.Description, 50)})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

var badgesAllEmail string

var badgesAllCmd = &cobra.Command{
	Use:   "all",
	Short: "List all badge classes and the role of the token's user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		resp, correlation, err := cli.AllBadges(cmd.Context(), badgesAllEmail)
		if err != nil {
			return logError(err, correlation, "failed to get badges")
		}
		log.Info().Msgf("Role in issuer: %s", bold(resp.UserBadgrRole))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Entity ID", "Name", "Description"})
		for _, bc := range resp.AllBadges {
			t.AppendRow(table.Row{bc.EntityID, bold(bc.Name), truncate(bc.Description, 50)})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

var badgesTeamID string

var badgesTeamCmd = &cobra.Command{
	Use:   "team",
	Short: "List the members of a team as shown in the people picker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		members, correlation, err := cli.TeamMembers(cmd.Context(), badgesTeamID)
		if err != nil {
			return logError(err, correlation, "failed to get team members")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Email"})
		for _, m := range members {
			t.AppendRow(table.Row{m.Header, m.Content})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(badgesCmd)
	f.bindConfigFlag(badgesListCmd.Flags())
	badgesCmd.AddCommand(badgesListCmd, badgesEarnedCmd, badgesAllCmd, badgesTeamCmd)

	badgesAllCmd.Flags().StringVar(&badgesAllEmail, "email", "", "Teams email of the token's user")
	_ = badgesAllCmd.MarkFlagRequired("email")

	badgesTeamCmd.Flags().StringVar(&badgesTeamID, "team-id", "", "Teams team id")
	_ = badgesTeamCmd.MarkFlagRequired("team-id")
}
