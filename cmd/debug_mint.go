package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/badgebot/internal/apitoken"
	"github.com/darmiel/badgebot/internal/core"
)

var (
	mintFromID     string
	mintServiceURL string
	mintAdmin      bool
	mintSubject    string
	mintExpiry     time.Duration
)

var debugMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint an API token locally using the configured security key",
	Long: `Mints a token for the task module API exactly like the bot does when opening
the award dialog. With --admin an admin token for the audit API is minted instead.`,
	Example: `  badgebot debug mint -c badgebot.yaml --from-id 29:1abc --service-url https://smba.trafficmanager.net/emea/
  badgebot debug mint -c badgebot.yaml --admin --subject ops@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		issuer, err := apitoken.NewIssuer(cfg.Token.SecurityKey, cfg.AppBaseURL, cfg.Token.Expiry)
		if err != nil {
			return err
		}

		var (
			token   string
			expires time.Time
		)
		if mintAdmin {
			if mintSubject == "" {
				return fmt.Errorf("--subject is required for admin tokens")
			}
			token, expires, err = issuer.MintAdmin(mintSubject, mintExpiry)
		} else {
			if mintFromID == "" || mintServiceURL == "" {
				return fmt.Errorf("--from-id and --service-url are required")
			}
			token, expires, err = issuer.Mint(core.Caller{
				FromID:     mintFromID,
				ServiceURL: mintServiceURL,
			})
		}
		if err != nil {
			return fmt.Errorf("minting token: %w", err)
		}

		log.Info().Msgf("Token expires at %s (in %s)", expires.Format(time.RFC3339),
			time.Until(expires).Round(time.Second))
		fmt.Println(token)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugMintCmd)
	f.bindConfigFlag(debugMintCmd.Flags())

	debugMintCmd.Flags().StringVar(&mintFromID, "from-id", "", "Bot Framework user id of the caller")
	debugMintCmd.Flags().StringVar(&mintServiceURL, "service-url", "", "Channel service URL of the caller")
	debugMintCmd.Flags().BoolVar(&mintAdmin, "admin", false, "Mint an admin token for the audit API")
	debugMintCmd.Flags().StringVar(&mintSubject, "subject", "", "Subject of the admin token")
	debugMintCmd.Flags().DurationVar(&mintExpiry, "expiry", apitoken.DefaultExpiry, "Lifetime of admin tokens")
}
