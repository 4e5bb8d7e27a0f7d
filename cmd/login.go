package cmd

import (
	"fmt"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/badgebot/internal/cliconfig"
	"github.com/darmiel/badgebot/pkg/client"
)

var loginCmd = &cobra.Command{
	Use:   "login TOKEN",
	Short: "Save an API token for a BadgeBot server",
	Long: `Checks a token against the server and saves it locally to allow future
authenticated requests. Admin tokens (see 'badgebot debug mint --admin') unlock the audit commands,
caller tokens the badge commands.`,
	Example: `  badgebot login --server https://badges.example.com "$(badgebot debug mint --admin --subject me)"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loginToken := args[0]
		if loginToken == "" {
			return fmt.Errorf("token cannot be empty")
		}

		server := f.RemoteAddr
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		cred := &cliconfig.Credential{Token: loginToken}

		parsed, _, err := jwt.NewParser().ParseUnverified(loginToken, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			cred.ExpiresAt = exp.Time
		}
		_, cred.Admin = claims["roles"]

		cli := client.New(server, client.WithAuthToken(loginToken))
		log.Info().Msgf("Checking token against server %q...", u.Host)

		if cred.Admin {
			_, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{Limit: 1})
			if err != nil {
				return logError(err, correlation, "server rejected the admin token")
			}
		} else if _, correlation, err := cli.Info(cmd.Context()); err != nil {
			return logError(err, correlation, "server is not reachable")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.SetCredential(server, cred); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s", bold(u.Host))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved token of a BadgeBot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server := f.RemoteAddr
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		removed, err := cfg.RemoveCredential(server)
		if err != nil {
			return err
		}
		if !removed {
			log.Warn().Msg("no credentials saved for this server")
			return nil
		}
		if err := cliconfig.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		logSuccess("removed credentials")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
