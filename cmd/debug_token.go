package cmd

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/badgebot/internal/apitoken"
)

var debugTokenVerify bool

var debugTokenCmd = &cobra.Command{
	Use:   "token TOKEN",
	Short: "Print the claims of an API token",
	Long: `Decodes a BadgeBot API token and displays its claims.
Without --verify no validation is performed. With --verify the token is validated
against the security key and base URL of the server config.`,
	Example: `  badgebot debug token eyJhbGciOi...
  badgebot debug token --verify -c badgebot.yaml eyJhbGciOi...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenInput := args[0]
		if tokenInput == "" {
			return fmt.Errorf("token cannot be empty")
		}

		parser := jwt.NewParser()
		token, _, err := parser.ParseUnverified(tokenInput, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}

		log.Info().Msg("Token Claims:")
		log.Info().Msg(spew.Sdump(claims))

		if aud, err := claims.GetAudience(); err == nil {
			log.Info().Msgf("Audience (aud): %v", aud)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			log.Info().Msgf("Expiration (exp): %v (in %v)", exp.Time, time.Until(exp.Time).Round(time.Second))
		}

		if !debugTokenVerify {
			return nil
		}

		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		issuer, err := apitoken.NewIssuer(cfg.Token.SecurityKey, cfg.AppBaseURL, cfg.Token.Expiry)
		if err != nil {
			return err
		}
		if caller, err := issuer.Validate(tokenInput); err == nil {
			logSuccess("valid caller token for %s", bold(caller.FromID))
			return nil
		}
		subject, err := issuer.ValidateAdmin(tokenInput)
		if err != nil {
			return logError(err, "", "token is not valid")
		}
		logSuccess("valid admin token for %s", bold(subject))
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugTokenCmd)
	f.bindConfigFlag(debugTokenCmd.Flags())

	debugTokenCmd.Flags().BoolVar(&debugTokenVerify, "verify", false, "Validate the token against the server config")
}
