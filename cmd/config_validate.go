package cmd

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configValidateDump bool

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads the server configuration, applies defaults and validates it,
including compiling the award policy expression. Secrets are masked when dumping.`,
	Example: `  badgebot config validate -c badgebot.yaml --dump`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}
		if configValidateDump {
			log.Info().Msg("Effective configuration:")
			log.Info().Msg(spew.Sdump(cfg.Redacted()))
		}
		logSuccess("configuration %s is valid", bold(f.ConfigPath))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	f.bindConfigFlag(configValidateCmd.Flags())

	configValidateCmd.Flags().BoolVar(&configValidateDump, "dump", false, "Print the effective configuration")
}
