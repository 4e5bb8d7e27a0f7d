package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✘")
)

// BeQuietError signals that the error was already reported to the user.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "command failed"
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s %s", greenCheck, fmt.Sprintf(format, args...))
}

// logError reports err together with the correlation id of the failed request.
func logError(err error, correlation, msg string) error {
	ev := log.Error().Err(err)
	if correlation != "" {
		ev = ev.Str("correlation_id", correlation)
	}
	ev.Msgf("%s %s", redCross, msg)

	var apiErr client.APIError
	if errors.As(err, &apiErr) && apiErr.CorrelationID != "" && correlation == "" {
		log.Info().Msgf("inspect with: badgebot audit inspect %s", apiErr.CorrelationID)
	}
	if errors.Is(err, client.ErrUnauthorized) {
		log.Info().Msg("your token is missing or expired, run 'badgebot login' again")
	}
	return BeQuietError{}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
