package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved
// startup settings at info level.
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("ClaimLens", GetVersion())

	if logger == nil || config == nil {
		return
	}

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Int("port", config.Server.Port).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("ClaimLens starting")
}
