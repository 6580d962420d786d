package logtrace

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global logger. An empty or unknown level means info.
func InitLogger(level ...string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	lvl := zerolog.InfoLevel
	if len(level) > 0 && level[0] != "" {
		if parsed, err := zerolog.ParseLevel(level[0]); err == nil {
			lvl = parsed
		} else {
			log.Warn().Str("level", level[0]).Msg("unknown log level, using info")
		}
	}
	zerolog.SetGlobalLevel(lvl)
}
