package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root service logger. Level comes from the
// FIS_LOG_LEVEL environment variable and defaults to info; unknown
// values also fall back to info rather than failing startup.
func NewLogger(component string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("FIS_LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
