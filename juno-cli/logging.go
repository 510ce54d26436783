package junocli

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger writes JSON to stdout; in console mode it switches to zerolog's
// human readable console writer.
func Logger(service Service) zerolog.Logger {
	var logger zerolog.Logger
	if CommonOpts.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.With().
		Timestamp().
		Str("service", service.Name).
		Str("version", service.Version).
		Str("env", CommonOpts.Env).
		Logger()
}
