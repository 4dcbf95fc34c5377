package logging

import (
	"io"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewZerolog returns a JSON zerolog logger at the level named by level,
// parsed the same way as the slog level.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(zerologLevel(ParseLevel(level))).With().Timestamp().Logger()
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
