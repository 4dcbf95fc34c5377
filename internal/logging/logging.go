// Package logging builds the process slog logger and the zerolog logger
// used by the influx recorder.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath returns <logsDir>/<prefix>.<start>.log.
func LogFilePath(logsDir, prefix string, start time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", prefix, start.Format("20060102_150405")),
	)
}
