package logging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	assert.Equal(t,
		filepath.Join("botlogs", "bot-controller.20260212_213836.log"),
		LogFilePath("botlogs", "bot-controller", start))
	assert.Equal(t,
		filepath.Join(".", "botlogs", "bot-controller.20260212_213836.log"),
		LogFilePath("./botlogs", "bot-controller", start))
}

func TestNewZerolog_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("bucket", "rig").Msg("influx unreachable")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, `"bucket":"rig"`)
	assert.Contains(t, out, `"level":"warn"`)
}
