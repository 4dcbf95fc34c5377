// internal/storage/storage_test.go
package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tucoflyer/botcontrol/internal/storage"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

func TestNoneAcceptsEverything(t *testing.T) {
	var b storage.Backend = storage.None{}
	now := time.Now()

	assert.NoError(t, b.Init())
	assert.NoError(t, b.StartSession(core.NewSession(now, "c", "f", 4)))
	assert.NoError(t, b.RecordWinchStatus(&core.WinchStatusRecord{Time: now}))
	assert.NoError(t, b.RecordWinchCommand(&core.WinchCommandRecord{Time: now}))
	assert.NoError(t, b.RecordDetections(&core.DetectionRecord{Time: now}))
	assert.NoError(t, b.RecordTrackedRegion(&core.TrackedRegionRecord{Time: now}))
	assert.NoError(t, b.RecordFlyerSensors(&core.FlyerSensorRecord{Time: now}))
	assert.NoError(t, b.RecordConfig(&core.ConfigRecord{Time: now}))
	assert.NoError(t, b.Close())

	_, ok := b.(storage.Exporter)
	assert.False(t, ok)
}
