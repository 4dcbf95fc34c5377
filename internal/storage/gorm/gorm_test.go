package gormstorage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucoflyer/botcontrol/internal/database"
	"github.com/tucoflyer/botcontrol/internal/model"
	"github.com/tucoflyer/botcontrol/internal/storage"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T, limit int) *Backend {
	t.Helper()
	db, err := database.OpenSQLite("")
	require.NoError(t, err)

	b := New(Dependencies{DB: db, FlushInterval: time.Hour, QueueLimit: limit})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestInit_RequiresDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestStartSession_InsertsRow(t *testing.T) {
	b := newTestBackend(t, 0)
	s := core.NewSession(time.Now().UTC(), "ctl", "fly", 4)

	require.NoError(t, b.StartSession(s))

	var row model.Session
	require.NoError(t, b.DB().First(&row, "id = ?", s.ID.String()).Error)
	assert.Equal(t, "ctl", row.Controller)
	assert.Equal(t, 4, row.WinchCount)
}

func TestRecords_QueuedUntilFlush(t *testing.T) {
	b := newTestBackend(t, 0)
	s := core.NewSession(time.Now().UTC(), "ctl", "fly", 4)
	require.NoError(t, b.StartSession(s))

	now := time.Now().UTC()
	require.NoError(t, b.RecordWinchStatus(&core.WinchStatusRecord{Time: now, WinchID: 1}))
	require.NoError(t, b.RecordWinchStatus(&core.WinchStatusRecord{Time: now, WinchID: 2}))
	require.NoError(t, b.RecordWinchCommand(&core.WinchCommandRecord{Time: now, WinchID: 2, Command: core.WinchCommand{Velocity: 0.4}}))
	require.NoError(t, b.RecordDetections(&core.DetectionRecord{Time: now, Detections: core.CameraDetectedObjects{
		Objects: []core.CameraDetectedObject{{Label: "person", Prob: 0.8, Rect: mgl32.Vec4{0, 0, 1, 1}}},
	}}))
	require.NoError(t, b.RecordTrackedRegion(&core.TrackedRegionRecord{Time: now, Source: "tracker"}))
	require.NoError(t, b.RecordFlyerSensors(&core.FlyerSensorRecord{Time: now}))
	require.NoError(t, b.RecordConfig(&core.ConfigRecord{Time: now, Mode: "normal", Config: json.RawMessage(`{"mode":{"kind":"normal"}}`)}))

	var n int64
	require.NoError(t, b.DB().Model(&model.WinchStatus{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, 2, b.queues.WinchStatuses.Len())

	b.Flush()
	assert.True(t, b.queues.WinchStatuses.Empty())

	counts := map[any]int64{
		&model.WinchStatus{}:    2,
		&model.WinchCommand{}:   1,
		&model.Detection{}:      1,
		&model.TrackedRegion{}:  1,
		&model.FlyerSensors{}:   1,
		&model.ConfigSnapshot{}: 1,
	}
	for m, want := range counts {
		var got int64
		require.NoError(t, b.DB().Model(m).Where("session_id = ?", s.ID.String()).Count(&got).Error)
		assert.Equal(t, want, got, "%T", m)
	}

	var cmd model.WinchCommand
	require.NoError(t, b.DB().First(&cmd).Error)
	assert.Equal(t, float32(0.4), cmd.Velocity)

	var det model.Detection
	require.NoError(t, b.DB().First(&det).Error)
	assert.Equal(t, 1, det.ObjectCount)
}

func TestClose_FlushesQueues(t *testing.T) {
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordWinchStatus(&core.WinchStatusRecord{Time: time.Now()}))
	require.NoError(t, b.Close())

	var n int64
	require.NoError(t, db.Model(&model.WinchStatus{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestQueueLimit_DropsOldest(t *testing.T) {
	b := newTestBackend(t, 2)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordWinchStatus(&core.WinchStatusRecord{WinchID: i}))
	}
	assert.Equal(t, int64(3), b.Dropped())

	b.Flush()
	var rows []model.WinchStatus
	require.NoError(t, b.DB().Order("winch_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].WinchID)
	assert.Equal(t, 4, rows[1].WinchID)
}
