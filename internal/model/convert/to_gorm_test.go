package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

var now = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func TestCoreToSession(t *testing.T) {
	s := core.NewSession(now, "ctl", "fly", 4)
	m := CoreToSession(*s)

	assert.Equal(t, s.ID.String(), m.ID)
	assert.Len(t, m.ID, 36)
	assert.Equal(t, now, m.StartTime)
	assert.Equal(t, 4, m.WinchCount)
}

func TestCoreToWinchStatus(t *testing.T) {
	r := core.WinchStatusRecord{
		Time:    now,
		WinchID: 3,
		Status: core.WinchStatus{
			CommandCounter: 10,
			TickCounter:    11,
			Sensors: core.WinchSensors{
				Force:    core.ForceMeasurement{Filtered: 1234.5, Counter: 9},
				Position: -400,
				Velocity: 12,
			},
			Motor: core.WinchMotorStatus{PWM: -0.3, PositionError: 2, VelocityError: 1},
		},
	}
	m := CoreToWinchStatus("sess", r)

	assert.Equal(t, "sess", m.SessionID)
	assert.Equal(t, 3, m.WinchID)
	assert.Equal(t, uint32(11), m.TickCounter)
	assert.Equal(t, float32(1234.5), m.ForceFiltered)
	assert.Equal(t, uint32(9), m.ForceCounter)
	assert.Equal(t, int32(-400), m.Position)
	assert.Equal(t, float32(-0.3), m.PWM)
}

func TestCoreToWinchCommand(t *testing.T) {
	m := CoreToWinchCommand("sess", core.WinchCommandRecord{
		Time:    now,
		WinchID: 1,
		Command: core.WinchCommand{Velocity: 0.2, Position: 50, ForceMin: 1, ForceMax: 2, PWMLimit: 0.9},
	})

	assert.Equal(t, 1, m.WinchID)
	assert.Equal(t, float32(0.2), m.Velocity)
	assert.Equal(t, int32(50), m.Position)
	assert.Equal(t, float32(0.9), m.PWMLimit)
}

func TestCoreToDetection(t *testing.T) {
	r := core.DetectionRecord{Time: now, Detections: core.CameraDetectedObjects{
		Frame: 5,
		Objects: []core.CameraDetectedObject{
			{Label: "person", Prob: 0.9, Rect: mgl32.Vec4{0, 0, 1, 1}},
			{Label: "dog", Prob: 0.4, Rect: mgl32.Vec4{1, 1, 2, 2}},
		},
	}}
	m := CoreToDetection("sess", r)

	assert.Equal(t, 2, m.ObjectCount)
	var objs []core.CameraDetectedObject
	require.NoError(t, json.Unmarshal(m.Objects, &objs))
	assert.Equal(t, r.Detections.Objects, objs)

	empty := CoreToDetection("sess", core.DetectionRecord{Time: now})
	assert.Equal(t, "[]", string(empty.Objects))
}

func TestCoreToTrackedRegion(t *testing.T) {
	m := CoreToTrackedRegion("sess", core.TrackedRegionRecord{
		Time:   now,
		Source: "controller",
		Region: core.CameraTrackedRegion{Frame: 8, PSR: 6, Rect: mgl32.Vec4{-1, -2, 3, 4}},
	})

	assert.Equal(t, "controller", m.Source)
	assert.Equal(t, [4]float32{-1, -2, 3, 4}, [4]float32{m.X0, m.Y0, m.X1, m.Y1})
}

func TestCoreToFlyerSensors(t *testing.T) {
	m := CoreToFlyerSensors("sess", core.FlyerSensorRecord{Time: now, Sensors: core.FlyerSensors{Lidar: [4]uint16{1, 2, 3, 4}}})

	var s core.FlyerSensors
	require.NoError(t, json.Unmarshal(m.Sensors, &s))
	assert.Equal(t, [4]uint16{1, 2, 3, 4}, s.Lidar)
}

func TestCoreToConfigSnapshot(t *testing.T) {
	m := CoreToConfigSnapshot("sess", core.ConfigRecord{Time: now, Mode: "normal", Config: json.RawMessage(`{"a":1}`)})
	assert.Equal(t, "normal", m.Mode)
	assert.JSONEq(t, `{"a":1}`, string(m.Config))

	m = CoreToConfigSnapshot("sess", core.ConfigRecord{Time: now})
	assert.Equal(t, "{}", string(m.Config))
}
