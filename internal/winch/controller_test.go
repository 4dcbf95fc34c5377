package winch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

func testConfig() (*config.Config, *config.WinchCalibration) {
	cfg := config.Default()
	cfg.Params.ForceMinKg = 0.5
	cfg.Params.ForceMaxKg = 10
	cfg.Params.StuckPWM = 0.9
	cfg.Params.StuckVelocity = 5
	cfg.Params.StuckTicks = 3
	cfg.Params.WinchTickHz = 100
	cal := &config.WinchCalibration{ForceZeroCount: 100, KgForcePerCount: 0.01, MDistPerCount: 0.001}
	return cfg, cal
}

// statusWithForce returns a healthy status whose tension is kg.
func statusWithForce(kg float32) *core.WinchStatus {
	return &core.WinchStatus{
		Sensors: core.WinchSensors{
			Force:    core.ForceMeasurement{Filtered: 100 + kg/0.01},
			Position: 2000,
		},
	}
}

func TestUpdate_NormalWithinForceBand(t *testing.T) {
	cfg, cal := testConfig()
	c := New(0)

	c.Update(cfg, cal, statusWithForce(2))
	assert.Equal(t, NormalStatus(), c.MechStatus())
	assert.InDelta(t, 2, c.ForceKg(), 1e-4)
}

func TestUpdate_ForceLimitedSign(t *testing.T) {
	cfg, cal := testConfig()
	c := New(0)

	c.Update(cfg, cal, statusWithForce(12))
	require.Equal(t, ForceLimited, c.MechStatus().Kind)
	assert.InDelta(t, 2, c.MechStatus().Force, 1e-3)

	c.Update(cfg, cal, statusWithForce(0.2))
	require.Equal(t, ForceLimited, c.MechStatus().Kind)
	assert.InDelta(t, -0.3, c.MechStatus().Force, 1e-3)
}

func TestUpdate_StuckAfterConsecutiveStalls(t *testing.T) {
	cfg, cal := testConfig()
	c := New(0)

	stalled := statusWithForce(2)
	stalled.Motor.PWM = -0.95
	stalled.Sensors.Velocity = 1

	c.Update(cfg, cal, stalled)
	c.Update(cfg, cal, stalled)
	assert.Equal(t, Normal, c.MechStatus().Kind)

	c.Update(cfg, cal, stalled)
	assert.Equal(t, Stuck, c.MechStatus().Kind)

	// moving again clears the stall
	moving := statusWithForce(2)
	moving.Motor.PWM = 0.95
	moving.Sensors.Velocity = 50
	c.Update(cfg, cal, moving)
	assert.Equal(t, Normal, c.MechStatus().Kind)
}

func TestInterlock(t *testing.T) {
	tests := []struct {
		name   string
		status MechStatus
		in     float32
		want   float32
	}{
		{"normal passes positive", NormalStatus(), 0.4, 0.4},
		{"normal passes negative", NormalStatus(), -0.4, -0.4},
		{"stuck zeroes", StuckStatus(), 0.4, 0},
		{"stuck zeroes negative", StuckStatus(), -0.4, 0},
		{"over max allows payout", ForceLimitedStatus(1), -0.4, -0.4},
		{"over max blocks reel in", ForceLimitedStatus(1), 0.4, 0},
		{"slack allows reel in", ForceLimitedStatus(-1), 0.4, 0.4},
		{"slack blocks payout", ForceLimitedStatus(-1), -0.4, 0},
		{"limited zero request", ForceLimitedStatus(1), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Interlock(tt.in))
		})
	}
}

func TestVelocityTick_IntegratesPositionTarget(t *testing.T) {
	cfg, cal := testConfig()
	c := New(1)
	status := statusWithForce(2)

	c.Update(cfg, cal, status)
	cmd := c.MakeCommand(cfg, cal, status)
	assert.Equal(t, int32(2000), cmd.Position)

	for i := 0; i < 10; i++ {
		c.VelocityTick(cfg, cal, 0.5)
	}
	cmd = c.MakeCommand(cfg, cal, status)
	assert.Equal(t, float32(0.5), cmd.Velocity)
	// 10 ticks at 0.5 m/s and 100 Hz is 50 mm, 50 counts
	assert.Equal(t, int32(2050), cmd.Position)
	assert.InDelta(t, kgToCounts(0.5, cal), cmd.ForceMin, 1e-3)
	assert.InDelta(t, 1100, cmd.ForceMax, 1e-3)
	assert.Equal(t, cfg.Params.PWMLimit, cmd.PWMLimit)
}

func TestVelocityTick_StuckCommandsZero(t *testing.T) {
	cfg, cal := testConfig()
	cfg.Params.StuckTicks = 1
	c := New(0)

	stalled := statusWithForce(2)
	stalled.Motor.PWM = 1
	c.Update(cfg, cal, stalled)
	require.Equal(t, Stuck, c.MechStatus().Kind)

	c.VelocityTick(cfg, cal, 0.7)
	cmd := c.MakeCommand(cfg, cal, stalled)
	assert.Equal(t, float32(0), cmd.Velocity)
	assert.Equal(t, stalled.Sensors.Position, cmd.Position)
}

func TestLightEnvironment(t *testing.T) {
	cfg, cal := testConfig()
	cfg.Params.ManualMaxVelocity = 2
	c := New(0)

	c.Update(cfg, cal, statusWithForce(2))
	c.VelocityTick(cfg, cal, 1)
	l := c.LightEnvironment(cfg)
	assert.InDelta(t, 0.5, l.WaveAmplitude, 1e-6)
	assert.InDelta(t, 0.01, l.CommandPhase, 1e-6)
	assert.False(t, l.Fault)

	c.VelocityTick(cfg, cal, -5)
	assert.Equal(t, float32(1), c.LightEnvironment(cfg).WaveAmplitude)

	c.Update(cfg, cal, statusWithForce(50))
	assert.True(t, c.LightEnvironment(cfg).Fault)
}

func TestMechStatus_String(t *testing.T) {
	assert.Equal(t, "normal", NormalStatus().String())
	assert.Equal(t, "stuck", StuckStatus().String())
	assert.Equal(t, "force_limited(1.500)", ForceLimitedStatus(1.5).String())
}
