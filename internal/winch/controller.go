// Package winch holds the per-winch mechanical state and command generation.
package winch

import (
	"math"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/led"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// Controller owns one winch's mechanical state. It is updated once per status
// report from that winch and never looks at another winch.
type Controller struct {
	id     int
	status MechStatus

	synced     bool
	stallTicks int
	forceKg    float32

	// Commanded velocity (m/s) and the integrated position target (m).
	velocity  float32
	positionM float32

	commandPhase float32
	motionPhase  float32
}

// New creates the controller for winch id.
func New(id int) *Controller {
	return &Controller{id: id, status: NormalStatus()}
}

// ID returns the winch id.
func (c *Controller) ID() int { return c.id }

// MechStatus returns the status derived by the last Update.
func (c *Controller) MechStatus() MechStatus { return c.status }

// Velocity returns the last commanded velocity, m/s.
func (c *Controller) Velocity() float32 { return c.velocity }

// ForceKg returns the last measured cable tension.
func (c *Controller) ForceKg() float32 { return c.forceKg }

// Update folds a status report into the mechanical state.
func (c *Controller) Update(cfg *config.Config, cal *config.WinchCalibration, status *core.WinchStatus) {
	p := &cfg.Params

	c.forceKg = (status.Sensors.Force.Filtered - cal.ForceZeroCount) * cal.KgForcePerCount

	stalled := abs(status.Motor.PWM) >= p.StuckPWM && abs(status.Sensors.Velocity) < p.StuckVelocity
	if stalled {
		c.stallTicks++
	} else {
		c.stallTicks = 0
	}

	switch {
	case p.StuckTicks > 0 && c.stallTicks >= p.StuckTicks:
		c.status = StuckStatus()
	case c.forceKg > p.ForceMaxKg:
		c.status = ForceLimitedStatus(c.forceKg - p.ForceMaxKg)
	case c.forceKg < p.ForceMinKg:
		c.status = ForceLimitedStatus(c.forceKg - p.ForceMinKg)
	default:
		c.status = NormalStatus()
	}

	// The position target follows the encoder until we hold the winch, and
	// whenever it is stuck so the target cannot wind up against the stall.
	if !c.synced || c.status.Kind == Stuck {
		c.positionM = float32(status.Sensors.Position) * cal.MDistPerCount
		c.synced = true
	}

	if p.WinchTickHz > 0 {
		c.motionPhase += status.Sensors.Velocity * cal.MDistPerCount / p.WinchTickHz
	}
}

// VelocityTick applies a safety-checked velocity (m/s) for one winch tick.
func (c *Controller) VelocityTick(cfg *config.Config, cal *config.WinchCalibration, v float32) {
	if c.status.Kind == Stuck {
		v = 0
	}
	c.velocity = v
	if cfg.Params.WinchTickHz > 0 {
		step := v / cfg.Params.WinchTickHz
		c.positionM += step
		c.commandPhase += step
	}
}

// MakeCommand builds the command for the winch from the current state.
func (c *Controller) MakeCommand(cfg *config.Config, cal *config.WinchCalibration, status *core.WinchStatus) core.WinchCommand {
	position := status.Sensors.Position
	if c.synced && cal.MDistPerCount != 0 {
		position = int32(math.Round(float64(c.positionM / cal.MDistPerCount)))
	}

	return core.WinchCommand{
		Velocity: c.velocity,
		Position: position,
		ForceMin: kgToCounts(cfg.Params.ForceMinKg, cal),
		ForceMax: kgToCounts(cfg.Params.ForceMaxKg, cal),
		PWMLimit: cfg.Params.PWMLimit,
	}
}

// LightEnvironment reports this winch's contribution to the lighting.
func (c *Controller) LightEnvironment(cfg *config.Config) led.WinchLighting {
	var amplitude float32
	if maxV := cfg.Params.ManualMaxVelocity; maxV > 0 {
		amplitude = min(abs(c.velocity)/maxV, 1)
	}
	return led.WinchLighting{
		CommandPhase:  c.commandPhase,
		MotionPhase:   c.motionPhase,
		WaveAmplitude: amplitude,
		Fault:         c.status.Kind != Normal,
	}
}

func kgToCounts(kg float32, cal *config.WinchCalibration) float32 {
	if cal.KgForcePerCount == 0 {
		return cal.ForceZeroCount
	}
	return kg/cal.KgForcePerCount + cal.ForceZeroCount
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
