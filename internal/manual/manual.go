// Package manual tracks operator joystick state between control ticks.
package manual

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tucoflyer/botcontrol/internal/config"
)

// Controls holds the latest operator input and the rate-limited velocity
// derived from it. Not safe for concurrent use.
type Controls struct {
	cameraVector  mgl32.Vec2
	cameraActive  bool
	cameraTouched time.Time

	requested mgl32.Vec2
	limited   mgl32.Vec2

	now func() time.Time
}

// New returns controls in the reset state.
func New() *Controls {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injected time source.
func NewWithClock(now func() time.Time) *Controls {
	c := &Controls{now: now}
	c.FullReset()
	return c
}

// SetCameraVector records a camera joystick sample and activates manual
// camera control.
func (c *Controls) SetCameraVector(v mgl32.Vec2) {
	c.cameraVector = v
	c.cameraActive = true
	c.cameraTouched = c.now()
}

// ReleaseCamera hands camera control back to the tracker.
func (c *Controls) ReleaseCamera() {
	c.cameraVector = mgl32.Vec2{}
	c.cameraActive = false
}

// SetVelocity records the requested manual velocity, m/s per axis.
func (c *Controls) SetVelocity(v mgl32.Vec2) {
	c.requested = v
}

// CameraControlActive reports whether the operator currently owns the camera.
func (c *Controls) CameraControlActive() bool {
	return c.cameraActive
}

// CameraVector returns the last camera joystick sample.
func (c *Controls) CameraVector() mgl32.Vec2 {
	return c.cameraVector
}

// CameraVectorInDeadzone reports whether v is too small to count as input.
func CameraVectorInDeadzone(v mgl32.Vec2, cfg *config.Config) bool {
	return v.Len() < cfg.Vision.ManualControlDeadzone
}

// LimitedVelocity is the requested velocity after acceleration and speed limits.
func (c *Controls) LimitedVelocity() mgl32.Vec2 {
	return c.limited
}

// ControlTick advances the limiter by one control tick and expires stale
// camera input.
func (c *Controls) ControlTick(cfg *config.Config) {
	if c.cameraActive {
		timeout := time.Duration(cfg.Vision.ManualControlTimeout * float32(time.Second))
		if c.now().Sub(c.cameraTouched) > timeout {
			c.ReleaseCamera()
		}
	}

	maxV := cfg.Params.ManualMaxVelocity
	var step float32 = -1
	if cfg.Params.ManualAccelRate > 0 && cfg.Params.ControlTickHz > 0 {
		step = cfg.Params.ManualAccelRate / cfg.Params.ControlTickHz
	}

	for axis := range c.limited {
		target := clamp(c.requested[axis], -maxV, maxV)
		if step < 0 {
			c.limited[axis] = target
			continue
		}
		c.limited[axis] += clamp(target-c.limited[axis], -step, step)
	}
}

// FullReset zeroes all latched operator state.
func (c *Controls) FullReset() {
	c.cameraVector = mgl32.Vec2{}
	c.cameraActive = false
	c.cameraTouched = time.Time{}
	c.requested = mgl32.Vec2{}
	c.limited = mgl32.Vec2{}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
