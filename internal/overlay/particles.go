// Package overlay animates the particle outline drawn around the tracked region.
package overlay

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/vecmath"
)

type particle struct {
	pos mgl32.Vec2
	vel mgl32.Vec2
	t   float32 // fixed position along the rect outline, 0..1
}

// ParticleDrawing is a set of particles pulled by damped springs toward
// evenly spaced points on a rect's outline.
type ParticleDrawing struct {
	particles []particle
}

// New returns an empty drawing; particles are created on the first FollowRect.
func New() *ParticleDrawing {
	return &ParticleDrawing{}
}

func (d *ParticleDrawing) resize(n int, rect mgl32.Vec4) {
	if n < 0 {
		n = 0
	}
	if len(d.particles) == n {
		return
	}
	d.particles = make([]particle, n)
	for i := range d.particles {
		t := float32(i) / float32(n)
		d.particles[i] = particle{pos: vecmath.RectPerimeterPoint(rect, t), t: t}
	}
}

// FollowRect advances every particle by one overlay time step toward rect.
func (d *ParticleDrawing) FollowRect(cfg *config.Config, rect mgl32.Vec4) {
	o := cfg.Overlay
	d.resize(o.ParticleCount, rect)

	dt := o.TimeStep
	for i := range d.particles {
		p := &d.particles[i]
		target := vecmath.RectPerimeterPoint(rect, p.t)
		accel := target.Sub(p.pos).Mul(o.SpringK).Sub(p.vel.Mul(o.Damping))
		p.vel = p.vel.Add(accel.Mul(dt))
		p.pos = p.pos.Add(p.vel.Mul(dt))
	}
}

// Points returns a copy of the particle positions.
func (d *ParticleDrawing) Points() []mgl32.Vec2 {
	out := make([]mgl32.Vec2, len(d.particles))
	for i, p := range d.particles {
		out[i] = p.pos
	}
	return out
}
