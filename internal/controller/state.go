// Package controller is the per-tick decision logic of the rig: it arbitrates
// between operator input and computer vision for the tracked region, gates
// every winch command through its mechanical interlock, and derives the
// lighting environment.
//
// State is not safe for concurrent use. The caller serializes every entry
// point onto a single goroutine.
package controller

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/led"
	"github.com/tucoflyer/botcontrol/internal/manual"
	"github.com/tucoflyer/botcontrol/internal/overlay"
	"github.com/tucoflyer/botcontrol/internal/vecmath"
	"github.com/tucoflyer/botcontrol/internal/winch"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// DetectionMaxAge is how old a detection batch may be and still be snapped to.
const DetectionMaxAge = 500 * time.Millisecond

// Lights receives the lighting environment once per tick. Update must not block.
type Lights interface {
	Update(env led.LightEnvironment)
}

// Detections is the latest detector batch and when it arrived.
type Detections struct {
	Received time.Time
	Objects  core.CameraDetectedObjects
}

// State holds everything the controller knows between ticks.
type State struct {
	Manual    *manual.Controls
	Tracked   core.CameraTrackedRegion
	Detected  Detections
	Particles *overlay.ParticleDrawing

	lights       Lights
	winches      []*winch.Controller
	flyerSensors *core.FlyerSensors
	pendingSnap  bool
	lastMode     config.Mode

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a State.
type Option func(*State)

// WithClock replaces time.Now, for staleness checks and manual timeouts.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		s.now = now
	}
}

// WithLogger sets the logger used for mode changes and snaps.
func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		s.logger = l
	}
}

// New builds the controller for cfg, with one winch controller per
// configured winch.
func New(cfg *config.Config, lights Lights, opts ...Option) *State {
	s := &State{
		lights:   lights,
		now:      time.Now,
		logger:   slog.Default(),
		lastMode: cfg.Mode,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Manual = manual.NewWithClock(s.now)
	s.Particles = overlay.New()
	s.Detected = Detections{Received: s.now()}
	s.winches = make([]*winch.Controller, len(cfg.Winches))
	for id := range cfg.Winches {
		s.winches[id] = winch.New(id)
	}
	return s
}

// ConfigChanged must be called with every new config snapshot. A change of
// mode halts all manual motion exactly once.
func (s *State) ConfigChanged(cfg *config.Config) {
	if cfg.Mode != s.lastMode {
		s.logger.Info("mode changed", "from", s.lastMode.String(), "to", cfg.Mode.String())
		s.haltMotion()
		s.lastMode = cfg.Mode
	}
}

func (s *State) haltMotion() {
	s.Manual.FullReset()
}

// EveryTick advances manual timing, pushes lighting and moves the overlay.
// Lighting is taken before this tick's winch commands, so it shows the last
// known mechanical state.
func (s *State) EveryTick(cfg *config.Config) {
	s.Manual.ControlTick(cfg)
	s.lightingTick(cfg)
	s.Particles.FollowRect(cfg, s.Tracked.Rect)
}

func (s *State) lightingTick(cfg *config.Config) {
	if s.lights == nil {
		return
	}
	s.lights.Update(s.LightEnvironment(cfg))
}

func defaultTrackingRect(cfg *config.Config) mgl32.Vec4 {
	side := float32(math.Sqrt(float64(cfg.Vision.TrackingDefaultArea)))
	return vecmath.RectCenteredOnOrigin(side, side)
}

// TrackingUpdate moves the tracked region for one time step. Manual camera
// control wins over vision; vision only snaps to fresh, qualifying objects.
// It returns the new rect and true if the region changed.
func (s *State) TrackingUpdate(cfg *config.Config, timeStep float32) (mgl32.Vec4, bool) {
	if s.Manual.CameraControlActive() {
		vec := s.Manual.CameraVector()
		if manual.CameraVectorInDeadzone(vec, cfg) {
			vec = mgl32.Vec2{}
		}
		velocity := vecmath.Vec2Mul(vec, mgl32.Vec2{1, -1}.Mul(cfg.Vision.ManualControlSpeed))
		center := vecmath.RectCenter(s.Tracked.Rect)
		velocity = velocity.Add(center.Mul(-cfg.Vision.ManualControlRestoringForce))
		center = center.Add(velocity.Mul(timeStep))

		s.Tracked.Rect = vecmath.RectTranslate(defaultTrackingRect(cfg), center)
		s.Tracked.Rect = vecmath.RectConstrain(s.Tracked.Rect, cfg.Vision.BorderRect)
		return s.Tracked.Rect, true
	}

	if obj, ok := s.findBestSnapObject(cfg); ok {
		s.pendingSnap = false
		s.Tracked.Rect = vecmath.RectConstrain(obj.Rect, cfg.Vision.BorderRect)
		s.Tracked.Frame = s.Detected.Objects.Frame
		s.logger.Debug("snapped to object", "label", obj.Label, "prob", obj.Prob, "frame", s.Tracked.Frame)
		return s.Tracked.Rect, true
	}

	return mgl32.Vec4{}, false
}

func (s *State) findBestSnapObject(cfg *config.Config) (core.CameraDetectedObject, bool) {
	if !s.pendingSnap {
		return core.CameraDetectedObject{}, false
	}
	if s.now().Sub(s.Detected.Received) > DetectionMaxAge {
		return core.CameraDetectedObject{}, false
	}
	if cfg.Mode.Kind == config.ModeHalted {
		return core.CameraDetectedObject{}, false
	}

	var best *core.CameraDetectedObject
	objects := s.Detected.Objects.Objects
	for i := range objects {
		obj := &objects[i]
		area := vecmath.RectArea(obj.Rect)
		if area < cfg.Vision.TrackingMinArea || area > cfg.Vision.TrackingMaxArea {
			continue
		}
		for _, rule := range cfg.Vision.SnapTrackedRegionTo {
			if obj.Label == rule.Label && obj.Prob >= rule.MinProb {
				if best == nil || obj.Prob > best.Prob {
					best = obj
				}
				break
			}
		}
	}

	if best == nil {
		return core.CameraDetectedObject{}, false
	}
	return *best, true
}

// CameraObjectDetectionUpdate stores a detector batch and marks it for
// snapping on the next tracking update.
func (s *State) CameraObjectDetectionUpdate(det core.CameraDetectedObjects) {
	s.Detected = Detections{Received: s.now(), Objects: det}
	s.pendingSnap = true
}

// CameraRegionTrackingUpdate adopts a region from the remote tracker unless
// the operator has the camera.
func (s *State) CameraRegionTrackingUpdate(tr core.CameraTrackedRegion) {
	if !s.Manual.CameraControlActive() {
		s.Tracked = tr
	}
}

// FlyerSensorUpdate keeps the latest flyer telemetry.
func (s *State) FlyerSensorUpdate(sensors core.FlyerSensors) {
	s.flyerSensors = &sensors
}

// FlyerSensors returns the latest flyer telemetry, if any has arrived.
func (s *State) FlyerSensors() (core.FlyerSensors, bool) {
	if s.flyerSensors == nil {
		return core.FlyerSensors{}, false
	}
	return *s.flyerSensors, true
}

// PendingSnap reports whether a detection batch is waiting to be snapped to.
func (s *State) PendingSnap() bool {
	return s.pendingSnap
}

// WinchCount is the number of winch controllers.
func (s *State) WinchCount() int {
	return len(s.winches)
}

// MechStatus returns the mechanical status of winch id.
func (s *State) MechStatus(id int) winch.MechStatus {
	return s.winch(id).MechStatus()
}

func (s *State) winch(id int) *winch.Controller {
	if id < 0 || id >= len(s.winches) {
		panic(fmt.Sprintf("controller: winch id %d out of range [0,%d)", id, len(s.winches)))
	}
	return s.winches[id]
}

// WinchControlLoop handles one status report from winch id and returns the
// command to send back. An id outside the configured winches panics.
func (s *State) WinchControlLoop(cfg *config.Config, id int, status core.WinchStatus) core.WinchCommand {
	w := s.winch(id)
	cal := &cfg.Winches[id].Calibration
	w.Update(cfg, cal, &status)

	var velocity float32
	if cfg.Mode.Kind == config.ModeManualWinch && cfg.Mode.WinchID == id {
		velocity = s.Manual.LimitedVelocity()[1]
	}
	velocity = w.MechStatus().Interlock(velocity)

	w.VelocityTick(cfg, cal, velocity)
	return w.MakeCommand(cfg, cal, &status)
}

// LightEnvironment collects every winch's light state and the global lighting
// and animation parameters from cfg. It keeps no state of its own.
func (s *State) LightEnvironment(cfg *config.Config) led.LightEnvironment {
	winches := make([]led.WinchLighting, len(s.winches))
	for i, w := range s.winches {
		winches[i] = w.LightEnvironment(cfg)
	}

	cur := &cfg.Lighting.Current
	anim := &cfg.Lighting.Animation
	return led.LightEnvironment{
		Winches:               winches,
		WinchWavelength:       cur.Winch.WavelengthM,
		WinchWaveWindowLength: cur.Winch.WaveWindowLengthM,
		WinchWaveExponent:     cur.Winch.WaveExponent,
		WinchCommandColor:     cur.Winch.CommandColor,
		WinchMotionColor:      cur.Winch.MotionColor,
		FlashExponent:         cur.FlashExponent,
		FlashRateHz:           cur.FlashRateHz,
		Brightness:            cur.Brightness,
		FilterRate:            anim.FilterRate,
		FrameRateHz:           anim.FrameRateHz,
	}
}
