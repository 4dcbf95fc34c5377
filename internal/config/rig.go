package config

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ModeKind names a controller operating mode.
type ModeKind string

const (
	ModeHalted      ModeKind = "halted"
	ModeNormal      ModeKind = "normal"
	ModeManualFlyer ModeKind = "manual_flyer"
	ModeManualWinch ModeKind = "manual_winch"
)

// Mode is the controller operating mode. WinchID is only meaningful for
// ModeManualWinch. Mode values are comparable with ==.
type Mode struct {
	Kind    ModeKind `json:"kind" mapstructure:"kind"`
	WinchID int      `json:"winch_id" mapstructure:"winch_id"`
}

// Halted is the mode with all motion stopped.
func Halted() Mode { return Mode{Kind: ModeHalted} }

// Normal is the automatic tracking mode.
func Normal() Mode { return Mode{Kind: ModeNormal} }

// ManualFlyer drives the flyer from the joystick.
func ManualFlyer() Mode { return Mode{Kind: ModeManualFlyer} }

// ManualWinch drives a single winch from the joystick.
func ManualWinch(id int) Mode { return Mode{Kind: ModeManualWinch, WinchID: id} }

func (m Mode) String() string {
	if m.Kind == ModeManualWinch {
		return fmt.Sprintf("%s(%d)", m.Kind, m.WinchID)
	}
	return string(m.Kind)
}

// Params are the motion limits shared by all winches.
type Params struct {
	ControlTickHz     float32 `json:"control_tick_hz" mapstructure:"control_tick_hz"`
	WinchTickHz       float32 `json:"winch_tick_hz" mapstructure:"winch_tick_hz"`
	ManualMaxVelocity float32 `json:"manual_max_velocity" mapstructure:"manual_max_velocity"`
	ManualAccelRate   float32 `json:"manual_accel_rate" mapstructure:"manual_accel_rate"`
	ForceMinKg        float32 `json:"force_min_kg" mapstructure:"force_min_kg"`
	ForceMaxKg        float32 `json:"force_max_kg" mapstructure:"force_max_kg"`
	StuckPWM          float32 `json:"stuck_pwm" mapstructure:"stuck_pwm"`
	StuckVelocity     float32 `json:"stuck_velocity" mapstructure:"stuck_velocity"`
	StuckTicks        int     `json:"stuck_ticks" mapstructure:"stuck_ticks"`
	PWMLimit          float32 `json:"pwm_limit" mapstructure:"pwm_limit"`
}

// SnapRule lets the tracker snap to objects with this label at or above MinProb.
type SnapRule struct {
	Label   string  `json:"label" mapstructure:"label"`
	MinProb float32 `json:"min_prob" mapstructure:"min_prob"`
}

// Vision holds the tracking thresholds and manual camera gains.
type Vision struct {
	TrackingMinArea             float32    `json:"tracking_min_area" mapstructure:"tracking_min_area"`
	TrackingMaxArea             float32    `json:"tracking_max_area" mapstructure:"tracking_max_area"`
	TrackingDefaultArea         float32    `json:"tracking_default_area" mapstructure:"tracking_default_area"`
	TrackingMinPSR              float32    `json:"tracking_min_psr" mapstructure:"tracking_min_psr"`
	BorderRect                  mgl32.Vec4 `json:"border_rect" mapstructure:"border_rect"`
	ManualControlSpeed          float32    `json:"manual_control_speed" mapstructure:"manual_control_speed"`
	ManualControlRestoringForce float32    `json:"manual_control_restoring_force" mapstructure:"manual_control_restoring_force"`
	ManualControlDeadzone       float32    `json:"manual_control_deadzone" mapstructure:"manual_control_deadzone"`
	ManualControlTimeout        float32    `json:"manual_control_timeout" mapstructure:"manual_control_timeout"`
	SnapTrackedRegionTo         []SnapRule `json:"snap_tracked_region_to" mapstructure:"snap_tracked_region_to"`
}

// WinchLightingParams shape the wave pattern drawn along each cable.
type WinchLightingParams struct {
	WavelengthM       float32    `json:"wavelength_m" mapstructure:"wavelength_m"`
	WaveWindowLengthM float32    `json:"wave_window_length_m" mapstructure:"wave_window_length_m"`
	WaveExponent      float32    `json:"wave_exponent" mapstructure:"wave_exponent"`
	CommandColor      mgl32.Vec3 `json:"command_color" mapstructure:"command_color"`
	MotionColor       mgl32.Vec3 `json:"motion_color" mapstructure:"motion_color"`
}

// LightingScheme is one complete set of lighting parameters.
type LightingScheme struct {
	Brightness    float32             `json:"brightness" mapstructure:"brightness"`
	FlashExponent float32             `json:"flash_exponent" mapstructure:"flash_exponent"`
	FlashRateHz   float32             `json:"flash_rate_hz" mapstructure:"flash_rate_hz"`
	Winch         WinchLightingParams `json:"winch" mapstructure:"winch"`
}

// AnimationParams control the animator's smoothing and frame rate.
type AnimationParams struct {
	FilterRate  float32 `json:"filter_rate" mapstructure:"filter_rate"`
	FrameRateHz float32 `json:"frame_rate_hz" mapstructure:"frame_rate_hz"`
}

// Lighting holds the active scheme and animator settings.
type Lighting struct {
	Current   LightingScheme  `json:"current" mapstructure:"current"`
	Animation AnimationParams `json:"animation" mapstructure:"animation"`
}

// Overlay configures the particle outline drawn around the tracked rect.
type Overlay struct {
	ParticleCount int     `json:"particle_count" mapstructure:"particle_count"`
	SpringK       float32 `json:"spring_k" mapstructure:"spring_k"`
	Damping       float32 `json:"damping" mapstructure:"damping"`
	TimeStep      float32 `json:"time_step" mapstructure:"time_step"`
}

// WinchCalibration converts between encoder/load cell counts and SI units.
type WinchCalibration struct {
	ForceZeroCount  float32 `json:"force_zero_count" mapstructure:"force_zero_count"`
	KgForcePerCount float32 `json:"kg_force_per_count" mapstructure:"kg_force_per_count"`
	MDistPerCount   float32 `json:"m_dist_per_count" mapstructure:"m_dist_per_count"`
}

// WinchConfig is the per-winch section of the rig config.
type WinchConfig struct {
	Calibration WinchCalibration `json:"calibration" mapstructure:"calibration"`
}

// Config is one immutable snapshot of the rig configuration. Holders must
// treat it as read-only; Store.Update publishes a new value instead.
type Config struct {
	Mode     Mode          `json:"mode" mapstructure:"mode"`
	Params   Params        `json:"params" mapstructure:"params"`
	Vision   Vision        `json:"vision" mapstructure:"vision"`
	Lighting Lighting      `json:"lighting" mapstructure:"lighting"`
	Overlay  Overlay       `json:"overlay" mapstructure:"overlay"`
	Winches  []WinchConfig `json:"winches" mapstructure:"winches"`
}

// Default returns the built-in rig configuration for four winches.
func Default() *Config {
	winches := make([]WinchConfig, len(DefaultTopology().Winches))
	for i := range winches {
		winches[i] = WinchConfig{Calibration: WinchCalibration{
			ForceZeroCount:  0,
			KgForcePerCount: 0.001,
			MDistPerCount:   0.0001,
		}}
	}

	return &Config{
		Mode: Halted(),
		Params: Params{
			ControlTickHz:     60,
			WinchTickHz:       250,
			ManualMaxVelocity: 1.0,
			ManualAccelRate:   2.0,
			ForceMinKg:        0.5,
			ForceMaxKg:        12.0,
			StuckPWM:          0.95,
			StuckVelocity:     5,
			StuckTicks:        50,
			PWMLimit:          0.9,
		},
		Vision: Vision{
			TrackingMinArea:             0.0025,
			TrackingMaxArea:             0.5,
			TrackingDefaultArea:         0.04,
			TrackingMinPSR:              5.0,
			BorderRect:                  mgl32.Vec4{-1, -1, 1, 1},
			ManualControlSpeed:          0.8,
			ManualControlRestoringForce: 0.05,
			ManualControlDeadzone:       0.1,
			ManualControlTimeout:        0.5,
			SnapTrackedRegionTo: []SnapRule{
				{Label: "person", MinProb: 0.3},
			},
		},
		Lighting: Lighting{
			Current: LightingScheme{
				Brightness:    0.6,
				FlashExponent: 8,
				FlashRateHz:   2,
				Winch: WinchLightingParams{
					WavelengthM:       0.5,
					WaveWindowLengthM: 1.5,
					WaveExponent:      2,
					CommandColor:      mgl32.Vec3{0.1, 0.4, 1.0},
					MotionColor:       mgl32.Vec3{1.0, 0.6, 0.1},
				},
			},
			Animation: AnimationParams{
				FilterRate:  0.2,
				FrameRateHz: 60,
			},
		},
		Overlay: Overlay{
			ParticleCount: 64,
			SpringK:       40,
			Damping:       8,
			TimeStep:      1.0 / 60,
		},
		Winches: winches,
	}
}

// Validate checks the cross-field constraints the controller relies on.
func (c *Config) Validate() error {
	if len(c.Winches) == 0 {
		return fmt.Errorf("%w: no winches configured", ErrInvalidConfig)
	}
	switch c.Mode.Kind {
	case ModeHalted, ModeNormal, ModeManualFlyer:
	case ModeManualWinch:
		if c.Mode.WinchID < 0 || c.Mode.WinchID >= len(c.Winches) {
			return fmt.Errorf("%w: manual winch %d out of range", ErrInvalidConfig, c.Mode.WinchID)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode.Kind)
	}
	if c.Params.ControlTickHz <= 0 || c.Params.WinchTickHz <= 0 {
		return fmt.Errorf("%w: tick rates must be positive", ErrInvalidConfig)
	}
	if c.Params.ForceMinKg > c.Params.ForceMaxKg {
		return fmt.Errorf("%w: force_min_kg above force_max_kg", ErrInvalidConfig)
	}
	v := c.Vision
	if v.TrackingMinArea > v.TrackingMaxArea {
		return fmt.Errorf("%w: tracking_min_area above tracking_max_area", ErrInvalidConfig)
	}
	if v.TrackingDefaultArea < 0 {
		return fmt.Errorf("%w: negative tracking_default_area", ErrInvalidConfig)
	}
	if v.BorderRect[0] >= v.BorderRect[2] || v.BorderRect[1] >= v.BorderRect[3] {
		return fmt.Errorf("%w: border_rect %v is empty", ErrInvalidConfig, v.BorderRect)
	}
	for i, w := range c.Winches {
		if w.Calibration.MDistPerCount == 0 || w.Calibration.KgForcePerCount == 0 {
			return fmt.Errorf("%w: winch %d calibration has a zero scale", ErrInvalidConfig, i)
		}
	}
	return nil
}
