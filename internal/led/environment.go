// Package led derives per-winch light colors from the controller's state.
package led

import "github.com/go-gl/mathgl/mgl32"

// WinchLighting is one winch's contribution to the light show.
type WinchLighting struct {
	// Distance (m) the commanded and measured cable positions have travelled,
	// used as the phase of the traveling wave.
	CommandPhase float32 `json:"command_phase"`
	MotionPhase  float32 `json:"motion_phase"`

	WaveAmplitude float32 `json:"wave_amplitude"` // 0..1
	Fault         bool    `json:"fault"`          // winch is stuck or force limited
}

// LightEnvironment is a complete, immutable input to the animator. It is
// rebuilt from scratch on every lighting tick.
type LightEnvironment struct {
	Winches               []WinchLighting `json:"winches"`
	WinchWavelength       float32         `json:"winch_wavelength"`
	WinchWaveWindowLength float32         `json:"winch_wave_window_length"`
	WinchWaveExponent     float32         `json:"winch_wave_exponent"`
	WinchCommandColor     mgl32.Vec3      `json:"winch_command_color"`
	WinchMotionColor      mgl32.Vec3      `json:"winch_motion_color"`
	FlashExponent         float32         `json:"flash_exponent"`
	FlashRateHz           float32         `json:"flash_rate_hz"`
	Brightness            float32         `json:"brightness"`

	// Animation rate and smoothing; zero keeps the animator's current value.
	FilterRate  float32 `json:"filter_rate"`
	FrameRateHz float32 `json:"frame_rate_hz"`
}
