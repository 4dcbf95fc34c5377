package led

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tucoflyer/botcontrol/internal/config"
)

// Frame is one rendered set of winch colors, RGB in 0..1.
type Frame struct {
	Time    time.Time    `json:"time"`
	Winches []mgl32.Vec3 `json:"winches"`
}

// Sink receives rendered frames. Implementations must not block for long.
type Sink interface {
	LightFrame(f Frame)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Frame)

// LightFrame calls f.
func (f SinkFunc) LightFrame(fr Frame) { f(fr) }

// Animator renders LightEnvironment snapshots into smoothed color frames.
// Update may be called from the control loop; Run owns all animation state.
type Animator struct {
	updates chan LightEnvironment
	params  config.AnimationParams
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time

	env    LightEnvironment
	colors []mgl32.Vec3
	start  time.Time
}

// NewAnimator creates an animator that writes to sink. params are the
// starting values; every environment that carries its own rate or filter
// replaces them.
func NewAnimator(params config.AnimationParams, sink Sink, logger *slog.Logger) *Animator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Animator{
		updates: make(chan LightEnvironment, 1),
		params:  params,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Update hands a new environment to the animator without blocking. Only the
// most recent environment is kept if the animator is behind.
func (a *Animator) Update(env LightEnvironment) {
	for {
		select {
		case a.updates <- env:
			return
		default:
		}
		select {
		case <-a.updates:
		default:
		}
	}
}

func frameInterval(rate float32) time.Duration {
	if rate <= 0 {
		rate = 60
	}
	return time.Duration(float64(time.Second) / float64(rate))
}

// setEnv adopts env and any animation params it carries.
func (a *Animator) setEnv(env LightEnvironment) {
	a.env = env
	if env.FrameRateHz > 0 {
		a.params.FrameRateHz = env.FrameRateHz
	}
	if env.FilterRate > 0 {
		a.params.FilterRate = env.FilterRate
	}
}

// Run renders frames at the configured rate until ctx is cancelled. A new
// frame rate takes effect with the environment that carries it.
func (a *Animator) Run(ctx context.Context) error {
	rate := a.params.FrameRateHz
	ticker := time.NewTicker(frameInterval(rate))
	defer ticker.Stop()

	a.start = a.now()
	a.logger.Debug("light animator started", "frameRateHz", rate)

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("light animator stopped")
			return ctx.Err()
		case env := <-a.updates:
			a.setEnv(env)
		case <-ticker.C:
			a.sink.LightFrame(a.Step(a.now()))
		}
		if a.params.FrameRateHz != rate {
			rate = a.params.FrameRateHz
			ticker.Reset(frameInterval(rate))
			a.logger.Debug("light frame rate changed", "frameRateHz", rate)
		}
	}
}

// Params returns the animation params currently in use. Only the Run
// goroutine, or a test standing in for it, may call Params.
func (a *Animator) Params() config.AnimationParams {
	return a.params
}

// Step renders one frame at time t from the latest environment.
func (a *Animator) Step(t time.Time) Frame {
	if a.start.IsZero() {
		a.start = t
	}
	select {
	case env := <-a.updates:
		a.setEnv(env)
	default:
	}

	if len(a.colors) != len(a.env.Winches) {
		a.colors = make([]mgl32.Vec3, len(a.env.Winches))
	}

	filter := a.params.FilterRate
	if filter <= 0 || filter > 1 {
		filter = 1
	}
	elapsed := float32(t.Sub(a.start).Seconds())

	out := make([]mgl32.Vec3, len(a.colors))
	for i, w := range a.env.Winches {
		target := winchColor(&a.env, w, elapsed)
		a.colors[i] = a.colors[i].Add(target.Sub(a.colors[i]).Mul(filter))
		out[i] = a.colors[i]
	}
	return Frame{Time: t, Winches: out}
}

func winchColor(env *LightEnvironment, w WinchLighting, elapsed float32) mgl32.Vec3 {
	cmd := wave(w.CommandPhase, env.WinchWavelength, env.WinchWaveWindowLength, env.WinchWaveExponent)
	mot := wave(w.MotionPhase, env.WinchWavelength, env.WinchWaveWindowLength, env.WinchWaveExponent)

	c := env.WinchCommandColor.Mul(cmd * w.WaveAmplitude).
		Add(env.WinchMotionColor.Mul(mot * w.WaveAmplitude))

	if w.Fault {
		c = c.Add(mgl32.Vec3{1, 1, 1}.Mul(flash(elapsed, env.FlashRateHz, env.FlashExponent)))
	}

	c = c.Mul(env.Brightness)
	for i := range c {
		c[i] = mgl32.Clamp(c[i], 0, 1)
	}
	return c
}

// wave is the intensity of a raised-cosine wave at phase (m), averaged over
// the visible window so longer windows do not read brighter.
func wave(phase, wavelength, window, exponent float32) float32 {
	if wavelength <= 0 {
		return 0
	}
	cos := float32(math.Cos(2 * math.Pi * float64(phase/wavelength)))
	v := float32(math.Pow(float64(0.5+0.5*cos), float64(exponent)))
	if window > wavelength {
		v *= float32(math.Sqrt(float64(wavelength / window)))
	}
	return v
}

func flash(t, rateHz, exponent float32) float32 {
	if rateHz <= 0 {
		return 0
	}
	s := float32(math.Sin(2 * math.Pi * float64(t*rateHz)))
	return float32(math.Pow(float64(0.5+0.5*s), float64(exponent)))
}
