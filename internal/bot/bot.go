// Package bot runs the controller on a single goroutine: inbound events and
// control ticks are handled one at a time, in arrival order.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/controller"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/internal/worker"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tucoflyer/botcontrol/internal/bot"

// DefaultInboxSize is the number of events Submit can queue ahead of the loop.
const DefaultInboxSize = 1024

var (
	// ErrInboxFull is returned by Submit when the loop is behind.
	ErrInboxFull = errors.New("bot inbox full")
	// ErrStopped is returned by Submit after Run has returned.
	ErrStopped = errors.New("bot stopped")
)

// FlyerSender delivers the tracked region to the flyer.
type FlyerSender interface {
	SendFlyer(kind string, payload any) error
}

// Dependencies holds the bot's collaborators. Flyer, Hub and Worker may be nil.
type Dependencies struct {
	State      *controller.State
	Config     *config.Store
	Dispatcher *dispatcher.Dispatcher
	Worker     *worker.Manager
	Flyer      FlyerSender
	Hub        worker.Broadcaster
	Logger     *slog.Logger
	InboxSize  int
}

// Bot serializes every call into the controller.
type Bot struct {
	deps    Dependencies
	inbox   chan dispatcher.Event
	stopped chan struct{}
	running atomic.Bool

	ticks  metric.Int64Counter
	snaps  metric.Int64Counter
	events metric.Int64Counter
	errs   metric.Int64Counter
}

// New validates deps and creates the bot's meters on the global provider.
func New(deps Dependencies) (*Bot, error) {
	if deps.State == nil || deps.Config == nil || deps.Dispatcher == nil {
		return nil, errors.New("bot: state, config and dispatcher are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.InboxSize <= 0 {
		deps.InboxSize = DefaultInboxSize
	}

	b := &Bot{
		deps:    deps,
		inbox:   make(chan dispatcher.Event, deps.InboxSize),
		stopped: make(chan struct{}),
	}

	m := otel.Meter(instrumentationName)
	var err error
	if b.ticks, err = m.Int64Counter("bot.ticks", metric.WithDescription("Control ticks run")); err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	if b.snaps, err = m.Int64Counter("bot.snaps", metric.WithDescription("Tracked region snapped to a detection")); err != nil {
		return nil, fmt.Errorf("creating snap counter: %w", err)
	}
	if b.events, err = m.Int64Counter("bot.events", metric.WithDescription("Inbound events handled")); err != nil {
		return nil, fmt.Errorf("creating event counter: %w", err)
	}
	if b.errs, err = m.Int64Counter("bot.event_errors", metric.WithDescription("Inbound events that failed")); err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}
	return b, nil
}

// Submit queues ev for the loop without blocking. Safe for concurrent use.
func (b *Bot) Submit(ev dispatcher.Event) error {
	select {
	case <-b.stopped:
		return ErrStopped
	default:
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case b.inbox <- ev:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInboxFull, ev.Kind)
	}
}

// Mode is the current mode name, safe for concurrent use.
func (b *Bot) Mode() string {
	return b.deps.Config.Snapshot().Mode.String()
}

// Run owns the controller until ctx is done. Queued events still in the
// inbox at that point are discarded.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("bot: already running")
	}
	defer close(b.stopped)

	cfg := b.deps.Config.Snapshot()
	b.deps.State.ConfigChanged(cfg)
	if b.deps.Worker != nil {
		b.deps.Worker.ConfigIsCurrent(cfg)
	}

	hz := cfg.Params.ControlTickHz
	ticker := time.NewTicker(tickInterval(hz))
	defer ticker.Stop()
	b.deps.Logger.Info("control loop started", "tick_hz", hz, "winches", b.deps.State.WinchCount())

	for {
		select {
		case <-ctx.Done():
			b.deps.Logger.Info("control loop stopped")
			return nil

		case ev := <-b.inbox:
			b.handle(ctx, ev)

		case <-ticker.C:
			cfg := b.Tick()
			// a config update may change the tick rate
			if cfg.Params.ControlTickHz != hz {
				hz = cfg.Params.ControlTickHz
				ticker.Reset(tickInterval(hz))
				b.deps.Logger.Info("control tick rate changed", "tick_hz", hz)
			}
		}
	}
}

// defaultTickHz stands in for a non-positive ControlTickHz.
const defaultTickHz = 60

func tickInterval(hz float32) time.Duration {
	if hz <= 0 {
		hz = defaultTickHz
	}
	return time.Duration(float64(time.Second) / float64(hz))
}

// tickStep is the tracking time step (s) matching tickInterval.
func tickStep(hz float32) float32 {
	if hz <= 0 {
		hz = defaultTickHz
	}
	return 1 / hz
}

func (b *Bot) handle(ctx context.Context, ev dispatcher.Event) {
	b.events.Add(ctx, 1)
	if _, err := b.deps.Dispatcher.Dispatch(ev); err != nil {
		b.errs.Add(ctx, 1)
		b.deps.Logger.Warn("event failed", "kind", ev.Kind, "source", ev.Source, "error", err)
	}
}

// Tick runs one control tick with the current config and returns that
// config. Only the loop goroutine, or a test standing in for it, may call Tick.
func (b *Bot) Tick() *config.Config {
	ctx := context.Background()
	cfg := b.deps.Config.Snapshot()
	state := b.deps.State

	manual := state.Manual.CameraControlActive()
	_, changed := state.TrackingUpdate(cfg, tickStep(cfg.Params.ControlTickHz))
	state.EveryTick(cfg)
	b.ticks.Add(ctx, 1)

	if !changed {
		return cfg
	}
	if !manual {
		b.snaps.Add(ctx, 1)
	}

	region := state.Tracked
	if b.deps.Flyer != nil {
		if err := b.deps.Flyer.SendFlyer(streaming.TypeCameraRegionTracking, region); err != nil {
			b.deps.Logger.Warn("send tracked region failed", "error", err)
		}
	}
	if b.deps.Hub != nil {
		b.deps.Hub.Broadcast(streaming.TypeTrackedRegion, streaming.TrackedRegion{
			Region:    region,
			Particles: state.Particles.Points(),
		})
	}
	if b.deps.Worker != nil {
		b.deps.Worker.RecordTrackedRegion(region)
	}
	return cfg
}
