package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/controller"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/internal/worker"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
)

type message struct {
	kind    string
	payload any
}

type recorder struct {
	mu   sync.Mutex
	msgs []message
}

func (r *recorder) SendFlyer(kind string, payload any) error {
	r.add(kind, payload)
	return nil
}

func (r *recorder) Broadcast(typ string, payload any) { r.add(typ, payload) }

func (r *recorder) add(kind string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{kind, payload})
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.kind
	}
	return out
}

type fixture struct {
	bot   *Bot
	state *controller.State
	store *config.Store
	flyer *recorder
	hub   *recorder
}

func newFixture(t *testing.T, inbox int) *fixture {
	t.Helper()
	store := config.NewStore()
	state := controller.New(store.Snapshot(), nil)
	d, err := dispatcher.New(slog.Default())
	require.NoError(t, err)

	f := &fixture{state: state, store: store, flyer: &recorder{}, hub: &recorder{}}
	w := worker.NewManager(worker.Dependencies{State: state, Config: store, Hub: f.hub}, nil)
	w.RegisterHandlers(d)
	t.Cleanup(d.Close)

	f.bot, err = New(Dependencies{
		State:      state,
		Config:     store,
		Dispatcher: d,
		Worker:     w,
		Flyer:      f.flyer,
		Hub:        f.hub,
		InboxSize:  inbox,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) setNormal(t *testing.T) {
	t.Helper()
	cfg, err := f.store.Update(map[string]any{"mode": map[string]any{"kind": "normal"}})
	require.NoError(t, err)
	f.state.ConfigChanged(cfg)
}

// run starts b and stops it, waiting for Run to return, at test cleanup.
func run(t *testing.T, b *Bot) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func person() core.CameraDetectedObjects {
	return core.CameraDetectedObjects{Frame: 21, Objects: []core.CameraDetectedObject{
		{Rect: mgl32.Vec4{-0.2, -0.2, 0.2, 0.2}, Label: "person", Prob: 0.9},
	}}
}

func TestNew_RequiresCore(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestTick_SnapIsSentAndBroadcast(t *testing.T) {
	f := newFixture(t, 0)
	f.setNormal(t)
	f.state.CameraObjectDetectionUpdate(person())

	f.bot.Tick()

	require.Equal(t, []string{streaming.TypeCameraRegionTracking}, f.flyer.kinds())
	region, ok := f.flyer.msgs[0].payload.(core.CameraTrackedRegion)
	require.True(t, ok)
	assert.Equal(t, uint32(21), region.Frame)
	assert.Equal(t, mgl32.Vec4{-0.2, -0.2, 0.2, 0.2}, region.Rect)

	require.Equal(t, []string{streaming.TypeTrackedRegion}, f.hub.kinds())
	tr, ok := f.hub.msgs[0].payload.(streaming.TrackedRegion)
	require.True(t, ok)
	assert.Len(t, tr.Particles, config.Default().Overlay.ParticleCount)

	// snapped once; nothing pending on the next tick
	f.bot.Tick()
	assert.Len(t, f.flyer.kinds(), 1)
}

func TestTick_HaltedDoesNotSnap(t *testing.T) {
	f := newFixture(t, 0)
	f.state.CameraObjectDetectionUpdate(person())

	f.bot.Tick()

	assert.Empty(t, f.flyer.kinds())
	assert.Empty(t, f.hub.kinds())
}

func TestTick_ManualCameraMovesEveryTick(t *testing.T) {
	f := newFixture(t, 0)
	f.setNormal(t)
	f.state.Manual.SetCameraVector(mgl32.Vec2{1, 0})

	f.bot.Tick()
	f.bot.Tick()

	assert.Len(t, f.flyer.kinds(), 2)
}

func TestRun_HandlesSubmittedEvents(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	require.NoError(t, f.bot.Submit(dispatcher.Event{
		Kind:    streaming.TypeUpdateConfig,
		Payload: json.RawMessage(`{"mode": {"kind": "manual_flyer"}}`),
	}))

	assert.Eventually(t, func() bool { return f.bot.Mode() == "manual_flyer" }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		n := 0
		for _, k := range f.hub.kinds() {
			if k == streaming.TypeConfigIsCurrent {
				n++
			}
		}
		// once at start, once for the update
		return n == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	err := f.bot.Submit(dispatcher.Event{Kind: streaming.TypeManualControl})
	assert.True(t, errors.Is(err, ErrStopped))
}

func TestRun_FailedEventDoesNotStopLoop(t *testing.T) {
	f := newFixture(t, 0)
	run(t, f.bot)

	require.NoError(t, f.bot.Submit(dispatcher.Event{Kind: "no_such_kind"}))
	require.NoError(t, f.bot.Submit(dispatcher.Event{
		Kind:    streaming.TypeUpdateConfig,
		Payload: streaming.ConfigUpdate{"mode": map[string]any{"kind": "normal"}},
	}))

	assert.Eventually(t, func() bool { return f.bot.Mode() == "normal" }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_OnlyOnce(t *testing.T) {
	f := newFixture(t, 0)
	run(t, f.bot)

	assert.Eventually(t, func() bool { return f.bot.running.Load() }, time.Second, 5*time.Millisecond)
	assert.Error(t, f.bot.Run(context.Background()))
}

func TestSubmit_InboxFull(t *testing.T) {
	f := newFixture(t, 1)

	require.NoError(t, f.bot.Submit(dispatcher.Event{Kind: streaming.TypeManualControl}))
	err := f.bot.Submit(dispatcher.Event{Kind: streaming.TypeManualControl})
	assert.True(t, errors.Is(err, ErrInboxFull))
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, tickInterval(100))
	assert.Equal(t, tickInterval(60), tickInterval(0))
}

func TestTickStep(t *testing.T) {
	assert.Equal(t, float32(0.01), tickStep(100))
	assert.Equal(t, tickStep(60), tickStep(0))
	assert.Equal(t, tickStep(60), tickStep(-5))
	assert.False(t, math.IsInf(float64(tickStep(0)), 0))
}
