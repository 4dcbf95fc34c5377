// Package worker binds inbound message kinds to the controller and forwards
// telemetry to the recording backend.
package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/controller"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/internal/storage"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// ErrBadPayload is wrapped by every handler that cannot decode its event.
var ErrBadPayload = errors.New("bad payload")

// ErrUnknownWinch is returned for status reports from an unconfigured winch.
var ErrUnknownWinch = errors.New("unknown winch")

// Sender delivers commands to the rig.
type Sender interface {
	SendWinch(id int, cmd core.WinchCommand) error
	SendFlyer(kind string, payload any) error
}

// Broadcaster pushes messages to every web UI client.
type Broadcaster interface {
	Broadcast(typ string, payload any)
}

// Dependencies holds all dependencies for the worker manager. Sender and
// Hub may be nil.
type Dependencies struct {
	State  *controller.State
	Config *config.Store
	Sender Sender
	Hub    Broadcaster
	Logger *slog.Logger
	Now    func() time.Time
}

// Manager owns the handlers. Control handlers must be dispatched from the
// bot loop; recording handlers run on dispatcher workers.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	d       *dispatcher.Dispatcher
}

// NewManager creates a new worker manager. A nil backend records nothing.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if backend == nil {
		backend = storage.None{}
	}
	return &Manager{deps: deps, backend: backend}
}

// DBWriteDurationProvider is implemented by backends that batch writes.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns 0 if the backend doesn't batch writes.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// Backend returns the recording backend.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}
