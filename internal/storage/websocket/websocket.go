// Package websocket streams telemetry as JSON envelopes to a remote dashboard.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
)

// Backend relays every record as it arrives. Only start_session waits for an
// ack; everything else is fire-and-forget.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "relay")),
		cfg:  cfg,
	}
}

// Init connects to the relay.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the relay.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped is the number of messages lost to a full send buffer.
func (b *Backend) Dropped() int64 {
	return b.conn.dropped.Load()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession announces the session and waits for the relay to ack it.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, s)
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.sessionMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

func (b *Backend) RecordWinchStatus(r *core.WinchStatusRecord) error {
	return b.sendEnvelope(streaming.TypeWinchStatus, r)
}

func (b *Backend) RecordWinchCommand(r *core.WinchCommandRecord) error {
	return b.sendEnvelope(streaming.TypeWinchCommand, r)
}

func (b *Backend) RecordDetections(r *core.DetectionRecord) error {
	return b.sendEnvelope(streaming.TypeCameraObjectDetection, r)
}

func (b *Backend) RecordTrackedRegion(r *core.TrackedRegionRecord) error {
	return b.sendEnvelope(streaming.TypeTrackedRegion, r)
}

func (b *Backend) RecordFlyerSensors(r *core.FlyerSensorRecord) error {
	return b.sendEnvelope(streaming.TypeFlyerSensors, r)
}

func (b *Backend) RecordConfig(r *core.ConfigRecord) error {
	return b.sendEnvelope(streaming.TypeConfigIsCurrent, r)
}
