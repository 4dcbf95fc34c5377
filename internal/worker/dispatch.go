package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
)

// Recording kinds, handled off the control loop.
const (
	RecordWinchStatus   = "record:" + streaming.TypeWinchStatus
	RecordWinchCommand  = "record:" + streaming.TypeWinchCommand
	RecordDetections    = "record:" + streaming.TypeCameraObjectDetection
	RecordTrackedRegion = "record:" + streaming.TypeTrackedRegion
	RecordFlyerSensors  = "record:" + streaming.TypeFlyerSensors
	RecordConfig        = "record:" + streaming.TypeConfigIsCurrent
)

// recordBuffer is the queue depth of each recording kind.
const recordBuffer = 1000

// Source names the controller as the origin of a tracked region.
const SourceController = "controller"

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.d = d

	// Control path - sync, called from the bot loop
	d.Register(streaming.TypeWinchStatus, m.handleWinchStatus)
	d.Register(streaming.TypeCameraObjectDetection, m.handleObjectDetection, dispatcher.Logged())
	d.Register(streaming.TypeCameraRegionTracking, m.handleRegionTracking, dispatcher.Logged())
	d.Register(streaming.TypeFlyerSensors, m.handleFlyerSensors)
	d.Register(streaming.TypeUpdateConfig, m.handleUpdateConfig, dispatcher.Logged())
	d.Register(streaming.TypeManualControl, m.handleManualControl)

	// Recording - buffered
	d.Register(RecordWinchStatus, m.recordHandler(func(p any) error {
		r, ok := p.(*core.WinchStatusRecord)
		if !ok {
			return badRecord(p)
		}
		return m.backend.RecordWinchStatus(r)
	}), dispatcher.Buffered(recordBuffer), dispatcher.Logged())
	d.Register(RecordWinchCommand, m.recordHandler(func(p any) error {
		r, ok := p.(*core.WinchCommandRecord)
		if !ok {
			return badRecord(p)
		}
		return m.backend.RecordWinchCommand(r)
	}), dispatcher.Buffered(recordBuffer), dispatcher.Logged())
	d.Register(RecordDetections, m.recordHandler(func(p any) error {
		r, ok := p.(*core.DetectionRecord)
		if !ok {
			return badRecord(p)
		}
		return m.backend.RecordDetections(r)
	}), dispatcher.Buffered(recordBuffer), dispatcher.Logged())
	d.Register(RecordTrackedRegion, m.recordHandler(func(p any) error {
		r, ok := p.(*core.TrackedRegionRecord)
		if !ok {
			return badRecord(p)
		}
		return m.backend.RecordTrackedRegion(r)
	}), dispatcher.Buffered(recordBuffer), dispatcher.Logged())
	d.Register(RecordFlyerSensors, m.recordHandler(func(p any) error {
		r, ok := p.(*core.FlyerSensorRecord)
		if !ok {
			return badRecord(p)
		}
		return m.backend.RecordFlyerSensors(r)
	}), dispatcher.Buffered(recordBuffer), dispatcher.Logged())
	d.Register(RecordConfig, m.recordHandler(func(p any) error {
		r, ok := p.(*core.ConfigRecord)
		if !ok {
			return badRecord(p)
		}
		return m.backend.RecordConfig(r)
	}), dispatcher.Buffered(recordBuffer), dispatcher.Logged())
}

func (m *Manager) recordHandler(fn func(any) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		return nil, fn(e.Payload)
	}
}

func badRecord(p any) error {
	return fmt.Errorf("%w: record of type %T", ErrBadPayload, p)
}

// record queues payload for the backend. A full queue is counted by the
// dispatcher and otherwise ignored.
func (m *Manager) record(kind string, payload any) {
	if m.d == nil {
		return
	}
	_, err := m.d.Dispatch(dispatcher.Event{Kind: kind, Source: SourceController, Payload: payload})
	if err != nil && !errors.Is(err, dispatcher.ErrQueueFull) {
		m.deps.Logger.Warn("record failed", "kind", kind, "error", err)
	}
}

// decode accepts a typed payload, a pointer to one, or raw JSON.
func decode[T any](e dispatcher.Event) (T, error) {
	var out T
	switch p := e.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	case json.RawMessage:
		if err := json.Unmarshal(p, &out); err != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrBadPayload, e.Kind, err)
		}
		return out, nil
	case []byte:
		if err := json.Unmarshal(p, &out); err != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrBadPayload, e.Kind, err)
		}
		return out, nil
	}
	return out, fmt.Errorf("%w: %s: unexpected %T", ErrBadPayload, e.Kind, e.Payload)
}

func (m *Manager) handleWinchStatus(e dispatcher.Event) (any, error) {
	report, err := decode[streaming.WinchStatusReport](e)
	if err != nil {
		return nil, err
	}

	cfg := m.deps.Config.Snapshot()
	if report.ID < 0 || report.ID >= m.deps.State.WinchCount() || report.ID >= len(cfg.Winches) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWinch, report.ID)
	}

	cmd := m.deps.State.WinchControlLoop(cfg, report.ID, report.Status)

	var sendErr error
	if m.deps.Sender != nil {
		if err := m.deps.Sender.SendWinch(report.ID, cmd); err != nil {
			sendErr = fmt.Errorf("send winch %d: %w", report.ID, err)
		}
	}

	now := e.Timestamp
	m.record(RecordWinchStatus, &core.WinchStatusRecord{Time: now, WinchID: report.ID, Status: report.Status})
	m.record(RecordWinchCommand, &core.WinchCommandRecord{Time: m.deps.Now(), WinchID: report.ID, Command: cmd})

	return cmd, sendErr
}

func (m *Manager) handleObjectDetection(e dispatcher.Event) (any, error) {
	det, err := decode[core.CameraDetectedObjects](e)
	if err != nil {
		return nil, err
	}
	m.deps.State.CameraObjectDetectionUpdate(det)
	m.record(RecordDetections, &core.DetectionRecord{Time: e.Timestamp, Detections: det})
	return nil, nil
}

func (m *Manager) handleRegionTracking(e dispatcher.Event) (any, error) {
	tr, err := decode[core.CameraTrackedRegion](e)
	if err != nil {
		return nil, err
	}
	m.deps.State.CameraRegionTrackingUpdate(tr)
	m.record(RecordTrackedRegion, &core.TrackedRegionRecord{Time: e.Timestamp, Source: e.Source, Region: tr})
	return nil, nil
}

func (m *Manager) handleFlyerSensors(e dispatcher.Event) (any, error) {
	sensors, err := decode[core.FlyerSensors](e)
	if err != nil {
		return nil, err
	}
	m.deps.State.FlyerSensorUpdate(sensors)
	m.record(RecordFlyerSensors, &core.FlyerSensorRecord{Time: e.Timestamp, Sensors: sensors})
	return nil, nil
}

// handleUpdateConfig merges a partial config. A rejected update leaves the
// current snapshot in place and is reported to the caller.
func (m *Manager) handleUpdateConfig(e dispatcher.Event) (any, error) {
	partial, err := decode[streaming.ConfigUpdate](e)
	if err != nil {
		return nil, err
	}

	cfg, err := m.deps.Config.Update(partial)
	if err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	m.deps.State.ConfigChanged(cfg)
	m.ConfigIsCurrent(cfg)
	return cfg, nil
}

// ConfigIsCurrent broadcasts cfg and records a snapshot of it.
func (m *Manager) ConfigIsCurrent(cfg *config.Config) {
	if m.deps.Hub != nil {
		m.deps.Hub.Broadcast(streaming.TypeConfigIsCurrent, cfg)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		m.deps.Logger.Error("encode config snapshot", "error", err)
		return
	}
	m.record(RecordConfig, &core.ConfigRecord{Time: m.deps.Now(), Mode: cfg.Mode.String(), Config: raw})
}

func (m *Manager) handleManualControl(e dispatcher.Event) (any, error) {
	mc, err := decode[streaming.ManualControl](e)
	if err != nil {
		return nil, err
	}
	manual := m.deps.State.Manual
	if mc.ReleaseCamera {
		manual.ReleaseCamera()
	}
	if mc.CameraVector != nil {
		manual.SetCameraVector(*mc.CameraVector)
	}
	if mc.Velocity != nil {
		manual.SetVelocity(*mc.Velocity)
	}
	return nil, nil
}

// RecordTrackedRegion records a region produced by the controller itself.
func (m *Manager) RecordTrackedRegion(r core.CameraTrackedRegion) {
	m.record(RecordTrackedRegion, &core.TrackedRegionRecord{Time: m.deps.Now(), Source: SourceController, Region: r})
}
