// internal/storage/storage.go
package storage

import "github.com/tucoflyer/botcontrol/pkg/core"

// Backend is the interface all telemetry recorders must satisfy. Calls come
// from buffered dispatcher workers, never from the control loop itself.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// StartSession begins a new recording; records before it may be dropped.
	StartSession(s *core.Session) error

	RecordWinchStatus(r *core.WinchStatusRecord) error
	RecordWinchCommand(r *core.WinchCommandRecord) error
	RecordDetections(r *core.DetectionRecord) error
	RecordTrackedRegion(r *core.TrackedRegionRecord) error
	RecordFlyerSensors(r *core.FlyerSensorRecord) error
	RecordConfig(r *core.ConfigRecord) error
}

// Exporter is an optional interface for backends that write a file on Close.
type Exporter interface {
	ExportedFilePath() string
}

// None discards everything.
type None struct{}

func (None) Init() error                                         { return nil }
func (None) Close() error                                        { return nil }
func (None) StartSession(*core.Session) error                    { return nil }
func (None) RecordWinchStatus(*core.WinchStatusRecord) error     { return nil }
func (None) RecordWinchCommand(*core.WinchCommandRecord) error   { return nil }
func (None) RecordDetections(*core.DetectionRecord) error        { return nil }
func (None) RecordTrackedRegion(*core.TrackedRegionRecord) error { return nil }
func (None) RecordFlyerSensors(*core.FlyerSensorRecord) error    { return nil }
func (None) RecordConfig(*core.ConfigRecord) error               { return nil }
