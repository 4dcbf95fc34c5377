// pkg/core/records.go
package core

import (
	"encoding/json"
	"time"
)

// WinchStatusRecord is one status report as received from a winch.
type WinchStatusRecord struct {
	Time    time.Time   `json:"time"`
	WinchID int         `json:"winch_id"`
	Status  WinchStatus `json:"status"`
}

// WinchCommandRecord is one command as sent to a winch.
type WinchCommandRecord struct {
	Time    time.Time    `json:"time"`
	WinchID int          `json:"winch_id"`
	Command WinchCommand `json:"command"`
}

// DetectionRecord is one detector batch.
type DetectionRecord struct {
	Time       time.Time             `json:"time"`
	Detections CameraDetectedObjects `json:"detections"`
}

// TrackedRegionRecord is a tracked region, from the remote tracker or
// produced by the controller.
type TrackedRegionRecord struct {
	Time   time.Time           `json:"time"`
	Source string              `json:"source"`
	Region CameraTrackedRegion `json:"region"`
}

// FlyerSensorRecord is one flyer telemetry snapshot.
type FlyerSensorRecord struct {
	Time    time.Time    `json:"time"`
	Sensors FlyerSensors `json:"sensors"`
}

// ConfigRecord is a rig config snapshot that became current.
type ConfigRecord struct {
	Time   time.Time       `json:"time"`
	Mode   string          `json:"mode"`
	Config json.RawMessage `json:"config"`
}
