// Package streaming defines the message kinds exchanged with the rig and the
// JSON envelope used by the web UI and the telemetry relay.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// Inbound kinds.
const (
	TypeWinchStatus           = "winch_status"
	TypeCameraObjectDetection = "camera_object_detection"
	TypeCameraRegionTracking  = "camera_region_tracking"
	TypeFlyerSensors          = "flyer_sensors"
	TypeUpdateConfig          = "update_config"
	TypeManualControl         = "manual_control"
)

// Outbound kinds.
const (
	TypeWinchCommand    = "winch_command"
	TypeConfigIsCurrent = "config_is_current"
	TypeTrackedRegion   = "tracked_region"
	TypeLightFrame      = "light_frame"
	TypeStartSession    = "start_session"
	TypeAck             = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: raw}, nil
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// WinchStatusReport is a winch status tagged with the reporting winch.
type WinchStatusReport struct {
	ID     int              `json:"id" msgpack:"id"`
	Status core.WinchStatus `json:"status" msgpack:"status"`
}

// WinchCommandReport is a command tagged with the destination winch.
type WinchCommandReport struct {
	ID      int               `json:"id" msgpack:"id"`
	Command core.WinchCommand `json:"command" msgpack:"command"`
}

// ManualControl carries operator input. Nil fields are left untouched;
// ReleaseCamera hands the camera back to vision.
type ManualControl struct {
	CameraVector  *mgl32.Vec2 `json:"camera_vector,omitempty"`
	Velocity      *mgl32.Vec2 `json:"velocity,omitempty"`
	ReleaseCamera bool        `json:"release_camera,omitempty"`
}

// ConfigUpdate is a partial rig config, merged into the current one.
type ConfigUpdate map[string]any

// TrackedRegion is pushed to clients when the tracked rect moves.
type TrackedRegion struct {
	Region    core.CameraTrackedRegion `json:"region"`
	Particles []mgl32.Vec2             `json:"particles,omitempty"`
}

// LightFrame is one rendered frame of winch colors.
type LightFrame struct {
	Winches []mgl32.Vec3 `json:"winches"`
}
