// pkg/core/flyer.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// FlyerSensors is the telemetry snapshot reported by the flying payload.
type FlyerSensors struct {
	XBand         [2]uint32 `json:"xband" msgpack:"xband"`
	Accelerometer [3]int16  `json:"accelerometer" msgpack:"accelerometer"`
	Magnetometer  [3]int16  `json:"magnetometer" msgpack:"magnetometer"`
	Lidar         [4]uint16 `json:"lidar" msgpack:"lidar"`
	Analog        [8]uint16 `json:"analog" msgpack:"analog"`
}

// Session identifies one run of the controller for recording purposes.
type Session struct {
	ID         uuid.UUID `json:"id"`
	StartTime  time.Time `json:"start_time"`
	Controller string    `json:"controller"`
	Flyer      string    `json:"flyer"`
	WinchCount int       `json:"winch_count"`
}

// NewSession creates a session with a fresh random id.
func NewSession(start time.Time, controller, flyer string, winches int) *Session {
	return &Session{
		ID:         uuid.New(),
		StartTime:  start,
		Controller: controller,
		Flyer:      flyer,
		WinchCount: winches,
	}
}
