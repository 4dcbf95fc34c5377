// pkg/core/winch.go
package core

// ForceMeasurement is a raw load cell reading from a winch.
type ForceMeasurement struct {
	Filtered float32 `json:"filtered" msgpack:"filtered"`
	Counter  uint32  `json:"counter" msgpack:"counter"`
}

// WinchSensors groups the encoder and force sensor readings.
type WinchSensors struct {
	Force    ForceMeasurement `json:"force" msgpack:"force"`
	Position int32            `json:"position" msgpack:"position"` // encoder counts
	Velocity float32          `json:"velocity" msgpack:"velocity"` // counts per second
}

// WinchMotorStatus is the motor controller's view of the last command.
type WinchMotorStatus struct {
	PWM           float32 `json:"pwm" msgpack:"pwm"` // -1..1
	PositionError float32 `json:"position_err" msgpack:"position_err"`
	VelocityError float32 `json:"velocity_err" msgpack:"velocity_err"`
}

// WinchStatus is reported by each winch once per winch tick.
type WinchStatus struct {
	CommandCounter uint32           `json:"command_counter" msgpack:"command_counter"`
	TickCounter    uint32           `json:"tick_counter" msgpack:"tick_counter"`
	Sensors        WinchSensors     `json:"sensors" msgpack:"sensors"`
	Motor          WinchMotorStatus `json:"motor" msgpack:"motor"`
}

// WinchCommand is sent back to a winch in response to each status report.
type WinchCommand struct {
	Velocity float32 `json:"velocity" msgpack:"velocity"` // m/s, signed
	Position int32   `json:"position" msgpack:"position"` // target, encoder counts
	ForceMin float32 `json:"force_min" msgpack:"force_min"`
	ForceMax float32 `json:"force_max" msgpack:"force_max"`
	PWMLimit float32 `json:"pwm_limit" msgpack:"pwm_limit"`
}
