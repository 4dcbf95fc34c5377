package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&WinchStatus{},
	&WinchCommand{},
	&Detection{},
	&TrackedRegion{},
	&FlyerSensors{},
	&ConfigSnapshot{},
}

// Session is one controller run. Every other table references it.
type Session struct {
	ID         string    `json:"id" gorm:"size:36;primaryKey"`
	StartTime  time.Time `json:"startTime" gorm:"index:idx_session_start"`
	Controller string    `json:"controller" gorm:"size:64"`
	Flyer      string    `json:"flyer" gorm:"size:64"`
	WinchCount int       `json:"winchCount"`
}

func (*Session) TableName() string {
	return "sessions"
}

// WinchStatus is a flattened winch status report.
type WinchStatus struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time           time.Time `json:"time" gorm:"index:idx_winchstatus_time"`
	SessionID      string    `json:"sessionId" gorm:"size:36;index:idx_winchstatus_session_winch"`
	WinchID        int       `json:"winchId" gorm:"index:idx_winchstatus_session_winch"`
	CommandCounter uint32    `json:"commandCounter"`
	TickCounter    uint32    `json:"tickCounter"`
	ForceFiltered  float32   `json:"forceFiltered"`
	ForceCounter   uint32    `json:"forceCounter"`
	Position       int32     `json:"position"`
	Velocity       float32   `json:"velocity"`
	PWM            float32   `json:"pwm"`
	PositionError  float32   `json:"positionError"`
	VelocityError  float32   `json:"velocityError"`
}

func (*WinchStatus) TableName() string {
	return "winch_statuses"
}

// WinchCommand is a command as sent to a winch.
type WinchCommand struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time      time.Time `json:"time" gorm:"index:idx_winchcommand_time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_winchcommand_session_winch"`
	WinchID   int       `json:"winchId" gorm:"index:idx_winchcommand_session_winch"`
	Velocity  float32   `json:"velocity"`
	Position  int32     `json:"position"`
	ForceMin  float32   `json:"forceMin"`
	ForceMax  float32   `json:"forceMax"`
	PWMLimit  float32   `json:"pwmLimit"`
}

func (*WinchCommand) TableName() string {
	return "winch_commands"
}

// Detection is one detector batch. Objects is the JSON array of detected
// objects.
type Detection struct {
	ID           uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time         time.Time      `json:"time" gorm:"index:idx_detection_time"`
	SessionID    string         `json:"sessionId" gorm:"size:36;index:idx_detection_session"`
	Frame        uint32         `json:"frame"`
	DetectorNsec uint32         `json:"detectorNsec"`
	ObjectCount  int            `json:"objectCount"`
	Objects      datatypes.JSON `json:"objects"`
}

func (*Detection) TableName() string {
	return "detections"
}

// TrackedRegion is a tracked rect, from the remote tracker or the controller.
type TrackedRegion struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time        time.Time `json:"time" gorm:"index:idx_trackedregion_time"`
	SessionID   string    `json:"sessionId" gorm:"size:36;index:idx_trackedregion_session"`
	Source      string    `json:"source" gorm:"size:32"`
	Frame       uint32    `json:"frame"`
	TrackerNsec uint32    `json:"trackerNsec"`
	PSR         float32   `json:"psr"`
	X0          float32   `json:"x0"`
	Y0          float32   `json:"y0"`
	X1          float32   `json:"x1"`
	Y1          float32   `json:"y1"`
}

func (*TrackedRegion) TableName() string {
	return "tracked_regions"
}

// FlyerSensors is one flyer telemetry snapshot, kept as JSON.
type FlyerSensors struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time      time.Time      `json:"time" gorm:"index:idx_flyersensors_time"`
	SessionID string         `json:"sessionId" gorm:"size:36;index:idx_flyersensors_session"`
	Sensors   datatypes.JSON `json:"sensors"`
}

func (*FlyerSensors) TableName() string {
	return "flyer_sensors"
}

// ConfigSnapshot is a rig config that became current.
type ConfigSnapshot struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time      time.Time      `json:"time" gorm:"index:idx_configsnapshot_time"`
	SessionID string         `json:"sessionId" gorm:"size:36;index:idx_configsnapshot_session"`
	Mode      string         `json:"mode" gorm:"size:32"`
	Config    datatypes.JSON `json:"config"`
}

func (*ConfigSnapshot) TableName() string {
	return "config_snapshots"
}
