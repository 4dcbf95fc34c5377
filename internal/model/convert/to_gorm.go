// Package convert turns wire records into GORM rows.
package convert

import (
	"encoding/json"

	"github.com/tucoflyer/botcontrol/internal/model"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column; nil and marshal failures become fallback.
func toJSON(v any, fallback string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		ID:         s.ID.String(),
		StartTime:  s.StartTime,
		Controller: s.Controller,
		Flyer:      s.Flyer,
		WinchCount: s.WinchCount,
	}
}

// CoreToWinchStatus flattens a status record.
func CoreToWinchStatus(sessionID string, r core.WinchStatusRecord) model.WinchStatus {
	st := r.Status
	return model.WinchStatus{
		Time:           r.Time,
		SessionID:      sessionID,
		WinchID:        r.WinchID,
		CommandCounter: st.CommandCounter,
		TickCounter:    st.TickCounter,
		ForceFiltered:  st.Sensors.Force.Filtered,
		ForceCounter:   st.Sensors.Force.Counter,
		Position:       st.Sensors.Position,
		Velocity:       st.Sensors.Velocity,
		PWM:            st.Motor.PWM,
		PositionError:  st.Motor.PositionError,
		VelocityError:  st.Motor.VelocityError,
	}
}

// CoreToWinchCommand flattens a command record.
func CoreToWinchCommand(sessionID string, r core.WinchCommandRecord) model.WinchCommand {
	return model.WinchCommand{
		Time:      r.Time,
		SessionID: sessionID,
		WinchID:   r.WinchID,
		Velocity:  r.Command.Velocity,
		Position:  r.Command.Position,
		ForceMin:  r.Command.ForceMin,
		ForceMax:  r.Command.ForceMax,
		PWMLimit:  r.Command.PWMLimit,
	}
}

// CoreToDetection keeps the objects as a JSON array.
func CoreToDetection(sessionID string, r core.DetectionRecord) model.Detection {
	d := r.Detections
	return model.Detection{
		Time:         r.Time,
		SessionID:    sessionID,
		Frame:        d.Frame,
		DetectorNsec: d.DetectorNsec,
		ObjectCount:  len(d.Objects),
		Objects:      toJSON(d.Objects, "[]"),
	}
}

// CoreToTrackedRegion splits the rect into its corners.
func CoreToTrackedRegion(sessionID string, r core.TrackedRegionRecord) model.TrackedRegion {
	reg := r.Region
	return model.TrackedRegion{
		Time:        r.Time,
		SessionID:   sessionID,
		Source:      r.Source,
		Frame:       reg.Frame,
		TrackerNsec: reg.TrackerNsec,
		PSR:         reg.PSR,
		X0:          reg.Rect[0],
		Y0:          reg.Rect[1],
		X1:          reg.Rect[2],
		Y1:          reg.Rect[3],
	}
}

// CoreToFlyerSensors keeps the sensor snapshot as a JSON object.
func CoreToFlyerSensors(sessionID string, r core.FlyerSensorRecord) model.FlyerSensors {
	return model.FlyerSensors{
		Time:      r.Time,
		SessionID: sessionID,
		Sensors:   toJSON(r.Sensors, "{}"),
	}
}

// CoreToConfigSnapshot stores the config JSON as-is.
func CoreToConfigSnapshot(sessionID string, r core.ConfigRecord) model.ConfigSnapshot {
	cfg := datatypes.JSON("{}")
	if len(r.Config) > 0 {
		cfg = datatypes.JSON(r.Config)
	}
	return model.ConfigSnapshot{
		Time:      r.Time,
		SessionID: sessionID,
		Mode:      r.Mode,
		Config:    cfg,
	}
}
