// Package export writes a recorded session from a SQL database to a gzipped
// JSON file.
package export

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tucoflyer/botcontrol/internal/model"
	"gorm.io/gorm"
)

// ErrSessionNotFound is returned for an id with no sessions row.
var ErrSessionNotFound = errors.New("session not found")

// Recording is every row of one session, oldest first.
type Recording struct {
	Session        model.Session          `json:"session"`
	WinchStatuses  []model.WinchStatus    `json:"winchStatuses"`
	WinchCommands  []model.WinchCommand   `json:"winchCommands"`
	Detections     []model.Detection      `json:"detections"`
	TrackedRegions []model.TrackedRegion  `json:"trackedRegions"`
	FlyerSensors   []model.FlyerSensors   `json:"flyerSensors"`
	Configs        []model.ConfigSnapshot `json:"configs"`
}

// Load reads session id and all of its rows.
func Load(db *gorm.DB, id string) (*Recording, error) {
	rec := &Recording{}
	err := db.Where("id = ?", id).First(&rec.Session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	tables := []struct {
		name string
		dest any
	}{
		{"winch statuses", &rec.WinchStatuses},
		{"winch commands", &rec.WinchCommands},
		{"detections", &rec.Detections},
		{"tracked regions", &rec.TrackedRegions},
		{"flyer sensors", &rec.FlyerSensors},
		{"configs", &rec.Configs},
	}
	for _, t := range tables {
		if err := db.Where("session_id = ?", id).Order("id").Find(t.dest).Error; err != nil {
			return nil, fmt.Errorf("load %s for %s: %w", t.name, id, err)
		}
	}
	return rec, nil
}

// Write stores rec as <dir>/<session id>.json.gz and returns the path.
func Write(rec *Recording, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, rec.Session.ID+".json.gz")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(rec); err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("finish %s: %w", path, err)
	}
	return path, nil
}

// Session loads and writes session id in one step.
func Session(db *gorm.DB, id, dir string) (string, error) {
	rec, err := Load(db, id)
	if err != nil {
		return "", err
	}
	return Write(rec, dir)
}

// Duration is the span from session start to the newest recorded row.
func (r *Recording) Duration() time.Duration {
	last := r.Session.StartTime
	later := func(t time.Time) {
		if t.After(last) {
			last = t
		}
	}
	if n := len(r.WinchStatuses); n > 0 {
		later(r.WinchStatuses[n-1].Time)
	}
	if n := len(r.WinchCommands); n > 0 {
		later(r.WinchCommands[n-1].Time)
	}
	if n := len(r.Detections); n > 0 {
		later(r.Detections[n-1].Time)
	}
	if n := len(r.TrackedRegions); n > 0 {
		later(r.TrackedRegions[n-1].Time)
	}
	if n := len(r.FlyerSensors); n > 0 {
		later(r.FlyerSensors[n-1].Time)
	}
	if n := len(r.Configs); n > 0 {
		later(r.Configs[n-1].Time)
	}
	return last.Sub(r.Session.StartTime)
}
