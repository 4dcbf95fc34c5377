// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// WinchRecord groups everything recorded for one winch.
type WinchRecord struct {
	Statuses []core.WinchStatusRecord
	Commands []core.WinchCommandRecord
}

// Backend keeps a session in memory and exports it to JSON when the session
// ends.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	winches        map[int]*WinchRecord
	detections     []core.DetectionRecord
	trackedRegions []core.TrackedRegionRecord
	flyerSensors   []core.FlyerSensorRecord
	configs        []core.ConfigRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		winches: make(map[int]*WinchRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the current session, if any.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	return b.exportJSON()
}

// StartSession exports the previous session and starts collecting a new one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		if err := b.exportJSON(); err != nil {
			return err
		}
	}

	b.session = s
	b.winches = make(map[int]*WinchRecord)
	b.detections = nil
	b.trackedRegions = nil
	b.flyerSensors = nil
	b.configs = nil
	return nil
}

func (b *Backend) winch(id int) *WinchRecord {
	rec, ok := b.winches[id]
	if !ok {
		rec = &WinchRecord{}
		b.winches[id] = rec
	}
	return rec
}

// RecordWinchStatus records a status report
func (b *Backend) RecordWinchStatus(r *core.WinchStatusRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.winch(r.WinchID)
	rec.Statuses = append(rec.Statuses, *r)
	return nil
}

// RecordWinchCommand records a command sent to a winch
func (b *Backend) RecordWinchCommand(r *core.WinchCommandRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.winch(r.WinchID)
	rec.Commands = append(rec.Commands, *r)
	return nil
}

// RecordDetections records a detector batch
func (b *Backend) RecordDetections(r *core.DetectionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.detections = append(b.detections, *r)
	return nil
}

// RecordTrackedRegion records a tracked region
func (b *Backend) RecordTrackedRegion(r *core.TrackedRegionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trackedRegions = append(b.trackedRegions, *r)
	return nil
}

// RecordFlyerSensors records flyer telemetry
func (b *Backend) RecordFlyerSensors(r *core.FlyerSensorRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flyerSensors = append(b.flyerSensors, *r)
	return nil
}

// RecordConfig records a config snapshot
func (b *Backend) RecordConfig(r *core.ConfigRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.configs = append(b.configs, *r)
	return nil
}

// Winch returns a copy of what was recorded for winch id.
func (b *Backend) Winch(id int) (WinchRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.winches[id]
	if !ok {
		return WinchRecord{}, false
	}
	return WinchRecord{
		Statuses: append([]core.WinchStatusRecord(nil), rec.Statuses...),
		Commands: append([]core.WinchCommandRecord(nil), rec.Commands...),
	}, true
}

// Counts reports how many records of each kind are held.
func (b *Backend) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := map[string]int{
		"detections":      len(b.detections),
		"tracked_regions": len(b.trackedRegions),
		"flyer_sensors":   len(b.flyerSensors),
		"configs":         len(b.configs),
	}
	for _, rec := range b.winches {
		counts["winch_statuses"] += len(rec.Statuses)
		counts["winch_commands"] += len(rec.Commands)
	}
	return counts
}

// ExportedFilePath returns the path of the last exported file.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
