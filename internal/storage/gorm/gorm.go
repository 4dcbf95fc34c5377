// Package gormstorage implements storage.Backend on GORM with internal
// queues and a background DB writer goroutine. The sqlite and postgres
// backends wrap it.
package gormstorage

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tucoflyer/botcontrol/internal/database"
	"github.com/tucoflyer/botcontrol/internal/model"
	"github.com/tucoflyer/botcontrol/internal/model/convert"
	"github.com/tucoflyer/botcontrol/internal/queue"
	"github.com/tucoflyer/botcontrol/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultQueueLimit    = 100000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger

	// FlushInterval is how often queues are written; zero means every 2s.
	FlushInterval time.Duration
	// QueueLimit bounds each queue; the oldest rows are dropped beyond it.
	QueueLimit int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	WinchStatuses  *queue.Queue[model.WinchStatus]
	WinchCommands  *queue.Queue[model.WinchCommand]
	Detections     *queue.Queue[model.Detection]
	TrackedRegions *queue.Queue[model.TrackedRegion]
	FlyerSensors   *queue.Queue[model.FlyerSensors]
	Configs        *queue.Queue[model.ConfigSnapshot]
}

func newQueues(limit int) *queues {
	return &queues{
		WinchStatuses:  queue.New[model.WinchStatus](limit),
		WinchCommands:  queue.New[model.WinchCommand](limit),
		Detections:     queue.New[model.Detection](limit),
		TrackedRegions: queue.New[model.TrackedRegion](limit),
		FlyerSensors:   queue.New[model.FlyerSensors](limit),
		Configs:        queue.New[model.ConfigSnapshot](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Value // string
	dropped   atomic.Int64
	lastWrite atomic.Int64 // nanoseconds

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.QueueLimit <= 0 {
		deps.QueueLimit = defaultQueueLimit
	}
	b := &Backend{deps: deps}
	b.sessionID.Store("")
	return b
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.queues = newQueues(b.deps.QueueLimit)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return nil
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StartSession inserts the session row and stamps every later record with it.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	b.sessionID.Store(row.ID)
	return nil
}

func (b *Backend) session() string {
	return b.sessionID.Load().(string)
}

func (b *Backend) countDropped(n int) {
	if n > 0 {
		b.dropped.Add(int64(n))
	}
}

// RecordWinchStatus converts and queues a status report.
func (b *Backend) RecordWinchStatus(r *core.WinchStatusRecord) error {
	b.countDropped(b.queues.WinchStatuses.Push(convert.CoreToWinchStatus(b.session(), *r)))
	return nil
}

// RecordWinchCommand converts and queues a command.
func (b *Backend) RecordWinchCommand(r *core.WinchCommandRecord) error {
	b.countDropped(b.queues.WinchCommands.Push(convert.CoreToWinchCommand(b.session(), *r)))
	return nil
}

// RecordDetections converts and queues a detector batch.
func (b *Backend) RecordDetections(r *core.DetectionRecord) error {
	b.countDropped(b.queues.Detections.Push(convert.CoreToDetection(b.session(), *r)))
	return nil
}

// RecordTrackedRegion converts and queues a tracked region.
func (b *Backend) RecordTrackedRegion(r *core.TrackedRegionRecord) error {
	b.countDropped(b.queues.TrackedRegions.Push(convert.CoreToTrackedRegion(b.session(), *r)))
	return nil
}

// RecordFlyerSensors converts and queues flyer telemetry.
func (b *Backend) RecordFlyerSensors(r *core.FlyerSensorRecord) error {
	b.countDropped(b.queues.FlyerSensors.Push(convert.CoreToFlyerSensors(b.session(), *r)))
	return nil
}

// RecordConfig converts and queues a config snapshot.
func (b *Backend) RecordConfig(r *core.ConfigRecord) error {
	b.countDropped(b.queues.Configs.Push(convert.CoreToConfigSnapshot(b.session(), *r)))
	return nil
}

// Dropped is the number of rows discarded because a queue was full.
func (b *Backend) Dropped() int64 {
	return b.dropped.Load()
}

// GetLastDBWriteDuration returns how long the last write cycle took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back on the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("db write failed", "table", name, "rows", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return
	}
	tx.Commit()
}

// Flush writes every queue now.
func (b *Backend) Flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	db, log := b.deps.DB, b.deps.Logger
	writeQueue(db, b.queues.WinchStatuses, "winch_statuses", log)
	writeQueue(db, b.queues.WinchCommands, "winch_commands", log)
	writeQueue(db, b.queues.Detections, "detections", log)
	writeQueue(db, b.queues.TrackedRegions, "tracked_regions", log)
	writeQueue(db, b.queues.FlyerSensors, "flyer_sensors", log)
	writeQueue(db, b.queues.Configs, "config_snapshots", log)
	b.lastWrite.Store(int64(time.Since(start)))
}

func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
