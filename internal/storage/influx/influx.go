// Package influx records rig telemetry as InfluxDB points. When the server is
// unreachable at Init, points go to a gzipped line-protocol backup file
// instead.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// Options locate the server and the backup file.
type Options struct {
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// OptionsFromConfig reads the influx.* keys of the service config.
func OptionsFromConfig() Options {
	return Options{
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// Backend implements storage.Backend on InfluxDB.
type Backend struct {
	opts   Options
	logger zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
	session    string
}

// New creates a backend; nothing is contacted until Init.
func New(opts Options, logger zerolog.Logger) *Backend {
	return &Backend{opts: opts, logger: logger}
}

// Init connects, or falls back to the backup file.
func (b *Backend) Init() error {
	b.client = influxdb2.NewClientWithOptions(b.opts.URL, b.opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.logger.Warn().Err(err).Str("backupPath", b.opts.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		b.client.Close()
		b.client = nil
		return b.openBackup()
	}

	if err := b.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	b.writer = b.client.WriteAPI(b.opts.Org, b.opts.Bucket)
	go func(errs <-chan error) {
		for writeErr := range errs {
			b.logger.Error().Err(writeErr).Str("bucket", b.opts.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(b.writer.Errors())

	b.logger.Info().Str("url", b.opts.URL).Msg("InfluxDB client initialized")
	return nil
}

func (b *Backend) openBackup() error {
	if err := os.MkdirAll(filepath.Dir(b.opts.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(b.opts.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.backup = gzip.NewWriter(file)
	return nil
}

func (b *Backend) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := b.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, b.opts.Org)
	if err != nil {
		b.logger.Info().Str("org", b.opts.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, b.opts.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", b.opts.Org, err)
		}
	}

	if _, err := b.client.BucketsAPI().FindBucketByName(ctx, b.opts.Bucket); err != nil {
		b.logger.Info().Str("bucket", b.opts.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, org, b.opts.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90,
		})
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", b.opts.Bucket, err)
		}
	}
	return nil
}

// Close flushes pending points and closes the backup file.
func (b *Backend) Close() error {
	if b.writer != nil {
		b.writer.Flush()
	}
	if b.client != nil {
		b.client.Close()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backup == nil {
		return nil
	}
	if err := b.backup.Close(); err != nil {
		b.backupFile.Close()
		return fmt.Errorf("closing backup writer: %w", err)
	}
	b.backup = nil
	return b.backupFile.Close()
}

// ExportedFilePath is the backup file, if the backend fell back to it.
func (b *Backend) ExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backupFile == nil {
		return ""
	}
	return b.opts.BackupPath
}

// StartSession tags every later point with the session id.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	b.session = s.ID.String()
	b.mu.Unlock()

	p := influxdb2.NewPointWithMeasurement("session").
		AddTag("session", s.ID.String()).
		AddField("winch_count", s.WinchCount).
		AddField("controller", s.Controller).
		AddField("flyer", s.Flyer).
		SetTime(s.StartTime)
	return b.writePoint(p)
}

func (b *Backend) point(measurement string, t time.Time) *influxdb2_write.Point {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()
	return influxdb2.NewPointWithMeasurement(measurement).
		AddTag("session", session).
		SetTime(t)
}

// writePoint sends the point to the server or appends it to the backup file.
func (b *Backend) writePoint(p *influxdb2_write.Point) error {
	if b.writer != nil {
		b.writer.WritePoint(p)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := b.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// RecordWinchStatus writes force, encoder and motor readings.
func (b *Backend) RecordWinchStatus(r *core.WinchStatusRecord) error {
	st := r.Status
	p := b.point("winch_status", r.Time).
		AddTag("winch", fmt.Sprint(r.WinchID)).
		AddField("force_filtered", st.Sensors.Force.Filtered).
		AddField("position", st.Sensors.Position).
		AddField("velocity", st.Sensors.Velocity).
		AddField("pwm", st.Motor.PWM).
		AddField("tick_counter", st.TickCounter)
	return b.writePoint(p)
}

// RecordWinchCommand writes the command fields.
func (b *Backend) RecordWinchCommand(r *core.WinchCommandRecord) error {
	c := r.Command
	p := b.point("winch_command", r.Time).
		AddTag("winch", fmt.Sprint(r.WinchID)).
		AddField("velocity", c.Velocity).
		AddField("position", c.Position).
		AddField("force_min", c.ForceMin).
		AddField("force_max", c.ForceMax)
	return b.writePoint(p)
}

// RecordDetections writes the object count and the best probability.
func (b *Backend) RecordDetections(r *core.DetectionRecord) error {
	var best float32
	for _, obj := range r.Detections.Objects {
		if obj.Prob > best {
			best = obj.Prob
		}
	}
	p := b.point("detections", r.Time).
		AddField("frame", r.Detections.Frame).
		AddField("object_count", len(r.Detections.Objects)).
		AddField("best_prob", best)
	return b.writePoint(p)
}

// RecordTrackedRegion writes the rect corners.
func (b *Backend) RecordTrackedRegion(r *core.TrackedRegionRecord) error {
	rect := r.Region.Rect
	p := b.point("tracked_region", r.Time).
		AddTag("source", r.Source).
		AddField("x0", rect[0]).
		AddField("y0", rect[1]).
		AddField("x1", rect[2]).
		AddField("y1", rect[3]).
		AddField("psr", r.Region.PSR)
	return b.writePoint(p)
}

// RecordFlyerSensors writes the lidar ranges and x-band counters.
func (b *Backend) RecordFlyerSensors(r *core.FlyerSensorRecord) error {
	s := r.Sensors
	p := b.point("flyer_sensors", r.Time)
	for i, v := range s.Lidar {
		p.AddField(fmt.Sprintf("lidar%d", i), v)
	}
	for i, v := range s.XBand {
		p.AddField(fmt.Sprintf("xband%d", i), v)
	}
	return b.writePoint(p)
}

// RecordConfig writes the mode; the full config has no place in a time series.
func (b *Backend) RecordConfig(r *core.ConfigRecord) error {
	return b.writePoint(b.point("config", r.Time).AddField("mode", r.Mode))
}
