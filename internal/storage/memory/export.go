// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tucoflyer/botcontrol/pkg/core"
)

// SessionExport is the root JSON structure of an exported session.
type SessionExport struct {
	Session        core.Session               `json:"session"`
	Winches        []WinchExport              `json:"winches"`
	Detections     []core.DetectionRecord     `json:"detections"`
	TrackedRegions []core.TrackedRegionRecord `json:"tracked_regions"`
	FlyerSensors   []core.FlyerSensorRecord   `json:"flyer_sensors"`
	Configs        []core.ConfigRecord        `json:"configs"`
}

// WinchExport holds one winch's series.
type WinchExport struct {
	ID       int                       `json:"id"`
	Statuses []core.WinchStatusRecord  `json:"statuses"`
	Commands []core.WinchCommandRecord `json:"commands"`
}

// exportFilename is session_<start>_<id prefix>.json[.gz]
func exportFilename(s *core.Session, compress bool) string {
	name := fmt.Sprintf("session_%s_%s.json", s.StartTime.UTC().Format("20060102_150405"), s.ID.String()[:8])
	if compress {
		name += ".gz"
	}
	return name
}

// exportJSON writes the session to a (optionally gzipped) JSON file.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, exportFilename(b.session, b.cfg.CompressOutput))

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		Session:        *b.session,
		Winches:        make([]WinchExport, 0, len(b.winches)),
		Detections:     nonNil(b.detections),
		TrackedRegions: nonNil(b.trackedRegions),
		FlyerSensors:   nonNil(b.flyerSensors),
		Configs:        nonNil(b.configs),
	}

	for id, rec := range b.winches {
		export.Winches = append(export.Winches, WinchExport{
			ID:       id,
			Statuses: nonNil(rec.Statuses),
			Commands: nonNil(rec.Commands),
		})
	}
	sort.Slice(export.Winches, func(i, j int) bool {
		return export.Winches[i].ID < export.Winches[j].ID
	})

	return export
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
