// pkg/core/camera.go
package core

import "github.com/go-gl/mathgl/mgl32"

// Rects are stored as [x0, y0, x1, y1] in normalized camera coordinates.

// CameraDetectedObject is one classified bounding box from the detector.
type CameraDetectedObject struct {
	Rect  mgl32.Vec4 `json:"rect" msgpack:"rect"`
	Label string     `json:"label" msgpack:"label"`
	Prob  float32    `json:"prob" msgpack:"prob"`
}

// CameraDetectedObjects is a full detector result for a single frame.
type CameraDetectedObjects struct {
	Frame        uint32                 `json:"frame" msgpack:"frame"`
	DetectorNsec uint32                 `json:"detector_nsec" msgpack:"detector_nsec"`
	Objects      []CameraDetectedObject `json:"objects" msgpack:"objects"`
}

// CameraTrackedRegion is the rect the camera is currently following.
type CameraTrackedRegion struct {
	Frame       uint32     `json:"frame" msgpack:"frame"`
	TrackerNsec uint32     `json:"tracker_nsec" msgpack:"tracker_nsec"`
	PSR         float32    `json:"psr" msgpack:"psr"`
	Rect        mgl32.Vec4 `json:"rect" msgpack:"rect"`
}
