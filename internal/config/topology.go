package config

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// WinchNode is one winch on the network and the location of its cable anchor
// in the rig's local frame (meters).
type WinchNode struct {
	Addr string     `json:"addr" mapstructure:"addr"`
	Loc  [3]float32 `json:"loc" mapstructure:"loc"`
}

// Topology is the static network layout. Used only for message routing.
type Topology struct {
	ControllerAddr string      `json:"controller" mapstructure:"controller"`
	FlyerAddr      string      `json:"flyer" mapstructure:"flyer"`
	HTTPAddr       string      `json:"http" mapstructure:"http"`
	Winches        []WinchNode `json:"winches" mapstructure:"winches"`
}

// DefaultTopology is the four-winch rig on the 10.32.0.0 bot network.
func DefaultTopology() Topology {
	return Topology{
		ControllerAddr: "10.32.0.1:9024",
		FlyerAddr:      "10.32.0.8:9024",
		HTTPAddr:       "0.0.0.0:8080",
		Winches: []WinchNode{
			{Addr: "10.32.0.10:9024", Loc: [3]float32{10, 10, 0}},
			{Addr: "10.32.0.11:9024", Loc: [3]float32{10, -10, 0}},
			{Addr: "10.32.0.12:9024", Loc: [3]float32{-10, -10, 0}},
			{Addr: "10.32.0.13:9024", Loc: [3]float32{-10, 10, 0}},
		},
	}
}

func defaultWinchAddrs() []map[string]any {
	nodes := DefaultTopology().Winches
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = map[string]any{
			"addr": n.Addr,
			"loc":  []float32{n.Loc[0], n.Loc[1], n.Loc[2]},
		}
	}
	return out
}

// Footprint returns the horizontal area (m^2) covered by the anchor points.
// A non-finite anchor location is an error.
func (t Topology) Footprint() (float64, error) {
	points := make([]geom.Point, 0, len(t.Winches))
	for i, w := range t.Winches {
		xy := geom.Coordinates{XY: geom.XY{X: float64(w.Loc[0]), Y: float64(w.Loc[1])}, Type: geom.DimXY}
		pt, err := geom.NewPoint(xy)
		if err != nil {
			return 0, fmt.Errorf("%w: winch %d anchor: %v", ErrInvalidConfig, i, err)
		}
		points = append(points, pt)
	}
	hull := geom.NewMultiPoint(points).ConvexHull()
	return hull.Area(), nil
}

// Validate checks the topology against the number of configured winches.
func (t Topology) Validate(winchCount int) error {
	if t.ControllerAddr == "" {
		return fmt.Errorf("%w: topology has no controller address", ErrInvalidConfig)
	}
	if len(t.Winches) != winchCount {
		return fmt.Errorf("%w: topology lists %d winches, config has %d", ErrInvalidConfig, len(t.Winches), winchCount)
	}
	seen := make(map[string]int, len(t.Winches))
	for i, w := range t.Winches {
		if prev, ok := seen[w.Addr]; ok {
			return fmt.Errorf("%w: winches %d and %d share address %s", ErrInvalidConfig, prev, i, w.Addr)
		}
		seen[w.Addr] = i
	}
	area, err := t.Footprint()
	if err != nil {
		return err
	}
	if len(t.Winches) >= 3 && area <= 0 {
		return fmt.Errorf("%w: winch anchors are collinear", ErrInvalidConfig)
	}
	return nil
}
