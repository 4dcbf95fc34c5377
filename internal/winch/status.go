package winch

import "fmt"

// MechKind enumerates the mechanical states of a winch.
type MechKind int

const (
	Normal MechKind = iota
	Stuck
	ForceLimited
)

func (k MechKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Stuck:
		return "stuck"
	case ForceLimited:
		return "force_limited"
	default:
		return "unknown"
	}
}

// MechStatus is the derived mechanical health of one winch. Force is only
// set for ForceLimited: the signed amount (kg) by which the measured tension
// exceeds the allowed band, positive when over the maximum.
type MechStatus struct {
	Kind  MechKind
	Force float32
}

// NormalStatus returns the Normal status.
func NormalStatus() MechStatus { return MechStatus{Kind: Normal} }

// StuckStatus returns the Stuck status.
func StuckStatus() MechStatus { return MechStatus{Kind: Stuck} }

// ForceLimitedStatus returns ForceLimited(f).
func ForceLimitedStatus(f float32) MechStatus { return MechStatus{Kind: ForceLimited, Force: f} }

func (s MechStatus) String() string {
	if s.Kind == ForceLimited {
		return fmt.Sprintf("force_limited(%.3f)", s.Force)
	}
	return s.Kind.String()
}

// Interlock applies the safety rule for s to a requested velocity. A stuck
// winch never moves; a force limited winch may only move to relieve the force.
func (s MechStatus) Interlock(v float32) float32 {
	switch s.Kind {
	case Normal:
		return v
	case Stuck:
		return 0
	case ForceLimited:
		if v*s.Force < 0 {
			return v
		}
		return 0
	default:
		panic(fmt.Sprintf("winch: unhandled mech status %d", s.Kind))
	}
}
