package course

import "github.com/mpapenbr/pylonrace-go/pkg/geo"

type Side int

const (
	SideUnknown Side = iota
	SideNorth
	SideSouth
)

func (s Side) String() string {
	switch s {
	case SideNorth:
		return "north"
	case SideSouth:
		return "south"
	default:
		return "unknown"
	}
}

type Direction int

const (
	Northbound Direction = iota + 1
	Southbound
)

func (d Direction) String() string {
	if d == Northbound {
		return "northbound"
	}
	return "southbound"
}

// GateDetector is an edge detector on the latitude of the gate.
//
// Only the latitude is compared: an aircraft passing far east or west of the
// physical gate still counts as a crossing.
type GateDetector struct {
	gateLat float64
	last    Side
}

func NewGateDetector(gate Waypoint) *GateDetector {
	return &GateDetector{gateLat: gate.Lat}
}

// Detect stores the side of p and reports a crossing if the side changed.
// The first call only establishes the baseline.
func (g *GateDetector) Detect(p geo.Position) (Direction, bool) {
	side := SideSouth
	if p.Lat >= g.gateLat {
		side = SideNorth
	}
	prev := g.last
	g.last = side
	if prev == SideUnknown || prev == side {
		return 0, false
	}
	if side == SideNorth {
		return Northbound, true
	}
	return Southbound, true
}

func (g *GateDetector) LastSide() Side {
	return g.last
}

func (g *GateDetector) Reset() {
	g.last = SideUnknown
}
