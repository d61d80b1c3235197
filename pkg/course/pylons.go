package course

import "github.com/mpapenbr/pylonrace-go/pkg/geo"

// Offset is a displacement in meters relative to a pylon.
type Offset struct {
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
}

// CornerOffsets places the corners around the pylons. SW and NW are relative
// to the west pylon, NE and SE to the east pylon.
type CornerOffsets struct {
	SW Offset `yaml:"sw"`
	NW Offset `yaml:"nw"`
	NE Offset `yaml:"ne"`
	SE Offset `yaml:"se"`
}

// DefaultCornerOffsets keeps the corners 20m outside and 15m beside each pylon.
func DefaultCornerOffsets() CornerOffsets {
	return CornerOffsets{
		SW: Offset{North: -15, East: -20},
		NW: Offset{North: 15, East: -20},
		NE: Offset{North: 15, East: 20},
		SE: Offset{North: -15, East: 20},
	}
}

// FromPylons derives the course from the two pylon reference points.
func FromPylons(west, east, gate geo.Position, offsets CornerOffsets, opts ...Option) (*Course, error) {
	return New([]Waypoint{
		{Name: "GATE", Position: gate},
		{Name: "SW", Position: geo.OffsetNE(west, offsets.SW.North, offsets.SW.East)},
		{Name: "NW", Position: geo.OffsetNE(west, offsets.NW.North, offsets.NW.East)},
		{Name: "NE", Position: geo.OffsetNE(east, offsets.NE.North, offsets.NE.East)},
		{Name: "SE", Position: geo.OffsetNE(east, offsets.SE.North, offsets.SE.East)},
	}, opts...)
}
