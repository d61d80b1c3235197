// Package vehicle defines what the race controller needs from the autopilot
// and the surrounding mission sequencer. Implementations must answer from
// cached state and never block.
package vehicle

import (
	"math"
	"time"

	"github.com/mpapenbr/pylonrace-go/pkg/geo"
)

type Mode string

const (
	ModeManual Mode = "MANUAL"
	ModeAuto   Mode = "AUTO"
	ModeGuided Mode = "GUIDED"
	ModeRTL    Mode = "RTL"
)

// Velocity in the local north/east/down frame, m/s.
type Velocity struct {
	North float64
	East  float64
	Down  float64
}

func (v Velocity) Groundspeed() float64 {
	return math.Hypot(v.North, v.East)
}

// VelocityFromBearing returns a horizontal velocity of speed m/s along bearing.
func VelocityFromBearing(bearing, speed float64) Velocity {
	r := bearing * math.Pi / 180
	return Velocity{North: speed * math.Cos(r), East: speed * math.Sin(r)}
}

// Vehicle is the read side of the autopilot.
type Vehicle interface {
	Position() (geo.Position, bool)
	Velocity() (Velocity, bool)
	Mode() Mode
	AHRSHealthy() bool
}

// Commander is the command side of the autopilot. Each method corresponds to
// one delivery mechanism of the navigation dispatcher.
type Commander interface {
	SetTargetLocation(target geo.Position) error
	UpdateTargetLocation(current, target geo.Position) error
	SetTargetVelocity(v Velocity) error
	SetDesiredSpeed(mps float64) error
}

// Signal is raised by the mission sequencer once per scripted-control window.
type Signal struct {
	ID      string
	Timeout time.Duration
	Arg1    float64 // requested lap count
	Arg2    float64 // unused
}

// Sequencer is the external mission sequencer.
type Sequencer interface {
	// Poll returns the currently raised signal, if any.
	Poll() (Signal, bool)
	// Release hands control back; id is the attempt id of the signal.
	Release(id string)
}
