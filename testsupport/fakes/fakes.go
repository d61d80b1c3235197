// Package fakes provides scripted stand-ins for the autopilot, the mission
// sequencer and the wall clock.
package fakes

import (
	"errors"
	"sync"
	"time"

	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

var ErrRejected = errors.New("command rejected")

type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Vehicle returns whatever its fields hold.
type Vehicle struct {
	Pos        geo.Position
	HasPos     bool
	Vel        vehicle.Velocity
	HasVel     bool
	FlightMode vehicle.Mode
	Healthy    bool
}

// NewVehicle returns a healthy vehicle in guided mode at pos flying north.
func NewVehicle(pos geo.Position, speed float64) *Vehicle {
	return &Vehicle{
		Pos:        pos,
		HasPos:     true,
		Vel:        vehicle.Velocity{North: speed},
		HasVel:     true,
		FlightMode: vehicle.ModeGuided,
		Healthy:    true,
	}
}

func (v *Vehicle) Position() (geo.Position, bool)     { return v.Pos, v.HasPos }
func (v *Vehicle) Velocity() (vehicle.Velocity, bool) { return v.Vel, v.HasVel }
func (v *Vehicle) Mode() vehicle.Mode                 { return v.FlightMode }
func (v *Vehicle) AHRSHealthy() bool                  { return v.Healthy }

// Commander records every accepted command. The Fail flags make the
// corresponding mechanism return ErrRejected.
type Commander struct {
	FailAbsolute    bool
	FailIncremental bool
	FailVelocity    bool
	FailSpeed       bool

	Absolute    []geo.Position
	Incremental []geo.Position
	Velocities  []vehicle.Velocity
	Speeds      []float64
}

func (c *Commander) FailAll(fail bool) {
	c.FailAbsolute = fail
	c.FailIncremental = fail
	c.FailVelocity = fail
}

// Commands is the number of accepted navigation commands.
func (c *Commander) Commands() int {
	return len(c.Absolute) + len(c.Incremental) + len(c.Velocities)
}

// LastTarget returns the most recent absolute target.
func (c *Commander) LastTarget() (geo.Position, bool) {
	if len(c.Absolute) == 0 {
		return geo.Position{}, false
	}
	return c.Absolute[len(c.Absolute)-1], true
}

func (c *Commander) SetTargetLocation(target geo.Position) error {
	if c.FailAbsolute {
		return ErrRejected
	}
	c.Absolute = append(c.Absolute, target)
	return nil
}

func (c *Commander) UpdateTargetLocation(_, target geo.Position) error {
	if c.FailIncremental {
		return ErrRejected
	}
	c.Incremental = append(c.Incremental, target)
	return nil
}

func (c *Commander) SetTargetVelocity(v vehicle.Velocity) error {
	if c.FailVelocity {
		return ErrRejected
	}
	c.Velocities = append(c.Velocities, v)
	return nil
}

func (c *Commander) SetDesiredSpeed(mps float64) error {
	if c.FailSpeed {
		return ErrRejected
	}
	c.Speeds = append(c.Speeds, mps)
	return nil
}

// Sequencer holds at most one raised signal.
type Sequencer struct {
	mu       sync.Mutex
	signal   *vehicle.Signal
	Released []string
}

func (s *Sequencer) Raise(sig vehicle.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signal = &sig
}

func (s *Sequencer) Poll() (vehicle.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signal == nil {
		return vehicle.Signal{}, false
	}
	return *s.signal, true
}

func (s *Sequencer) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Released = append(s.Released, id)
	if s.signal != nil && s.signal.ID == id {
		s.signal = nil
	}
}
