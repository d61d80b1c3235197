// Package sim is a kinematic fixed-wing model with a simple autopilot and a
// mission sequencer, used to fly the race controller without hardware.
package sim

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.einride.tech/pid"

	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/guidance"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

var (
	ErrRejected  = errors.New("command rejected")
	ErrNotGuided = errors.New("vehicle not in guided mode")
)

type Mechanism int

const (
	Absolute Mechanism = iota
	Incremental
	Velocity
	Airspeed
)

// TurnRate in deg/s for a coordinated turn at bank degrees and speed m/s.
func TurnRate(speed, bankDeg float64) float64 {
	if speed <= 0 {
		return 0
	}
	return math.Tan(bankDeg*math.Pi/180) * guidance.Gravity / speed * 180 / math.Pi
}

// Airframe implements vehicle.Vehicle and vehicle.Commander. All methods are
// safe for concurrent use.
type Airframe struct {
	mu           sync.Mutex
	pos          geo.Position
	heading      float64 // deg
	bank         float64 // deg
	speed        float64 // m/s
	desiredSpeed float64
	maxBank      float64
	rollRate     float64 // deg/s
	accel        float64 // m/s²
	mode         vehicle.Mode
	ahrsHealthy  bool
	hasFix       bool
	target       geo.Position
	hasTarget    bool
	velocity     vehicle.Velocity
	hasVelocity  bool
	headingPID   pid.Controller
	failing      map[Mechanism]bool
}

type Option func(a *Airframe)

func WithPosition(p geo.Position, heading float64) Option {
	return func(a *Airframe) {
		a.pos = p
		a.heading = heading
	}
}

func WithSpeed(mps float64) Option {
	return func(a *Airframe) {
		a.speed = mps
		a.desiredSpeed = mps
	}
}

func WithMaxBank(deg float64) Option {
	return func(a *Airframe) {
		a.maxBank = deg
	}
}

func WithMode(m vehicle.Mode) Option {
	return func(a *Airframe) {
		a.mode = m
	}
}

func NewAirframe(opts ...Option) *Airframe {
	ret := &Airframe{
		speed:        15,
		desiredSpeed: 15,
		maxBank:      45,
		rollRate:     90,
		accel:        2,
		mode:         vehicle.ModeAuto,
		ahrsHealthy:  true,
		hasFix:       true,
		failing:      make(map[Mechanism]bool),
		headingPID: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: 1.2,
				IntegralGain:     0.02,
				DerivativeGain:   0.1,
			},
		},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (a *Airframe) Position() (geo.Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos, a.hasFix
}

func (a *Airframe) Velocity() (vehicle.Velocity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return vehicle.VelocityFromBearing(a.heading, a.speed), a.hasFix
}

func (a *Airframe) Mode() vehicle.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *Airframe) AHRSHealthy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ahrsHealthy
}

func (a *Airframe) Heading() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heading
}

func (a *Airframe) Bank() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bank
}

func (a *Airframe) SetMode(m vehicle.Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m != a.mode {
		a.headingPID.Reset()
		a.hasTarget = false
		a.hasVelocity = false
	}
	a.mode = m
}

func (a *Airframe) SetAHRSHealthy(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ahrsHealthy = ok
}

func (a *Airframe) SetFix(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hasFix = ok
}

// Fail makes the given command mechanisms return ErrRejected.
func (a *Airframe) Fail(fail bool, m ...Mechanism) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, mech := range m {
		a.failing[mech] = fail
	}
}

func (a *Airframe) accept(m Mechanism) error {
	if a.failing[m] {
		return ErrRejected
	}
	if a.mode != vehicle.ModeGuided {
		return ErrNotGuided
	}
	return nil
}

func (a *Airframe) SetTargetLocation(target geo.Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accept(Absolute); err != nil {
		return err
	}
	a.target = target
	a.hasTarget = true
	a.hasVelocity = false
	return nil
}

func (a *Airframe) UpdateTargetLocation(_, target geo.Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accept(Incremental); err != nil {
		return err
	}
	a.target = target
	a.hasTarget = true
	a.hasVelocity = false
	return nil
}

func (a *Airframe) SetTargetVelocity(v vehicle.Velocity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accept(Velocity); err != nil {
		return err
	}
	a.velocity = v
	a.hasVelocity = true
	a.hasTarget = false
	return nil
}

func (a *Airframe) SetDesiredSpeed(mps float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failing[Airspeed] {
		return ErrRejected
	}
	if mps > 0 {
		a.desiredSpeed = mps
	}
	return nil
}

// Step advances the model by dt.
func (a *Airframe) Step(dt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}
	commanded := 0.0
	if desired, ok := a.desiredHeading(); ok {
		a.headingPID.Update(pid.ControllerInput{
			ReferenceSignal:  geo.HeadingError(a.heading, desired),
			ActualSignal:     0,
			SamplingInterval: dt,
		})
		commanded = lo.Clamp(a.headingPID.State.ControlSignal, -a.maxBank, a.maxBank)
	}
	maxRoll := a.rollRate * sec
	a.bank += lo.Clamp(commanded-a.bank, -maxRoll, maxRoll)

	maxAccel := a.accel * sec
	a.speed += lo.Clamp(a.desiredSpeed-a.speed, -maxAccel, maxAccel)

	a.heading = geo.NormalizeBearing(a.heading + TurnRate(a.speed, a.bank)*sec)
	a.pos = geo.Offset(a.pos, a.heading, a.speed*sec)
}

func (a *Airframe) desiredHeading() (float64, bool) {
	if a.mode != vehicle.ModeGuided {
		return 0, false
	}
	switch {
	case a.hasVelocity:
		if a.velocity.Groundspeed() == 0 {
			return 0, false
		}
		return geo.NormalizeBearing(math.Atan2(a.velocity.East, a.velocity.North) * 180 / math.Pi), true
	case a.hasTarget:
		return geo.Bearing(a.pos, a.target), true
	default:
		return 0, false
	}
}
