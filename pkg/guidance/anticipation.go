// Package guidance computes where the aircraft should head next: the advance
// threshold derived from the physical turn radius and the blended lookahead target.
package guidance

import (
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/utils/ratelimit"
)

const (
	Gravity            = 9.81
	MinAdvanceDistance = 15.0
	MaxAdvanceDistance = 50.0
	// MinBankAngle is 0.01 rad. Below this the turn radius is unbounded.
	MinBankAngle = 0.01 * 180 / math.Pi
)

// TurnRadius returns v²/(g·tan(bank)). ok is false if the bank angle is too
// small or tan(bank) is not a usable positive number.
func TurnRadius(groundspeed, bankDeg float64) (r float64, ok bool) {
	if math.IsNaN(bankDeg) || bankDeg < MinBankAngle {
		return 0, false
	}
	t := math.Tan(bankDeg * math.Pi / 180)
	if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
		return 0, false
	}
	r = groundspeed * groundspeed / (Gravity * t)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// AdvanceThreshold is the distance to a waypoint at which the controller
// switches to the next one: turn radius times factor, clamped to [15,50] m.
// Degenerate bank angles yield the upper bound.
func AdvanceThreshold(groundspeed, bankDeg, factor float64) float64 {
	r, ok := TurnRadius(groundspeed, bankDeg)
	if !ok {
		return MaxAdvanceDistance
	}
	v := r * factor
	if math.IsNaN(v) {
		return MaxAdvanceDistance
	}
	return lo.Clamp(v, MinAdvanceDistance, MaxAdvanceDistance)
}

// Anticipator wraps AdvanceThreshold with a configured factor and a rate
// limited warning for degenerate bank angles.
type Anticipator struct {
	factor  float64
	limiter *ratelimit.Limiter
	l       *log.Logger
}

type AnticipatorOption func(a *Anticipator)

func WithFactor(f float64) AnticipatorOption {
	return func(a *Anticipator) {
		a.factor = f
	}
}

func WithAnticipatorLogger(l *log.Logger) AnticipatorOption {
	return func(a *Anticipator) {
		a.l = l
	}
}

func WithAnticipatorLimiter(lim *ratelimit.Limiter) AnticipatorOption {
	return func(a *Anticipator) {
		a.limiter = lim
	}
}

func NewAnticipator(opts ...AnticipatorOption) *Anticipator {
	ret := &Anticipator{
		factor:  1.0,
		limiter: ratelimit.New(5 * time.Second),
		l:       log.Default().Named("guidance"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (a *Anticipator) Threshold(groundspeed, bankDeg float64) float64 {
	if _, ok := TurnRadius(groundspeed, bankDeg); !ok && a.limiter.Allow("bank") {
		a.l.Warn("bank angle unusable for turn radius, using max advance distance",
			log.Float64("bank", bankDeg),
			log.Float64("threshold", MaxAdvanceDistance))
	}
	return AdvanceThreshold(groundspeed, bankDeg, a.factor)
}
