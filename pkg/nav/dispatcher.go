// Package nav pushes navigation targets to the autopilot through an ordered
// chain of delivery mechanisms and aborts on sustained failure.
package nav

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/utils/ratelimit"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

var (
	ErrInvalidTarget       = errors.New("invalid navigation target")
	ErrNoPosition          = errors.New("current position unavailable")
	ErrAllStrategiesFailed = errors.New("all navigation strategies failed")
	ErrUnresponsive        = errors.New("navigation unresponsive")
)

const (
	DefaultMinInterval            = 50 * time.Millisecond
	DefaultMaxConsecutiveFailures = 10
	DefaultFailureLogInterval     = time.Second
)

type Stats struct {
	ConsecutiveFailures int
	TotalSuccesses      int
	TotalFailures       int
	LastSuccess         time.Time
	LastStrategy        string
}

// SuccessRate in percent. ok is false if no command was attempted.
func (s Stats) SuccessRate() (rate float64, ok bool) {
	total := s.TotalSuccesses + s.TotalFailures
	if total == 0 {
		return 0, false
	}
	return 100 * float64(s.TotalSuccesses) / float64(total), true
}

type Dispatcher struct {
	vehicle        vehicle.Vehicle
	commander      vehicle.Commander
	strategies     []Strategy
	minInterval    time.Duration
	maxConsecutive int
	cruise         float64
	stats          Stats
	tripped        bool
	now            func() time.Time
	limiter        *ratelimit.Limiter
	l              *log.Logger
	commands       metric.Int64Counter
}

type Option func(d *Dispatcher)

func WithMinInterval(dur time.Duration) Option {
	return func(d *Dispatcher) {
		d.minInterval = dur
	}
}

func WithMaxConsecutiveFailures(n int) Option {
	return func(d *Dispatcher) {
		d.maxConsecutive = n
	}
}

func WithStrategies(s ...Strategy) Option {
	return func(d *Dispatcher) {
		d.strategies = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		d.l = l
	}
}

func WithLimiter(lim *ratelimit.Limiter) Option {
	return func(d *Dispatcher) {
		d.limiter = lim
	}
}

func NewDispatcher(v vehicle.Vehicle, c vehicle.Commander, opts ...Option) *Dispatcher {
	ret := &Dispatcher{
		vehicle:        v,
		commander:      c,
		minInterval:    DefaultMinInterval,
		maxConsecutive: DefaultMaxConsecutiveFailures,
		now:            time.Now,
		l:              log.Default().Named("nav"),
	}
	ret.strategies = DefaultStrategies(c)
	for _, opt := range opts {
		opt(ret)
	}
	if ret.limiter == nil {
		ret.limiter = ratelimit.New(DefaultFailureLogInterval, ratelimit.WithClock(ret.now))
	}
	ret.setupMetrics()
	return ret
}

func (d *Dispatcher) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("pylonrace.nav")
	var err error
	if d.commands, err = meter.Int64Counter("pylonrace.nav.commands",
		metric.WithDescription("Number of navigation command attempts"),
		metric.WithUnit("{count}")); err != nil {
		d.l.Error("failed to register metric", log.ErrorField(err))
	}
}

// Reset clears all counters for a new race and sets the cruise airspeed.
func (d *Dispatcher) Reset(cruise float64) {
	d.stats = Stats{}
	d.tripped = false
	d.cruise = cruise
	d.limiter.Reset()
}

func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// Tripped reports whether the consecutive failure limit was reached.
func (d *Dispatcher) Tripped() bool {
	return d.tripped
}

// Send pushes target at altitude alt. Requests within the minimum interval
// after the last successful command are no-op successes. Once the consecutive
// failure limit is reached every call returns ErrUnresponsive without
// commanding the vehicle until Reset is called.
//
//nolint:funlen // by design
func (d *Dispatcher) Send(target geo.Position, alt float64) error {
	if d.tripped {
		return ErrUnresponsive
	}
	if target.IsZero() {
		return ErrInvalidTarget
	}
	current, ok := d.vehicle.Position()
	if !ok {
		return ErrNoPosition
	}
	now := d.now()
	if !d.stats.LastSuccess.IsZero() && now.Sub(d.stats.LastSuccess) < d.minInterval {
		return nil
	}
	target.Alt = alt
	cmd := Command{Current: current, Target: target, Cruise: d.cruise}

	var errs error
	for _, s := range d.strategies {
		err := s.Send(cmd)
		if err == nil {
			d.onSuccess(now, s.Name)
			return nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}

	d.stats.ConsecutiveFailures++
	d.stats.TotalFailures++
	d.record("none", false)
	if d.limiter.AllowAt("failure", now) {
		d.l.Warn("navigation command failed",
			log.Int("consecutive", d.stats.ConsecutiveFailures),
			log.Int("total", d.stats.TotalFailures),
			log.ErrorField(errs))
	}
	if d.maxConsecutive > 0 && d.stats.ConsecutiveFailures >= d.maxConsecutive {
		d.tripped = true
		d.l.Error("navigation unresponsive",
			log.Int("consecutive", d.stats.ConsecutiveFailures))
		return fmt.Errorf("%w: %d consecutive failures: %w",
			ErrUnresponsive, d.stats.ConsecutiveFailures, errs)
	}
	return fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errs)
}

func (d *Dispatcher) onSuccess(now time.Time, strategy string) {
	d.stats.ConsecutiveFailures = 0
	d.stats.LastSuccess = now
	d.stats.TotalSuccesses++
	d.stats.LastStrategy = strategy
	d.record(strategy, true)
	if err := d.commander.SetDesiredSpeed(d.cruise); err != nil && d.limiter.AllowAt("airspeed", now) {
		d.l.Warn("could not set desired airspeed",
			log.Float64("cruise", d.cruise), log.ErrorField(err))
	}
}

func (d *Dispatcher) record(strategy string, success bool) {
	if d.commands == nil {
		return
	}
	d.commands.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.Bool("success", success)))
}
