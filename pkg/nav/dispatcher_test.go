package nav

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/testsupport/fakes"
)

var (
	here   = geo.Position{Lat: 33.0, Lon: -117.0, Alt: 30}
	target = geo.Position{Lat: 33.001, Lon: -117.0}
)

func setup(opts ...Option) (*Dispatcher, *fakes.Vehicle, *fakes.Commander, *fakes.Clock) {
	clock := fakes.NewClock()
	v := fakes.NewVehicle(here, 20)
	c := &fakes.Commander{}
	d := NewDispatcher(v, c, append([]Option{WithClock(clock.Now)}, opts...)...)
	d.Reset(18)
	return d, v, c, clock
}

func TestSendRejectsInvalidInput(t *testing.T) {
	d, v, c, _ := setup()
	assert.ErrorIs(t, d.Send(geo.Position{}, 30), ErrInvalidTarget)

	v.HasPos = false
	assert.ErrorIs(t, d.Send(target, 30), ErrNoPosition)

	assert.Equal(t, 0, c.Commands())
	assert.Equal(t, Stats{}, d.Stats())
}

func TestSendFallbackOrder(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(c *fakes.Commander)
		strategy string
	}{
		{"absolute", func(c *fakes.Commander) {}, StrategyAbsolute},
		{"incremental", func(c *fakes.Commander) { c.FailAbsolute = true }, StrategyIncremental},
		{"velocity", func(c *fakes.Commander) {
			c.FailAbsolute = true
			c.FailIncremental = true
		}, StrategyVelocity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, c, _ := setup()
			tt.prepare(c)
			assert.NoError(t, d.Send(target, 30))
			assert.Equal(t, 1, c.Commands())
			assert.Equal(t, tt.strategy, d.Stats().LastStrategy)
			assert.Equal(t, []float64{18}, c.Speeds)
		})
	}
}

func TestSendAbsoluteUsesAltitude(t *testing.T) {
	d, _, c, _ := setup()
	assert.NoError(t, d.Send(target, 42))
	got, ok := c.LastTarget()
	assert.True(t, ok)
	assert.Equal(t, 42.0, got.Alt)
	assert.Equal(t, target.Lat, got.Lat)
}

func TestSendVelocityPointsAtTarget(t *testing.T) {
	d, _, c, _ := setup()
	c.FailAbsolute = true
	c.FailIncremental = true
	assert.NoError(t, d.Send(target, 30))
	v := c.Velocities[0]
	assert.InDelta(t, 18.0, v.North, 1e-6)
	assert.InDelta(t, 0.0, v.East, 1e-6)
}

func TestSendAllFail(t *testing.T) {
	d, _, c, _ := setup()
	c.FailAll(true)
	err := d.Send(target, 30)
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
	assert.ErrorIs(t, err, fakes.ErrRejected)
	var inner error
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		if !errors.Is(e, ErrAllStrategiesFailed) {
			inner = e
		}
	}
	assert.Len(t, multierr.Errors(inner), 3)
	assert.Equal(t, 1, d.Stats().ConsecutiveFailures)
	assert.Equal(t, 1, d.Stats().TotalFailures)
	assert.Empty(t, c.Speeds)
}

func TestSendThrottle(t *testing.T) {
	d, _, c, clock := setup()
	assert.NoError(t, d.Send(target, 30))
	clock.Advance(10 * time.Millisecond)
	assert.NoError(t, d.Send(target, 30))
	assert.Equal(t, 1, c.Commands(), "throttled request must not reach the vehicle")

	clock.Advance(45 * time.Millisecond)
	assert.NoError(t, d.Send(target, 30))
	assert.Equal(t, 2, c.Commands())
	assert.Equal(t, 2, d.Stats().TotalSuccesses)
}

func TestSendFailureDoesNotThrottle(t *testing.T) {
	d, _, c, clock := setup()
	c.FailAll(true)
	assert.Error(t, d.Send(target, 30))
	c.FailAll(false)
	clock.Advance(time.Millisecond)
	assert.NoError(t, d.Send(target, 30))
	assert.Equal(t, 1, c.Commands())
	assert.Equal(t, 0, d.Stats().ConsecutiveFailures)
}

func TestSendUnresponsive(t *testing.T) {
	d, _, c, clock := setup(WithMaxConsecutiveFailures(10))
	c.FailAll(true)
	for i := 1; i < 10; i++ {
		err := d.Send(target, 30)
		assert.ErrorIs(t, err, ErrAllStrategiesFailed)
		assert.NotErrorIs(t, err, ErrUnresponsive)
		clock.Advance(20 * time.Millisecond)
	}
	err := d.Send(target, 30)
	assert.ErrorIs(t, err, ErrUnresponsive)
	assert.True(t, d.Tripped())
	assert.Equal(t, 10, d.Stats().ConsecutiveFailures)

	c.FailAll(false)
	assert.ErrorIs(t, d.Send(target, 30), ErrUnresponsive)
	assert.Equal(t, 0, c.Commands())

	d.Reset(18)
	assert.False(t, d.Tripped())
	assert.NoError(t, d.Send(target, 30))
	assert.Equal(t, 1, c.Commands())
}

func TestSuccessResetsConsecutive(t *testing.T) {
	d, _, c, clock := setup()
	c.FailAll(true)
	for i := 0; i < 9; i++ {
		assert.Error(t, d.Send(target, 30))
	}
	c.FailAll(false)
	assert.NoError(t, d.Send(target, 30))
	c.FailAll(true)
	clock.Advance(time.Second)
	for i := 0; i < 9; i++ {
		assert.NotErrorIs(t, d.Send(target, 30), ErrUnresponsive)
	}
	s := d.Stats()
	assert.Equal(t, 9, s.ConsecutiveFailures)
	assert.Equal(t, 18, s.TotalFailures)
	rate, ok := s.SuccessRate()
	assert.True(t, ok)
	assert.InDelta(t, 100.0/19.0, rate, 1e-9)
}

func TestAirspeedFailureIsNotNavFailure(t *testing.T) {
	d, _, c, _ := setup()
	c.FailSpeed = true
	assert.NoError(t, d.Send(target, 30))
	assert.Equal(t, 0, d.Stats().ConsecutiveFailures)
	assert.Equal(t, 1, d.Stats().TotalSuccesses)
}
