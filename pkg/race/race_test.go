package race

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/course"
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/recorder"
	"github.com/mpapenbr/pylonrace-go/pkg/status"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
	"github.com/mpapenbr/pylonrace-go/testsupport/fakes"
)

const (
	baseLat = 33.0
	baseLon = -117.0
	unit    = 0.001
	speed   = 15.0
	dt      = 100 * time.Millisecond
)

// planar course scaled to roughly 100m per unit
func pt(lat, lon float64) geo.Position {
	return geo.Position{Lat: baseLat + lat*unit, Lon: baseLon + lon*unit}
}

func scenarioCourse(t *testing.T) *course.Course {
	t.Helper()
	c, err := course.New([]course.Waypoint{
		{Name: "GATE", Position: pt(0, 0)},
		{Name: "SW", Position: pt(0, -1)},
		{Name: "NW", Position: pt(1, -1)},
		{Name: "NE", Position: pt(1, 1)},
		{Name: "SE", Position: pt(0, 1)},
	}, course.WithName("scenario"))
	require.NoError(t, err)
	return c
}

type harness struct {
	ctl   *Controller
	veh   *fakes.Vehicle
	cmd   *fakes.Commander
	seq   *fakes.Sequencer
	clock *fakes.Clock
	rec   *recorder.Memory
	msgs  []model.StatusMessage
}

func newHarness(t *testing.T, start geo.Position, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		veh:   fakes.NewVehicle(start, speed),
		cmd:   &fakes.Commander{},
		seq:   &fakes.Sequencer{},
		clock: fakes.NewClock(),
		rec:   &recorder.Memory{},
	}
	reporter := status.NewReporter(status.WithClock(h.clock.Now),
		status.WithSink(status.SinkFunc(func(m model.StatusMessage) error {
			h.msgs = append(h.msgs, m)
			return nil
		})))
	params := func() config.RaceParams {
		return config.RaceParams{CruiseSpeed: speed, BankAngle: 45, Altitude: 30}
	}
	all := append([]Option{
		WithClock(h.clock.Now),
		WithReporter(reporter),
		WithRecorder(h.rec),
		WithParams(params),
	}, opts...)
	ctl, err := New(scenarioCourse(t), h.veh, h.cmd, h.seq, all...)
	require.NoError(t, err)
	h.ctl = ctl
	return h
}

func (h *harness) messages(p model.Priority, prefix string) []string {
	var ret []string
	for _, m := range h.msgs {
		if m.Priority == p && strings.HasPrefix(m.Text, prefix) {
			ret = append(ret, m.Text)
		}
	}
	return ret
}

func (h *harness) start(t *testing.T, laps float64) {
	t.Helper()
	sig := vehicle.Signal{ID: "attempt-1", Timeout: 5 * time.Minute, Arg1: laps}
	h.seq.Raise(sig)
	require.NoError(t, h.ctl.Start(context.Background(), sig))
}

// fly moves the vehicle along straight segments at constant speed and ticks
// the controller after every step. It stops when the race is no longer running.
func (h *harness) fly(path []geo.Position) {
	step := speed * dt.Seconds()
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		n := int(math.Ceil(geo.Distance(a, b) / step))
		v := vehicle.VelocityFromBearing(geo.Bearing(a, b), speed)
		for k := 1; k <= n; k++ {
			pos := b
			if k < n {
				pos = geo.Interpolate(a, b, float64(k)/float64(n))
			}
			h.veh.Pos = pos
			h.veh.Vel = v
			h.clock.Advance(dt)
			h.ctl.Tick(context.Background())
			if h.ctl.State() != Racing {
				return
			}
		}
	}
}

func lapPath(c *course.Course) []geo.Position {
	ret := make([]geo.Position, 0, course.Size+1)
	for i := 0; i <= course.Size; i++ {
		ret = append(ret, c.At(i).Position)
	}
	return ret
}

func TestNew_InvalidCourse(t *testing.T) {
	_, err := New(nil, &fakes.Vehicle{}, &fakes.Commander{}, &fakes.Sequencer{})
	assert.ErrorIs(t, err, ErrInvalidCourse)
}

func TestConcreteScenario(t *testing.T) {
	start := pt(-0.5, 0)
	h := newHarness(t, start)
	h.start(t, 1)
	assert.Equal(t, Racing, h.ctl.State())

	h.fly(append([]geo.Position{start}, lapPath(h.ctl.course)...))

	assert.Equal(t, Idle, h.ctl.State())
	laps := h.messages(model.PriorityMilestone, "LAP ")
	require.Len(t, laps, 1)
	assert.True(t, strings.HasPrefix(laps[0], "LAP 1:"))
	assert.Len(t, h.messages(model.PriorityMilestone, "Race complete: 1/1 laps"), 1)
	assert.Empty(t, h.messages(model.PriorityCritical, ""))

	require.Len(t, h.rec.Laps(), 1)
	lap := h.rec.Laps()[0]
	assert.Equal(t, 1, lap.Lap)
	assert.Greater(t, lap.LapTime, time.Duration(0))

	rs := h.ctl.RaceState()
	assert.Equal(t, 1, rs.CurrentLap)
	assert.False(t, rs.Active)
	best, ok := rs.BestLapTime.Get()
	require.True(t, ok)
	assert.Equal(t, lap.LapTime, best)
	assert.Equal(t, 1, rs.BestLapNumber)

	summary, ok := h.ctl.Summary()
	require.True(t, ok)
	assert.Equal(t, model.ReasonCompleted, summary.Reason)
	sBest, _ := summary.BestLap.Get()
	assert.Equal(t, lap.LapTime, sBest)
	assert.Equal(t, lap.LapTime, summary.MeanLap)
	assert.Equal(t, []string{"attempt-1"}, h.seq.Released)
	assert.Len(t, h.rec.Summaries(), 1)
	assert.Greater(t, h.cmd.Commands(), 0)
}

func TestLapCountingTwoLaps(t *testing.T) {
	start := pt(-0.5, 0)
	h := newHarness(t, start)
	h.start(t, 2)

	path := append([]geo.Position{start}, lapPath(h.ctl.course)...)
	// dip south of the gate line on the approach of lap 2
	path = append(path[:len(path)-1], pt(-0.2, 0.5))
	path = append(path, lapPath(h.ctl.course)...)
	h.fly(path)

	assert.Equal(t, Idle, h.ctl.State())
	recorded := h.rec.Laps()
	require.Len(t, recorded, 2)
	assert.Equal(t, 1, recorded[0].Lap)
	assert.Equal(t, 2, recorded[1].Lap)

	rs := h.ctl.RaceState()
	best, ok := rs.BestLapTime.Get()
	require.True(t, ok)
	assert.Equal(t, min(recorded[0].LapTime, recorded[1].LapTime), best)
	assert.Equal(t, 2, rs.CurrentLap)
	assert.Len(t, h.messages(model.PriorityMilestone, "Race complete: 2/2 laps"), 1)
}

func TestLapNotCountedWithoutGateCrossing(t *testing.T) {
	// start north of the gate line: no crossing ever happens on this course
	start := pt(0.3, 0)
	h := newHarness(t, start)
	h.start(t, 1)
	h.fly(append([]geo.Position{start}, lapPath(h.ctl.course)...))

	assert.Equal(t, Racing, h.ctl.State())
	assert.Equal(t, 0, h.ctl.RaceState().CurrentLap)
	assert.True(t, h.ctl.awaitingGate)

	// crossing the gate line completes the lap
	h.fly([]geo.Position{pt(0, 0), pt(-0.1, 0)})
	assert.Equal(t, Idle, h.ctl.State())
	assert.Len(t, h.rec.Laps(), 1)
}

func TestLapCountClamping(t *testing.T) {
	tests := []struct {
		name string
		arg  float64
		want int
	}{
		{"zero uses default", 0, DefaultLaps},
		{"negative uses default", -3, DefaultLaps},
		{"too many uses default", 150, DefaultLaps},
		{"max", 100, 100},
		{"regular", 3, 3},
		{"nan", math.NaN(), DefaultLaps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pt(-0.5, 0))
			h.start(t, tt.arg)
			assert.Equal(t, tt.want, h.ctl.Config().Laps)
			assert.Len(t, h.ctl.RaceState().LapStartTimes, tt.want+2)
		})
	}
}

func TestClampLaps(t *testing.T) {
	laps, rejected := ClampLaps(150)
	assert.Equal(t, DefaultLaps, laps)
	assert.True(t, rejected)
	laps, rejected = ClampLaps(0)
	assert.Equal(t, DefaultLaps, laps)
	assert.False(t, rejected)
}

func TestNavigationFailureEscalation(t *testing.T) {
	h := newHarness(t, pt(-0.5, 0))
	h.start(t, 3)
	h.cmd.FailAll(true)

	for i := 0; i < 9; i++ {
		h.clock.Advance(20 * time.Millisecond)
		h.ctl.Tick(context.Background())
		require.Equal(t, Racing, h.ctl.State(), "tick %d", i)
	}
	h.clock.Advance(20 * time.Millisecond)
	h.ctl.Tick(context.Background())
	assert.Equal(t, Idle, h.ctl.State())

	summary, ok := h.ctl.Summary()
	require.True(t, ok)
	assert.Equal(t, model.ReasonNavUnresponsive, summary.Reason)
	assert.Equal(t, 10, summary.NavFailures)
	rate, ok := summary.NavSuccessRate.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, rate)
	assert.Len(t, h.messages(model.PriorityCritical, "Race aborted: navigation unresponsive"), 1)

	h.cmd.FailAll(false)
	for i := 0; i < 5; i++ {
		h.clock.Advance(20 * time.Millisecond)
		h.ctl.Tick(context.Background())
	}
	assert.Equal(t, 0, h.cmd.Commands())
	assert.Equal(t, []string{"attempt-1"}, h.seq.Released)
}

func TestModeChangeAborts(t *testing.T) {
	h := newHarness(t, pt(-0.5, 0))
	h.start(t, 3)
	h.clock.Advance(dt)
	h.ctl.Tick(context.Background())
	commands := h.cmd.Commands()

	h.veh.FlightMode = vehicle.ModeRTL
	h.clock.Advance(dt)
	h.ctl.Tick(context.Background())
	assert.Equal(t, Idle, h.ctl.State())
	assert.Equal(t, commands, h.cmd.Commands())
	summary, _ := h.ctl.Summary()
	assert.Equal(t, model.ReasonModeChanged, summary.Reason)
	assert.Len(t, h.messages(model.PriorityCritical, "Race aborted: mode changed"), 1)
}

func TestPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(v *fakes.Vehicle)
		wantErr error
		reason  model.FinishReason
	}{
		{"ahrs", func(v *fakes.Vehicle) { v.Healthy = false }, ErrAHRSUnhealthy, model.ReasonAHRSUnhealthy},
		{"position", func(v *fakes.Vehicle) { v.HasPos = false }, ErrNoPositionFix, model.ReasonNoPositionFix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pt(-0.5, 0))
			tt.prepare(h.veh)
			sig := vehicle.Signal{ID: "attempt-x", Arg1: 3}
			err := h.ctl.Start(context.Background(), sig)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Idle, h.ctl.State())
			assert.Equal(t, []string{"attempt-x"}, h.seq.Released)
			summary, ok := h.ctl.Summary()
			require.True(t, ok)
			assert.Equal(t, tt.reason, summary.Reason)
			assert.Len(t, h.messages(model.PriorityCritical, "Race aborted"), 1)
			require.Len(t, h.rec.Races(), 1)
			assert.Equal(t, "attempt-x", h.rec.Races()[0].AttemptID)
			require.Len(t, h.rec.Summaries(), 1)
			assert.Equal(t, h.rec.Races()[0].RaceID, h.rec.Summaries()[0].RaceID)

			h.ctl.Tick(context.Background())
			assert.Equal(t, 0, h.cmd.Commands())
		})
	}
}

func TestFinishIdempotent(t *testing.T) {
	h := newHarness(t, pt(-0.5, 0))
	ctx := context.Background()

	h.ctl.Finish(ctx, model.ReasonShutdown)
	assert.Empty(t, h.seq.Released)

	h.start(t, 3)
	h.ctl.Finish(ctx, model.ReasonShutdown)
	h.ctl.Finish(ctx, model.ReasonShutdown)
	assert.Equal(t, []string{"attempt-1"}, h.seq.Released)
	assert.Len(t, h.rec.Summaries(), 1)

	summary, _ := h.ctl.Summary()
	_, ok := summary.NavSuccessRate.Get()
	assert.False(t, ok, "no commands were issued")
}

func TestStartSupersedesRunningRace(t *testing.T) {
	h := newHarness(t, pt(-0.5, 0))
	h.start(t, 3)
	first := h.ctl.RaceID()

	sig := vehicle.Signal{ID: "attempt-2", Arg1: 2}
	require.NoError(t, h.ctl.Start(context.Background(), sig))
	assert.Equal(t, Racing, h.ctl.State())
	assert.NotEqual(t, first, h.ctl.RaceID())
	assert.Equal(t, "attempt-2", h.ctl.SignalID())
	assert.Equal(t, []string{"attempt-1"}, h.seq.Released)
	assert.Len(t, h.rec.Races(), 2)
}

func TestCornerValidation(t *testing.T) {
	h := newHarness(t, pt(-0.5, 0))
	h.start(t, 3)
	sw := h.ctl.course.At(course.SWIndex)
	h.ctl.rs.CurrentTargetIndex = course.SWIndex

	h.veh.Pos = geo.OffsetNE(sw.Position, 0, 10)
	h.clock.Advance(dt)
	h.ctl.Tick(context.Background())

	rs := h.ctl.RaceState()
	assert.True(t, rs.CornerValidated[course.SWIndex])
	assert.Equal(t, course.NWIndex, rs.CurrentTargetIndex)
	assert.Len(t, h.messages(model.PriorityMilestone, "SW validated"), 1)

	// NW is left at the advance threshold without coming closer than 15m
	nw := h.ctl.course.At(course.NWIndex)
	h.veh.Pos = geo.OffsetNE(nw.Position, -20, 0)
	h.clock.Advance(dt)
	h.ctl.Tick(context.Background())
	rs = h.ctl.RaceState()
	assert.False(t, rs.CornerValidated[course.NWIndex])
	assert.Equal(t, course.NEIndex, rs.CurrentTargetIndex)
	assert.Len(t, h.messages(model.PriorityRoutine, "NW wide"), 1)
}

func TestPositionUnavailableSkipsTick(t *testing.T) {
	h := newHarness(t, pt(-0.5, 0))
	h.start(t, 3)
	h.veh.HasPos = false
	h.clock.Advance(dt)
	h.ctl.Tick(context.Background())
	assert.Equal(t, Racing, h.ctl.State())
	assert.Equal(t, 0, h.cmd.Commands())
	assert.Equal(t, 0, h.ctl.NavStats().TotalFailures)
}
