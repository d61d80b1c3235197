// Package race contains the race state machine. A Controller turns the five
// point course into navigation commands, times laps and handles the race
// lifecycle. It is driven by a single caller; it is not safe for concurrent use.
package race

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/course"
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/guidance"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/nav"
	"github.com/mpapenbr/pylonrace-go/pkg/recorder"
	"github.com/mpapenbr/pylonrace-go/pkg/status"
	"github.com/mpapenbr/pylonrace-go/pkg/utils/ratelimit"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

var (
	ErrInvalidCourse = errors.New("course must have exactly 5 waypoints")
	ErrAHRSUnhealthy = errors.New("AHRS unhealthy")
	ErrNoPositionFix = errors.New("no position fix")
)

type (
	Option     func(*Controller)
	Controller struct {
		course    *course.Course
		vehicle   vehicle.Vehicle
		commander vehicle.Commander
		sequencer vehicle.Sequencer

		guidance    config.Guidance
		params      func() config.RaceParams
		navOpts     []nav.Option
		dispatcher  *nav.Dispatcher
		anticipator *guidance.Anticipator
		blender     *guidance.Blender
		gate        *course.GateDetector
		reporter    *status.Reporter
		recorder    recorder.Recorder
		limiter     *ratelimit.Limiter
		tracer      trace.Tracer
		now         func() time.Time
		l           *log.Logger

		state        State
		rs           RaceState
		cfg          Config
		signal       vehicle.Signal
		raceID       uuid.UUID
		span         trace.Span
		latched      bool
		awaitingGate bool
		closest      [course.Size]float64
		summary      null.Val[model.RaceSummary]
	}
)

func WithGuidance(g config.Guidance) Option {
	return func(c *Controller) {
		c.guidance = g
	}
}

// WithParams sets the provider of vehicle parameters. It is called once per race start.
func WithParams(p func() config.RaceParams) Option {
	return func(c *Controller) {
		c.params = p
	}
}

func WithReporter(r *status.Reporter) Option {
	return func(c *Controller) {
		c.reporter = r
	}
}

func WithRecorder(r recorder.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.l = l
	}
}

// WithNavOptions passes additional options to the navigation dispatcher.
func WithNavOptions(opts ...nav.Option) Option {
	return func(c *Controller) {
		c.navOpts = append(c.navOpts, opts...)
	}
}

//nolint:whitespace // false positive
func New(
	crs *course.Course,
	v vehicle.Vehicle,
	cmd vehicle.Commander,
	seq vehicle.Sequencer,
	opts ...Option,
) (*Controller, error) {
	if crs == nil || crs.Len() != course.Size {
		return nil, ErrInvalidCourse
	}
	ret := &Controller{
		course:    crs,
		vehicle:   v,
		commander: cmd,
		sequencer: seq,
		guidance:  config.DefaultGuidance(),
		params:    config.DefaultRaceParams,
		recorder:  recorder.Nop{},
		now:       time.Now,
		l:         log.Default().Named("race"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.reporter == nil {
		ret.reporter = status.NewReporter(status.WithClock(ret.now))
	}
	g := ret.guidance
	ret.limiter = ratelimit.New(g.FailureLogInterval, ratelimit.WithClock(ret.now))
	ret.anticipator = guidance.NewAnticipator(
		guidance.WithFactor(g.AnticipationFactor),
		guidance.WithAnticipatorLogger(ret.l),
		guidance.WithAnticipatorLimiter(ratelimit.New(5*time.Second, ratelimit.WithClock(ret.now))),
	)
	blenderOpts := []guidance.BlenderOption{
		guidance.WithLookaheadTime(g.LookaheadTime),
		guidance.WithBlenderLogger(ret.l),
	}
	if g.FixedLookahead > 0 {
		blenderOpts = append(blenderOpts, guidance.WithFixedLookahead(g.FixedLookahead))
	}
	ret.blender = guidance.NewBlender(blenderOpts...)
	ret.dispatcher = nav.NewDispatcher(v, cmd, append([]nav.Option{
		nav.WithClock(ret.now),
		nav.WithMinInterval(g.NavMinInterval),
		nav.WithMaxConsecutiveFailures(g.MaxNavFailures),
		nav.WithLogger(ret.l.Named("nav")),
		nav.WithLimiter(ratelimit.New(g.FailureLogInterval, ratelimit.WithClock(ret.now))),
	}, ret.navOpts...)...)
	ret.gate = course.NewGateDetector(crs.Gate())
	ret.tracer = otel.Tracer("pylonrace.race")
	return ret, nil
}

func (c *Controller) State() State { return c.state }

// RaceState returns a copy of the current race state.
func (c *Controller) RaceState() RaceState { return c.rs.clone() }

func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) RaceID() uuid.UUID { return c.raceID }

// SignalID is the attempt id of the most recent race signal.
func (c *Controller) SignalID() string { return c.signal.ID }

// Summary of the last finished race attempt.
func (c *Controller) Summary() (model.RaceSummary, bool) { return c.summary.Get() }

func (c *Controller) NavStats() nav.Stats { return c.dispatcher.Stats() }

// Start begins a new race attempt for sig. A race still in progress is
// finished first. If a precondition fails the attempt is finished right away
// and the returned error names the reason.
//
//nolint:funlen // by design
func (c *Controller) Start(ctx context.Context, sig vehicle.Signal) error {
	if c.state != Idle {
		c.Finish(ctx, model.ReasonSuperseded)
	}
	now := c.now()
	c.signal = sig
	c.raceID = uuid.New()

	requested := lapArg(sig.Arg1)
	laps, rejected := ClampLaps(requested)
	switch {
	case rejected:
		c.l.Warn("lap count out of range, using default",
			log.Int("requested", requested), log.Int("max", MaxLaps), log.Int("laps", laps))
	case requested <= 0:
		c.l.Info("no lap count given, using default", log.Int("laps", laps))
	}
	params := c.params()
	c.cfg = Config{
		Laps:        laps,
		CruiseSpeed: params.CruiseSpeed,
		BankAngle:   params.BankAngle,
		Altitude:    params.Altitude,
	}
	c.rs = RaceState{}
	c.latched = false
	c.awaitingGate = false
	c.resetClosest()
	c.dispatcher.Reset(c.cfg.CruiseSpeed)
	c.startSpan(ctx)

	// recorded before the preconditions, the summary of an aborted start refers to it
	if err := c.recorder.RecordRace(ctx, model.RaceRecord{
		RaceID:      c.raceID,
		AttemptID:   sig.ID,
		Course:      c.course.Name(),
		Laps:        laps,
		CruiseSpeed: c.cfg.CruiseSpeed,
		BankAngle:   c.cfg.BankAngle,
		Altitude:    c.cfg.Altitude,
		StartedAt:   now,
	}); err != nil {
		c.l.Warn("could not record race start", log.ErrorField(err))
	}
	// preconditions are checked in Finishing so an abort runs the regular finish path
	c.state = Finishing
	if !c.vehicle.AHRSHealthy() {
		c.Finish(ctx, model.ReasonAHRSUnhealthy)
		return ErrAHRSUnhealthy
	}
	pos, ok := c.vehicle.Position()
	if !ok {
		c.Finish(ctx, model.ReasonNoPositionFix)
		return ErrNoPositionFix
	}

	c.rs.Active = true
	c.rs.RaceStart = now
	c.rs.LapStartTimes = make([]time.Time, laps+2)
	c.rs.LapStartTimes[1] = now
	c.rs.CurrentLap = 0
	c.rs.CurrentTargetIndex = course.GateIndex
	c.gate.Reset()
	c.gate.Detect(pos)
	c.state = Racing

	c.reporter.Milestone("Race started: %d laps, cruise %.1f m/s, bank %.0f deg, alt %.0f m",
		laps, c.cfg.CruiseSpeed, c.cfg.BankAngle, c.cfg.Altitude)
	return nil
}

// Tick runs one control step. Per tick failures are handled here, only the
// abort conditions and race completion end the race.
func (c *Controller) Tick(ctx context.Context) {
	if c.state != Racing {
		return
	}
	now := c.now()
	if mode := c.vehicle.Mode(); mode != vehicle.Mode(c.guidance.RaceMode) {
		c.l.Info("flight mode changed", log.String("mode", string(mode)))
		c.Finish(ctx, model.ReasonModeChanged)
		return
	}
	idx := c.rs.CurrentTargetIndex
	target, ok := c.course.Waypoint(idx)
	if !ok {
		if c.limiter.AllowAt("target", now) {
			c.l.Warn("cannot resolve target waypoint", log.Int("index", idx))
		}
		return
	}
	pos, ok := c.vehicle.Position()
	if !ok {
		if c.limiter.AllowAt("position", now) {
			c.reporter.Routine("position unavailable, skipping")
		}
		return
	}
	gs := c.groundspeed()

	dist := geo.Distance(pos, target.Position)
	next := course.Next(idx)
	aim := c.blender.Target(pos, c.course, idx, next, gs)
	threshold := c.anticipator.Threshold(gs, c.cfg.BankAngle)

	err := c.dispatcher.Send(aim, c.cfg.Altitude)
	c.syncNavStats()
	if errors.Is(err, nav.ErrUnresponsive) {
		c.Finish(ctx, model.ReasonNavUnresponsive)
		return
	}

	c.validateCorner(idx, target, dist)
	if dist < threshold {
		c.advance(ctx, now, idx)
	}
	if c.state != Racing {
		return
	}
	c.observeGate(ctx, now, pos)
	if c.state != Racing {
		return
	}
	c.telemetry(now, target, dist, gs, threshold)
}

// Finish ends the current race attempt. It is a no-op if no race is active.
// The sequencer is released exactly once per attempt.
func (c *Controller) Finish(ctx context.Context, reason model.FinishReason) {
	if c.state == Idle {
		return
	}
	c.state = Finishing
	now := c.now()
	c.syncNavStats()
	summary := Summarize(c.raceID, reason, c.cfg, c.rs, c.dispatcher.Stats(), now)

	if reason.Aborted() {
		c.reporter.Critical("Race aborted: %s", reason)
	} else {
		best := "n/a"
		if b, ok := summary.BestLap.Get(); ok {
			best = fmt.Sprintf("%.2fs (lap %d)", b.Seconds(), summary.BestLapNumber)
		}
		c.reporter.Milestone("Race complete: %d/%d laps in %.2fs, best lap %s",
			summary.LapsCompleted, summary.Laps, summary.TotalTime.Seconds(), best)
	}
	if rate, ok := summary.NavSuccessRate.Get(); ok {
		c.reporter.Routine("Nav success rate %.1f%% (%d ok, %d failed)",
			rate, summary.NavSuccesses, summary.NavFailures)
	} else {
		c.reporter.Routine("Nav success rate n/a, no commands issued")
	}
	if err := c.recorder.RecordSummary(ctx, summary); err != nil {
		c.l.Warn("could not record race summary", log.ErrorField(err))
	}
	c.endSpan(reason)

	c.sequencer.Release(c.signal.ID)
	c.rs.Active = false
	c.latched = false
	c.awaitingGate = false
	c.summary = null.From(summary)
	c.state = Idle
	c.l.Info("race finished",
		log.String("reason", string(reason)),
		log.String("attempt", c.signal.ID),
		log.Int("laps", summary.LapsCompleted))
}

func (c *Controller) groundspeed() float64 {
	vel, ok := c.vehicle.Velocity()
	if !ok {
		return c.cfg.CruiseSpeed
	}
	return vel.Groundspeed()
}

func (c *Controller) syncNavStats() {
	s := c.dispatcher.Stats()
	c.rs.ConsecutiveNavFailures = s.ConsecutiveFailures
	c.rs.TotalNavSuccesses = s.TotalSuccesses
	c.rs.TotalNavFailures = s.TotalFailures
	c.rs.LastNavUpdate = s.LastSuccess
}

func (c *Controller) validateCorner(idx int, wp course.Waypoint, dist float64) {
	if !course.IsCorner(idx) {
		return
	}
	c.closest[idx] = min(c.closest[idx], dist)
	if c.rs.CornerValidated[idx] || dist >= c.guidance.ValidationRadius {
		return
	}
	c.rs.CornerValidated[idx] = true
	c.reporter.Milestone("%s validated at %.1fm", wp.Name, dist)
}

// advance switches to the next waypoint. Wrapping to the gate completes the
// lap if a gate crossing was seen, otherwise the next crossing will.
func (c *Controller) advance(ctx context.Context, now time.Time, idx int) {
	leaving := c.course.At(idx)
	if course.IsCorner(idx) && !c.rs.CornerValidated[idx] {
		c.reporter.Routine("%s wide: closest %.1fm", leaving.Name, c.closest[idx])
	}
	c.rs.CurrentTargetIndex = course.Next(idx)
	c.l.Debug("advancing",
		log.String("from", leaving.Name),
		log.String("to", c.course.At(c.rs.CurrentTargetIndex).Name))
	if c.rs.CurrentTargetIndex != course.GateIndex {
		return
	}
	if c.latched {
		c.completeLap(ctx, now)
		return
	}
	c.awaitingGate = true
	c.l.Debug("waiting for gate crossing", log.Int("lap", c.rs.CurrentLap+1))
}

func (c *Controller) observeGate(ctx context.Context, now time.Time, pos geo.Position) {
	dir, crossed := c.gate.Detect(pos)
	if !crossed {
		return
	}
	c.l.Debug("gate crossed", log.Stringer("direction", dir))
	if c.awaitingGate {
		c.completeLap(ctx, now)
		return
	}
	c.latched = true
}

func (c *Controller) completeLap(ctx context.Context, now time.Time) {
	c.latched = false
	c.awaitingGate = false
	c.rs.CurrentLap++
	lap := c.rs.CurrentLap
	if lap >= 1 && lap <= c.cfg.Laps {
		lapTime := now.Sub(c.rs.LapStartTimes[lap])
		c.rs.LapTimes = append(c.rs.LapTimes, lapTime)
		suffix := ""
		if best, ok := c.rs.BestLapTime.Get(); !ok || lapTime < best {
			c.rs.BestLapTime = null.From(lapTime)
			c.rs.BestLapNumber = lap
			suffix = " (best)"
		}
		c.reporter.Milestone("LAP %d: %.2fs%s", lap, lapTime.Seconds(), suffix)
		if err := c.recorder.RecordLap(ctx, model.LapRecord{
			RaceID:       c.raceID,
			Lap:          lap,
			LapTime:      lapTime,
			NavSuccesses: c.rs.TotalNavSuccesses,
			NavFailures:  c.rs.TotalNavFailures,
			RecordedAt:   now,
		}); err != nil {
			c.l.Warn("could not record lap", log.Int("lap", lap), log.ErrorField(err))
		}
		if c.span != nil {
			c.span.AddEvent("lap", trace.WithAttributes(
				attribute.Int("lap", lap),
				attribute.Float64("lapTime", lapTime.Seconds())))
		}
	}
	if lap >= c.cfg.Laps {
		c.Finish(ctx, model.ReasonCompleted)
		return
	}
	c.rs.LapStartTimes[lap+1] = now
	c.rs.CornerValidated = [course.Size]bool{}
	c.resetClosest()
}

func (c *Controller) telemetry(now time.Time, target course.Waypoint, dist, gs, threshold float64) {
	if !c.rs.LastTelemetry.IsZero() && now.Sub(c.rs.LastTelemetry) < c.guidance.TelemetryInterval {
		return
	}
	c.rs.LastTelemetry = now
	c.reporter.Routine("Lap %d/%d -> %s %.0fm gs %.1fm/s adv %.0fm",
		c.rs.CurrentLap+1, c.cfg.Laps, target.Name, dist, gs, threshold)
}

func (c *Controller) resetClosest() {
	for i := range c.closest {
		c.closest[i] = geo.EarthRadius
	}
}

func (c *Controller) startSpan(ctx context.Context) {
	_, c.span = c.tracer.Start(ctx, "race", trace.WithAttributes(
		attribute.String("raceId", c.raceID.String()),
		attribute.String("attempt", c.signal.ID),
		attribute.Int("laps", c.cfg.Laps),
	))
}

func (c *Controller) endSpan(reason model.FinishReason) {
	if c.span == nil {
		return
	}
	c.span.SetAttributes(attribute.String("reason", string(reason)))
	if reason.Aborted() {
		c.span.SetStatus(codes.Error, string(reason))
	}
	c.span.End()
	c.span = nil
}

// Racing reports whether a race is in progress.
func (c *Controller) Racing() bool { return c.state == Racing }
