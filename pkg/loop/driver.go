// Package loop drives the race controller at a fixed rate.
package loop

import (
	"context"
	"time"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

const DefaultRate = 50.0 // Hz

// Controller is the part of the race state machine the driver needs.
type Controller interface {
	Start(ctx context.Context, sig vehicle.Signal) error
	Tick(ctx context.Context)
	Finish(ctx context.Context, reason model.FinishReason)
	Racing() bool
}

type Driver struct {
	ctl       Controller
	sequencer vehicle.Sequencer
	rate      float64
	trackedID string
	ticks     int64
	l         *log.Logger
}

type Option func(d *Driver)

func WithRate(hz float64) Option {
	return func(d *Driver) {
		if hz > 0 {
			d.rate = hz
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Driver) {
		d.l = l
	}
}

func NewDriver(ctl Controller, seq vehicle.Sequencer, opts ...Option) *Driver {
	ret := &Driver{
		ctl:       ctl,
		sequencer: seq,
		rate:      DefaultRate,
		l:         log.Default().Named("loop"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (d *Driver) Interval() time.Duration {
	return time.Duration(float64(time.Second) / d.rate)
}

// Ticks is the number of steps executed so far.
func (d *Driver) Ticks() int64 {
	return d.ticks
}

// Step polls the sequencer, starts a race for a signal with a new attempt id
// and ticks the controller while it is racing.
func (d *Driver) Step(ctx context.Context) {
	d.ticks++
	if sig, ok := d.sequencer.Poll(); ok && sig.ID != d.trackedID {
		d.trackedID = sig.ID
		d.l.Info("race signal received",
			log.String("attempt", sig.ID),
			log.Float64("laps", sig.Arg1),
			log.Duration("timeout", sig.Timeout))
		if err := d.ctl.Start(ctx, sig); err != nil {
			d.l.Warn("race not started", log.ErrorField(err))
		}
	}
	if d.ctl.Racing() {
		d.ctl.Tick(ctx)
	}
}

// Run steps at the configured rate until ctx is done. A race still running
// at that point is finished with ReasonShutdown.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Interval())
	defer ticker.Stop()
	d.l.Info("control loop started", log.Float64("rate", d.rate))
	for {
		select {
		case <-ctx.Done():
			d.ctl.Finish(context.WithoutCancel(ctx), model.ReasonShutdown)
			d.l.Info("control loop stopped", log.Int64("ticks", d.ticks))
			return nil
		case <-ticker.C:
			d.Step(ctx)
		}
	}
}
