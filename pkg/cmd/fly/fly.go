// Package fly runs the race controller against the simulated airframe.
package fly

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/course"
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/loop"
	"github.com/mpapenbr/pylonrace-go/pkg/race"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle/sim"
)

const (
	recordQueueSize = 256
	statusBuffer    = 64
	startDistance   = 150.0 // m south of the gate
)

//nolint:funlen // by design
func NewFlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fly",
		Short: "flies a pylon race with the simulated airframe",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startFlight(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.CourseFile,
		"course",
		"",
		"course definition (yaml), default is the built-in course")
	cmd.Flags().Float64Var(&config.LoopRate,
		"rate",
		config.DefaultLoopRate,
		"control loop rate in Hz")
	cmd.Flags().IntVar(&config.Laps,
		"laps",
		race.DefaultLaps,
		"number of laps requested by the race signal")
	cmd.Flags().DurationVar(&config.RaceTimeout,
		"timeout",
		10*time.Minute,
		"scripted-control window granted to the race")
	cmd.Flags().StringVar(&config.SQLiteFile,
		"sqlite",
		"",
		"path of the sqlite flight recorder")
	cmd.Flags().BoolVar(&useDB,
		"recorder-db",
		false,
		"record races in the postgres database given by --db")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"NATS server for status messages and race records")
	cmd.Flags().StringVar(&config.StatusSerial,
		"status-serial",
		"",
		"serial port of the telemetry radio")
	cmd.Flags().IntVar(&config.StatusBaud,
		"status-baud",
		57600,
		"baud rate of the telemetry radio")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"",
		"otlp grpc endpoint, stdout exporters are used if empty")
	cmd.Flags().DurationVar(&config.FailNavAfter,
		"fail-nav-after",
		0,
		"simulator: reject all navigation commands after this duration (0 = never)")
	cmdutil.AddLogFlags(cmd)
	return cmd
}

var useDB bool

//nolint:funlen,cyclop // by design
func startFlight(parent context.Context) error {
	logger, sqlLogger := cmdutil.SetupLoggers()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.EnableTelemetry {
		logger.Info("Enabling telemetry")
		telemetry, err := config.SetupTelemetry(ctx)
		if err != nil {
			logger.Warn("Could not setup telemetry", log.ErrorField(err))
		} else {
			defer telemetry.Shutdown()
		}
	}

	crs, err := loadCourse()
	if err != nil {
		return err
	}
	g, err := config.GuidanceFromViper(viper.GetViper())
	if err != nil {
		logger.Warn("invalid guidance section, using defaults", log.ErrorField(err))
	}
	params := config.NewViperParams(viper.GetViper())

	if err = waitForRequiredServices(ctx); err != nil {
		return err
	}

	var pool *pgxpool.Pool
	if useDB {
		if pool, err = connectDB(sqlLogger); err != nil {
			return err
		}
		defer pool.Close()
	}
	var nc *nats.Conn
	if config.NatsURL != "" {
		if nc, err = nats.Connect(config.NatsURL,
			nats.Name("pylonrace"), nats.MaxReconnects(-1)); err != nil {
			return err
		}
		defer nc.Close()
	}

	out, err := newOutputs(ctx, pool, nc)
	if err != nil {
		return err
	}
	defer out.Close()

	initial := config.ResolveRaceParams(params, logger.Named("params"))
	airframe := sim.NewAirframe(
		sim.WithPosition(geo.Offset(crs.Gate().Position, 180, startDistance), 0),
		sim.WithSpeed(initial.CruiseSpeed),
		sim.WithMaxBank(initial.BankAngle),
	)
	sequencer := sim.NewSequencer(airframe)

	ctl, err := race.New(crs, airframe, airframe, sequencer,
		race.WithGuidance(g),
		race.WithParams(func() config.RaceParams {
			return config.ResolveRaceParams(params, logger.Named("params"))
		}),
		race.WithReporter(out.reporter),
		race.WithRecorder(out.queue),
	)
	if err != nil {
		return err
	}
	driver := loop.NewDriver(ctl, sequencer, loop.WithRate(config.LoopRate))

	// outputs outlive the control loop so the final records are written
	outCtx, cancelOut := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelOut()
	var outGroup errgroup.Group
	outGroup.Go(func() error {
		return out.queue.Run(outCtx)
	})
	outGroup.Go(func() error {
		out.forward(outCtx)
		return nil
	})

	sequencer.Raise(config.Laps, config.RaceTimeout)

	runGroup, groupCtx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(groupCtx)
	defer cancelRun()
	runGroup.Go(func() error {
		return simulate(runCtx, airframe, driver.Interval())
	})
	runGroup.Go(func() error {
		defer cancelRun()
		return driver.Run(runCtx)
	})
	runGroup.Go(func() error {
		return superviseRace(runCtx, cancelRun, airframe, sequencer)
	})
	runErr := runGroup.Wait()

	cancelOut()
	if err := outGroup.Wait(); err != nil {
		logger.Warn("output shutdown", log.ErrorField(err))
	}
	if runErr != nil {
		return runErr
	}
	if s, ok := ctl.Summary(); ok {
		logger.Info("race finished",
			log.String("raceId", s.RaceID.String()),
			log.String("reason", string(s.Reason)),
			log.Int("laps", s.LapsCompleted),
			log.Duration("total", s.TotalTime),
			log.Duration("mean", s.MeanLap))
	}
	return nil
}

// simulate advances the airframe with the loop interval.
func simulate(ctx context.Context, a *sim.Airframe, dt time.Duration) error {
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.Step(now.Sub(last))
			last = now
		}
	}
}

// superviseRace ends the run once the sequencer has taken back control and
// injects navigation failures when requested.
//
//nolint:whitespace // false positive
func superviseRace(
	ctx context.Context,
	done context.CancelFunc,
	a *sim.Airframe,
	seq *sim.Sequencer,
) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	injected := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !injected && config.FailNavAfter > 0 && time.Since(start) > config.FailNavAfter {
				log.Warn("simulator rejects navigation commands from now on")
				a.Fail(true, sim.Absolute, sim.Incremental, sim.Velocity)
				injected = true
			}
			if !seq.Active() {
				done()
				return nil
			}
		}
	}
}

func loadCourse() (*course.Course, error) {
	return course.LoadFile(config.CourseFile)
}
