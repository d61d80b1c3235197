package fly

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/pgx-contrib/pgxtrace"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/db/migrate"
	"github.com/mpapenbr/pylonrace-go/pkg/db/postgres"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/recorder"
	"github.com/mpapenbr/pylonrace-go/pkg/recorder/natsrec"
	"github.com/mpapenbr/pylonrace-go/pkg/repository/racelog"
	"github.com/mpapenbr/pylonrace-go/pkg/repository/sqlite"
	"github.com/mpapenbr/pylonrace-go/pkg/status"
	"github.com/mpapenbr/pylonrace-go/pkg/utils"
)

// outputs bundles the status and record sinks of a flight. Status messages
// reach the console and the radio through a broadcast so slow writers never
// block the control loop.
type outputs struct {
	reporter *status.Reporter
	bcst     *status.Broadcast
	sub      <-chan model.StatusMessage
	writers  []status.Sink
	queue    *recorder.Queue
	closers  []io.Closer
	l        *log.Logger
}

//nolint:whitespace // false positive
func newOutputs(
	ctx context.Context,
	pool *pgxpool.Pool,
	nc *nats.Conn,
) (*outputs, error) {
	ret := &outputs{
		bcst: status.NewBroadcast(statusBuffer),
		l:    log.Default().Named("outputs"),
	}
	ret.sub = ret.bcst.Subscribe()
	ret.writers = append(ret.writers, status.NewWriterSink(os.Stdout, model.PriorityRoutine))

	if config.StatusSerial != "" {
		port, err := status.OpenSerial(config.StatusSerial, config.StatusBaud)
		if err != nil {
			ret.Close()
			return nil, err
		}
		ret.closers = append(ret.closers, port)
		ret.writers = append(ret.writers, status.NewWriterSink(port, model.PriorityMilestone))
	}

	sinks := []status.Sink{ret.bcst}
	var recorders recorder.Multi
	if nc != nil {
		sinks = append(sinks, status.NewNATSSink(nc, "pylonrace.status"))
		natsOpts := []natsrec.Option{}
		if kv, err := natsrec.SummaryBucket(ctx, nc, natsrec.DefaultBucket); err == nil {
			natsOpts = append(natsOpts, natsrec.WithKeyValue(kv))
		} else {
			ret.l.Warn("no jetstream, summaries are only published", log.ErrorField(err))
		}
		recorders = append(recorders, natsrec.New(nc, natsOpts...))
	}
	if pool != nil {
		recorders = append(recorders, racelog.NewRecorder(pool))
	}
	if config.SQLiteFile != "" {
		store, err := sqlite.Open(config.SQLiteFile)
		if err != nil {
			ret.Close()
			return nil, err
		}
		ret.closers = append(ret.closers, store)
		recorders = append(recorders, store)
	}
	ret.reporter = status.NewReporter(status.WithSink(sinks...))
	ret.queue = recorder.NewQueue(recorders, recordQueueSize)
	return ret, nil
}

// forward writes broadcast status messages to the console and radio until
// ctx is done.
func (o *outputs) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-o.sub:
			if !ok {
				return
			}
			for _, w := range o.writers {
				if err := w.Publish(msg); err != nil {
					o.l.Warn("status output failed", log.ErrorField(err))
				}
			}
		}
	}
}

func (o *outputs) Close() {
	o.bcst.Close()
	var errs error
	for _, c := range o.closers {
		errs = errors.Join(errs, c.Close())
	}
	if errs != nil {
		o.l.Warn("closing outputs", log.ErrorField(errs))
	}
}

func waitForRequiredServices(ctx context.Context) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	if useDB {
		if err := utils.WaitForTCP(ctx, utils.ExtractFromDBURL(config.DB), timeout); err != nil {
			return err
		}
	}
	if config.NatsURL != "" {
		if err := utils.WaitForTCP(ctx, utils.ExtractFromNatsURL(config.NatsURL), timeout); err != nil {
			return err
		}
	}
	return nil
}

func connectDB(sqlLogger *log.Logger) (*pgxpool.Pool, error) {
	if err := migrate.MigratePostgres(config.DB); err != nil {
		return nil, err
	}
	pgTracer := pgxtrace.CompositeQueryTracer{
		postgres.NewMyTracer(sqlLogger, log.DebugLevel),
	}
	if config.EnableTelemetry {
		pgTracer = append(pgTracer, postgres.NewOtlpTracer())
	}
	return postgres.InitWithURL(config.DB, postgres.WithTracer(pgTracer))
}
