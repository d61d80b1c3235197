package postgres

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/pylonrace-go/log"
)

type PoolConfigOption func(cfg *pgxpool.Config)

func WithTracer(tracer pgx.QueryTracer) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = tracer
	}
}

func WithMaxConns(n int32) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.MaxConns = n
	}
}

func InitDB(opts ...PoolConfigOption) (*pgxpool.Pool, error) {
	return InitWithURL(os.Getenv("DATABASE_URL"), opts...)
}

func InitWithURL(url string, opts ...PoolConfigOption) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	for _, opt := range opts {
		opt(dbConfig)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewOtlpTracer creates spans for each query.
func NewOtlpTracer() pgx.QueryTracer {
	return otelpgx.NewTracer(otelpgx.WithIncludeQueryParameters())
}

// NewMyTracer logs each statement together with its duration.
func NewMyTracer(l *log.Logger, level log.Level) pgx.QueryTracer {
	return &myQueryTracer{log: l, level: level}
}

type (
	myQueryTracer struct {
		log   *log.Logger
		level log.Level
	}
	traceKey   struct{}
	traceStart struct {
		sql   string
		args  []any
		begin time.Time
	}
)

func (tracer *myQueryTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{sql: data.SQL, args: data.Args, begin: time.Now()})
}

//nolint:whitespace // can't make the linters happy
func (tracer *myQueryTracer) TraceQueryEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	if data.Err != nil {
		tracer.log.Zap().Warn("query failed",
			log.String("sql", start.sql),
			log.Any("args", start.args),
			log.Duration("duration", time.Since(start.begin)),
			log.ErrorField(data.Err))
		return
	}
	tracer.log.Zap().Log(tracer.level, "executed",
		log.String("sql", start.sql),
		log.Any("args", start.args),
		log.Duration("duration", time.Since(start.begin)),
		log.String("tag", data.CommandTag.String()))
}
