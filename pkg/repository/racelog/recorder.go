package racelog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/repository"
)

// Recorder writes race records to postgres, each in its own transaction.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

func (r *Recorder) RecordRace(ctx context.Context, rec model.RaceRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return CreateRace(ctx, tx, rec)
	})
}

func (r *Recorder) RecordLap(ctx context.Context, rec model.LapRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return CreateLap(ctx, tx, rec)
	})
}

func (r *Recorder) RecordSummary(ctx context.Context, s model.RaceSummary) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return UpsertSummary(ctx, tx, s)
	})
}

// Reader lists recorded races.
type Reader struct {
	conn repository.Querier
}

func NewReader(conn repository.Querier) *Reader {
	return &Reader{conn: conn}
}

func (r *Reader) ListRaces(ctx context.Context, limit int) ([]*model.RaceRecord, error) {
	return ListRaces(ctx, r.conn, limit)
}

func (r *Reader) ListLaps(ctx context.Context, raceID uuid.UUID) ([]*model.LapRecord, error) {
	return ListLaps(ctx, r.conn, raceID)
}
