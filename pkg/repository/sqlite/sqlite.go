// Package sqlite is the on-board flight recorder. It keeps race, lap and
// summary rows in a local sqlite file so they survive a lost ground link.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/mpapenbr/pylonrace-go/pkg/db/migrate"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

// Open migrates the file at path and opens it.
func Open(path string) (*Store, error) {
	if err := migrate.MigrateSQLite(path); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY between the recorder queue and readers
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordRace(ctx context.Context, r model.RaceRecord) error {
	_, err := s.db.ExecContext(ctx, `
	insert into race (
		id, attempt_id, course, laps, cruise_speed, bank_angle, altitude, started_at
	) values (?,?,?,?,?,?,?,?)
	`,
		r.RaceID.String(), r.AttemptID, r.Course, r.Laps,
		r.CruiseSpeed, r.BankAngle, r.Altitude, formatTime(r.StartedAt),
	)
	return err
}

func (s *Store) RecordLap(ctx context.Context, l model.LapRecord) error {
	_, err := s.db.ExecContext(ctx, `
	insert into lap (
		race_id, lap, lap_time, nav_successes, nav_failures, recorded_at
	) values (?,?,?,?,?,?)
	`,
		l.RaceID.String(), l.Lap, l.LapSeconds().String(),
		l.NavSuccesses, l.NavFailures, formatTime(l.RecordedAt),
	)
	return err
}

func (s *Store) RecordSummary(ctx context.Context, sum model.RaceSummary) error {
	var best sql.NullString
	if d, ok := sum.BestLap.Get(); ok {
		best = sql.NullString{String: model.DurationSeconds(d).String(), Valid: true}
	}
	var rate sql.NullFloat64
	if r, ok := sum.NavSuccessRate.Get(); ok {
		rate = sql.NullFloat64{Float64: r, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
	insert or replace into race_summary (
		race_id, reason, laps, laps_completed, total_time, best_lap, best_lap_number,
		mean_lap, lap_stddev, nav_successes, nav_failures, nav_success_rate, finished_at
	) values (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		sum.RaceID.String(), string(sum.Reason), sum.Laps, sum.LapsCompleted,
		model.DurationSeconds(sum.TotalTime).String(), best, sum.BestLapNumber,
		model.DurationSeconds(sum.MeanLap).String(),
		model.DurationSeconds(sum.LapStdDev).String(),
		sum.NavSuccesses, sum.NavFailures, rate, formatTime(sum.FinishedAt),
	)
	return err
}

// ListRaces returns the most recent races first.
func (s *Store) ListRaces(ctx context.Context, limit int) ([]*model.RaceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	select id, attempt_id, course, laps, cruise_speed, bank_angle, altitude, started_at
	from race order by started_at desc limit ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*model.RaceRecord, 0)
	for rows.Next() {
		var item model.RaceRecord
		var id, started string
		if err := rows.Scan(
			&id, &item.AttemptID, &item.Course, &item.Laps,
			&item.CruiseSpeed, &item.BankAngle, &item.Altitude, &started,
		); err != nil {
			return nil, err
		}
		if item.RaceID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if item.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func (s *Store) ListLaps(ctx context.Context, raceID uuid.UUID) ([]*model.LapRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	select lap, lap_time, nav_successes, nav_failures, recorded_at
	from lap where race_id=? order by lap asc
	`, raceID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*model.LapRecord, 0)
	for rows.Next() {
		item := model.LapRecord{RaceID: raceID}
		var lapTime, recorded string
		if err := rows.Scan(
			&item.Lap, &lapTime, &item.NavSuccesses, &item.NavFailures, &recorded,
		); err != nil {
			return nil, err
		}
		secs, err := decimal.NewFromString(lapTime)
		if err != nil {
			return nil, err
		}
		item.LapTime = model.SecondsDuration(secs)
		if item.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func (s *Store) LoadSummary(ctx context.Context, raceID uuid.UUID) (*model.RaceSummary, error) {
	row := s.db.QueryRowContext(ctx, `
	select reason, laps, laps_completed, total_time, best_lap, best_lap_number,
		mean_lap, lap_stddev, nav_successes, nav_failures, nav_success_rate, finished_at
	from race_summary where race_id=?
	`, raceID.String())
	item := model.RaceSummary{RaceID: raceID}
	var reason, total, mean, spread, finished string
	var best sql.NullString
	var rate sql.NullFloat64
	if err := row.Scan(
		&reason, &item.Laps, &item.LapsCompleted, &total, &best, &item.BestLapNumber,
		&mean, &spread, &item.NavSuccesses, &item.NavFailures, &rate, &finished,
	); err != nil {
		return nil, err
	}
	item.Reason = model.FinishReason(reason)
	var err error
	if item.TotalTime, err = parseSeconds(total); err != nil {
		return nil, err
	}
	if item.MeanLap, err = parseSeconds(mean); err != nil {
		return nil, err
	}
	if item.LapStdDev, err = parseSeconds(spread); err != nil {
		return nil, err
	}
	if best.Valid {
		d, err := parseSeconds(best.String)
		if err != nil {
			return nil, err
		}
		item.BestLap = null.From(d)
	}
	if rate.Valid {
		item.NavSuccessRate = null.From(rate.Float64)
	}
	if item.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &item, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseSeconds(s string) (time.Duration, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return model.SecondsDuration(d), nil
}
