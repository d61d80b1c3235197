//nolint:whitespace // can't make both editor and linter happy
package racelog

import (
	"context"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/repository"
)

func CreateRace(ctx context.Context, conn repository.Querier, r model.RaceRecord) error {
	_, err := conn.Exec(ctx, `
	insert into race (
		id, attempt_id, course, laps, cruise_speed, bank_angle, altitude, started_at
	) values ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		r.RaceID, r.AttemptID, r.Course, r.Laps,
		r.CruiseSpeed, r.BankAngle, r.Altitude, r.StartedAt,
	)
	return err
}

func CreateLap(ctx context.Context, conn repository.Querier, l model.LapRecord) error {
	_, err := conn.Exec(ctx, `
	insert into lap (
		race_id, lap, lap_time, nav_successes, nav_failures, recorded_at
	) values ($1,$2,$3,$4,$5,$6)
	`,
		l.RaceID, l.Lap, l.LapSeconds(), l.NavSuccesses, l.NavFailures, l.RecordedAt,
	)
	return err
}

// UpsertSummary stores the summary of a race. A second finish of the same
// race replaces the previous summary.
func UpsertSummary(ctx context.Context, conn repository.Querier, s model.RaceSummary) error {
	_, err := conn.Exec(ctx, `
	insert into race_summary (
		race_id, reason, laps, laps_completed, total_time, best_lap, best_lap_number,
		mean_lap, lap_stddev, nav_successes, nav_failures, nav_success_rate, finished_at
	) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	on conflict (race_id) do update set
		reason=excluded.reason, laps=excluded.laps,
		laps_completed=excluded.laps_completed, total_time=excluded.total_time,
		best_lap=excluded.best_lap, best_lap_number=excluded.best_lap_number,
		mean_lap=excluded.mean_lap, lap_stddev=excluded.lap_stddev,
		nav_successes=excluded.nav_successes, nav_failures=excluded.nav_failures,
		nav_success_rate=excluded.nav_success_rate, finished_at=excluded.finished_at
	`,
		s.RaceID, string(s.Reason), s.Laps, s.LapsCompleted,
		model.DurationSeconds(s.TotalTime), bestLapValue(s.BestLap), s.BestLapNumber,
		model.DurationSeconds(s.MeanLap), model.DurationSeconds(s.LapStdDev),
		s.NavSuccesses, s.NavFailures, rateValue(s.NavSuccessRate), s.FinishedAt,
	)
	return err
}

func LoadRace(ctx context.Context, conn repository.Querier, id uuid.UUID) (
	*model.RaceRecord, error,
) {
	row := conn.QueryRow(ctx, `
	select id, attempt_id, course, laps, cruise_speed, bank_angle, altitude, started_at
	from race where id=$1
	`, id)
	item, err := scanRace(row)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListRaces returns the most recent races first.
func ListRaces(ctx context.Context, conn repository.Querier, limit int) (
	[]*model.RaceRecord, error,
) {
	rows, err := conn.Query(ctx, `
	select id, attempt_id, course, laps, cruise_speed, bank_angle, altitude, started_at
	from race order by started_at desc limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*model.RaceRecord, 0)
	for rows.Next() {
		item, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func ListLaps(ctx context.Context, conn repository.Querier, raceID uuid.UUID) (
	[]*model.LapRecord, error,
) {
	rows, err := conn.Query(ctx, `
	select race_id, lap, lap_time, nav_successes, nav_failures, recorded_at
	from lap where race_id=$1 order by lap asc
	`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*model.LapRecord, 0)
	for rows.Next() {
		var item model.LapRecord
		var lapTime decimal.Decimal
		if err := rows.Scan(
			&item.RaceID, &item.Lap, &lapTime,
			&item.NavSuccesses, &item.NavFailures, &item.RecordedAt,
		); err != nil {
			return nil, err
		}
		item.LapTime = model.SecondsDuration(lapTime)
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func LoadSummary(ctx context.Context, conn repository.Querier, raceID uuid.UUID) (
	*model.RaceSummary, error,
) {
	row := conn.QueryRow(ctx, `
	select race_id, reason, laps, laps_completed, total_time, best_lap, best_lap_number,
		mean_lap, lap_stddev, nav_successes, nav_failures, nav_success_rate, finished_at
	from race_summary where race_id=$1
	`, raceID)
	var item model.RaceSummary
	var reason string
	var total, mean, spread decimal.Decimal
	var best decimal.NullDecimal
	var rate *float64
	if err := row.Scan(
		&item.RaceID, &reason, &item.Laps, &item.LapsCompleted,
		&total, &best, &item.BestLapNumber, &mean, &spread,
		&item.NavSuccesses, &item.NavFailures, &rate, &item.FinishedAt,
	); err != nil {
		return nil, err
	}
	item.Reason = model.FinishReason(reason)
	item.TotalTime = model.SecondsDuration(total)
	item.MeanLap = model.SecondsDuration(mean)
	item.LapStdDev = model.SecondsDuration(spread)
	if best.Valid {
		item.BestLap = null.From(model.SecondsDuration(best.Decimal))
	}
	if rate != nil {
		item.NavSuccessRate = null.From(*rate)
	}
	return &item, nil
}

// deletes a race including its laps and summary, returns number of races deleted.
func DeleteRace(ctx context.Context, conn repository.Querier, id uuid.UUID) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from race where id=$1", id)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func scanRace(row pgx.Row) (*model.RaceRecord, error) {
	var item model.RaceRecord
	if err := row.Scan(
		&item.RaceID, &item.AttemptID, &item.Course, &item.Laps,
		&item.CruiseSpeed, &item.BankAngle, &item.Altitude, &item.StartedAt,
	); err != nil {
		return nil, err
	}
	item.StartedAt = item.StartedAt.UTC()
	return &item, nil
}

func bestLapValue(v null.Val[time.Duration]) decimal.NullDecimal {
	d, ok := v.Get()
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(model.DurationSeconds(d))
}

func rateValue(v null.Val[float64]) *float64 {
	r, ok := v.Get()
	if !ok {
		return nil
	}
	return &r
}
