//nolint:funlen // ok for this test code
package racelog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/testsupport/basedata"
	"github.com/mpapenbr/pylonrace-go/testsupport/testdb"
)

func TestCreateAndLoadRace(t *testing.T) {
	pool := testdb.InitTestDb(t)
	ctx := context.Background()
	race := basedata.SampleRace()

	assert.NilError(t, CreateRace(ctx, pool, race))
	got, err := LoadRace(ctx, pool, race.RaceID)
	assert.NilError(t, err)
	assert.DeepEqual(t, &race, got)

	err = CreateRace(ctx, pool, race)
	assert.Assert(t, err != nil, "duplicate race id must fail")

	_, err = LoadRace(ctx, pool, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestRecorderRoundTrip(t *testing.T) {
	pool := testdb.InitTestDb(t)
	ctx := context.Background()
	rec := NewRecorder(pool)

	assert.NilError(t, rec.RecordRace(ctx, basedata.SampleRace()))
	for _, l := range basedata.SampleLaps() {
		assert.NilError(t, rec.RecordLap(ctx, l))
	}
	summary := basedata.SampleSummary()
	assert.NilError(t, rec.RecordSummary(ctx, summary))
	// finishing twice replaces the summary
	assert.NilError(t, rec.RecordSummary(ctx, summary))

	laps, err := ListLaps(ctx, pool, basedata.SampleRaceID)
	assert.NilError(t, err)
	assert.Equal(t, len(laps), 3)
	for i, want := range basedata.SampleLaps() {
		assert.Equal(t, laps[i].Lap, want.Lap)
		assert.Equal(t, laps[i].LapTime, want.LapTime)
		assert.Equal(t, laps[i].NavSuccesses, want.NavSuccesses)
	}

	got, err := LoadSummary(ctx, pool, basedata.SampleRaceID)
	assert.NilError(t, err)
	assert.Equal(t, got.Reason, model.ReasonCompleted)
	assert.Equal(t, got.TotalTime, summary.TotalTime)
	best, ok := got.BestLap.Get()
	assert.Assert(t, ok)
	assert.Equal(t, best, 40500*time.Millisecond)
	rate, ok := got.NavSuccessRate.Get()
	assert.Assert(t, ok)
	assert.Equal(t, rate, 99.875)
}

func TestListRacesAndDelete(t *testing.T) {
	pool := testdb.InitTestDb(t)
	ctx := context.Background()

	first := basedata.SampleRace()
	second := basedata.SampleRace()
	second.RaceID = uuid.New()
	second.AttemptID = "attempt-2"
	second.StartedAt = first.StartedAt.Add(10 * time.Minute)
	assert.NilError(t, CreateRace(ctx, pool, first))
	assert.NilError(t, CreateRace(ctx, pool, second))
	assert.NilError(t, CreateLap(ctx, pool, basedata.SampleLaps()[0]))

	races, err := ListRaces(ctx, pool, 10)
	assert.NilError(t, err)
	assert.Equal(t, len(races), 2)
	assert.Equal(t, races[0].AttemptID, "attempt-2")

	n, err := DeleteRace(ctx, pool, first.RaceID)
	assert.NilError(t, err)
	assert.Equal(t, n, 1)
	laps, err := ListLaps(ctx, pool, first.RaceID)
	assert.NilError(t, err)
	assert.Equal(t, len(laps), 0)
}
