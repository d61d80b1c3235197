package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

type failing struct{ err error }

func (f failing) RecordRace(context.Context, model.RaceRecord) error     { return f.err }
func (f failing) RecordLap(context.Context, model.LapRecord) error       { return f.err }
func (f failing) RecordSummary(context.Context, model.RaceSummary) error { return f.err }

func TestMulti(t *testing.T) {
	ctx := context.Background()
	m1, m2 := &Memory{}, &Memory{}
	errA, errB := errors.New("a"), errors.New("b")
	multi := Multi{m1, failing{errA}, m2, failing{errB}}

	lap := model.LapRecord{RaceID: uuid.New(), Lap: 1, LapTime: 42 * time.Second}
	err := multi.RecordLap(ctx, lap)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, []model.LapRecord{lap}, m1.Laps())
	assert.Equal(t, []model.LapRecord{lap}, m2.Laps())

	assert.NoError(t, Multi{m1, Nop{}}.RecordRace(ctx, model.RaceRecord{Laps: 3}))
	assert.Len(t, m1.Races(), 1)
}

func TestQueueEvictsOldest(t *testing.T) {
	mem := &Memory{}
	q := NewQueue(mem, 2)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		assert.NoError(t, q.RecordLap(ctx, model.LapRecord{Lap: i}))
	}
	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, q.Run(runCtx))

	laps := mem.Laps()
	assert.Len(t, laps, 2)
	assert.Equal(t, 3, laps[len(laps)-1].Lap)
}

func TestQueueKeepsRaceRecords(t *testing.T) {
	mem := &Memory{}
	q := NewQueue(mem, 2)
	ctx := context.Background()
	raceID := uuid.New()
	assert.NoError(t, q.RecordRace(ctx, model.RaceRecord{RaceID: raceID, Laps: 3}))
	for i := 1; i <= 3; i++ {
		assert.NoError(t, q.RecordLap(ctx, model.LapRecord{RaceID: raceID, Lap: i}))
	}
	assert.NoError(t, q.RecordSummary(ctx, model.RaceSummary{RaceID: raceID}))
	assert.Equal(t, 2, q.Len())

	// only race records queued: another race record still gets in, a lap does not
	q2 := NewQueue(&Memory{}, 1)
	assert.NoError(t, q2.RecordRace(ctx, model.RaceRecord{Laps: 1}))
	assert.NoError(t, q2.RecordRace(ctx, model.RaceRecord{Laps: 2}))
	assert.NoError(t, q2.RecordLap(ctx, model.LapRecord{Lap: 1}))
	assert.Equal(t, 2, q2.Len())

	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, q.Run(runCtx))
	assert.Equal(t, []model.RaceRecord{{RaceID: raceID, Laps: 3}}, mem.Races())
	assert.Empty(t, mem.Laps())
	assert.Len(t, mem.Summaries(), 1)
	assert.Equal(t, 0, q.Len())
}

func TestQueueRun(t *testing.T) {
	mem := &Memory{}
	q := NewQueue(mem, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()
	_ = q.RecordSummary(ctx, model.RaceSummary{Reason: model.ReasonCompleted})
	assert.Eventually(t, func() bool { return len(mem.Summaries()) == 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestLapSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42*time.Second + 123*time.Millisecond, "42.123"},
		{42*time.Second + 123600*time.Microsecond, "42.124"},
		{0, "0"},
	}
	for _, tt := range tests {
		l := model.LapRecord{LapTime: tt.d}
		assert.Equal(t, tt.want, l.LapSeconds().String())
		assert.Equal(t, tt.d.Round(time.Millisecond), model.SecondsDuration(l.LapSeconds()))
	}
}
