package race

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/course"
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/recorder"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle/sim"
	"github.com/mpapenbr/pylonrace-go/testsupport/fakes"
)

// the built-in course flown by the bank limited simulator, the way the fly
// command sets it up
func TestDefaultCourseSimulatedRace(t *testing.T) {
	tests := []struct {
		name  string
		laps  int
		speed float64
		bank  float64
		rate  float64
	}{
		{"defaults", 5, 15, 45, 50},
		{"slow shallow", 3, 10, 30, 50},
		{"fast steep", 3, 25, 60, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			crs := course.Default()
			clock := fakes.NewClock()
			airframe := sim.NewAirframe(
				sim.WithPosition(geo.Offset(crs.Gate().Position, 180, 150), 0),
				sim.WithSpeed(tt.speed),
				sim.WithMaxBank(tt.bank),
			)
			seq := sim.NewSequencer(airframe, sim.WithSequencerClock(clock.Now))
			rec := &recorder.Memory{}
			ctl, err := New(crs, airframe, airframe, seq,
				WithClock(clock.Now),
				WithRecorder(rec),
				WithParams(func() config.RaceParams {
					return config.RaceParams{CruiseSpeed: tt.speed, BankAngle: tt.bank, Altitude: 30}
				}),
			)
			require.NoError(t, err)

			sig := seq.Raise(tt.laps, 10*time.Minute)
			require.NoError(t, ctl.Start(ctx, sig))

			dt := time.Duration(float64(time.Second) / tt.rate)
			for elapsed := time.Duration(0); elapsed < 5*time.Minute && ctl.Racing(); elapsed += dt {
				ctl.Tick(ctx)
				airframe.Step(dt)
				clock.Advance(dt)
			}

			require.False(t, ctl.Racing(), "race did not finish, lap %d", ctl.RaceState().CurrentLap)
			summary, ok := ctl.Summary()
			require.True(t, ok)
			assert.Equal(t, model.ReasonCompleted, summary.Reason)
			assert.Equal(t, tt.laps, summary.LapsCompleted)
			require.Len(t, rec.Laps(), tt.laps)
			for i, l := range rec.Laps() {
				assert.Equal(t, i+1, l.Lap)
				assert.Greater(t, l.LapTime, 5*time.Second)
				assert.Less(t, l.LapTime, 40*time.Second)
			}
			assert.False(t, seq.Active())
			assert.Equal(t, []string{sig.ID}, seq.Released())
			assert.Empty(t, seq.TimedOut())
			assert.Equal(t, vehicle.ModeAuto, airframe.Mode())
		})
	}
}
