package race

import (
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/nav"
)

// Summarize builds the race summary. The lap spread needs at least two laps.
func Summarize(
	raceID uuid.UUID,
	reason model.FinishReason,
	cfg Config,
	rs RaceState,
	navStats nav.Stats,
	finishedAt time.Time,
) model.RaceSummary {
	ret := model.RaceSummary{
		RaceID:        raceID,
		Reason:        reason,
		Laps:          cfg.Laps,
		LapsCompleted: len(rs.LapTimes),
		BestLap:       rs.BestLapTime,
		BestLapNumber: rs.BestLapNumber,
		NavSuccesses:  navStats.TotalSuccesses,
		NavFailures:   navStats.TotalFailures,
		FinishedAt:    finishedAt,
	}
	if !rs.RaceStart.IsZero() {
		ret.TotalTime = finishedAt.Sub(rs.RaceStart)
	}
	if rate, ok := navStats.SuccessRate(); ok {
		ret.NavSuccessRate = null.From(rate)
	}
	if len(rs.LapTimes) == 0 {
		return ret
	}
	secs := lo.Map(rs.LapTimes, func(d time.Duration, _ int) float64 { return d.Seconds() })
	mean := stat.Mean(secs, nil)
	ret.MeanLap = seconds(mean)
	if len(secs) > 1 {
		ret.LapStdDev = seconds(stat.StdDev(secs, nil))
	}
	return ret
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}
