// Package basedata provides sample records shared by the repository tests.
package basedata

import (
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

var SampleRaceID = uuid.MustParse("3c1ae1e6-6d6a-4d3a-9a43-6b4ad8cba7e1")

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

func SampleRace() model.RaceRecord {
	return model.RaceRecord{
		RaceID:      SampleRaceID,
		AttemptID:   "attempt-1",
		Course:      "sefsd",
		Laps:        3,
		CruiseSpeed: 18,
		BankAngle:   50,
		Altitude:    40,
		StartedAt:   TestTime(),
	}
}

// SampleLaps returns laps of 42.123s, 40.5s and 41.007s.
func SampleLaps() []model.LapRecord {
	times := []time.Duration{
		42123 * time.Millisecond,
		40500 * time.Millisecond,
		41007 * time.Millisecond,
	}
	ret := make([]model.LapRecord, len(times))
	at := TestTime()
	for i, d := range times {
		at = at.Add(d)
		ret[i] = model.LapRecord{
			RaceID:       SampleRaceID,
			Lap:          i + 1,
			LapTime:      d,
			NavSuccesses: 800 + i,
			NavFailures:  i,
			RecordedAt:   at,
		}
	}
	return ret
}

func SampleSummary() model.RaceSummary {
	return model.RaceSummary{
		RaceID:         SampleRaceID,
		Reason:         model.ReasonCompleted,
		Laps:           3,
		LapsCompleted:  3,
		TotalTime:      123630 * time.Millisecond,
		BestLap:        null.From(40500 * time.Millisecond),
		BestLapNumber:  2,
		MeanLap:        41210 * time.Millisecond,
		LapStdDev:      816 * time.Millisecond,
		NavSuccesses:   2403,
		NavFailures:    3,
		NavSuccessRate: null.From(99.875),
		FinishedAt:     TestTime().Add(123630 * time.Millisecond),
	}
}
