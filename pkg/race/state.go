package race

import (
	"slices"
	"time"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/pylonrace-go/pkg/course"
)

type State int

const (
	Idle State = iota
	Racing
	// Finishing only exists while Finish runs.
	Finishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Racing:
		return "racing"
	case Finishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// RaceState is the mutable state of one race attempt. It is owned by the
// Controller; RaceState() hands out copies.
type RaceState struct {
	Active             bool
	CurrentLap         int
	CurrentTargetIndex int
	CornerValidated    [course.Size]bool
	RaceStart          time.Time
	// indexed by lap number, sized laps+2
	LapStartTimes []time.Time
	LapTimes      []time.Duration
	BestLapTime   null.Val[time.Duration]
	BestLapNumber int

	ConsecutiveNavFailures int
	TotalNavSuccesses      int
	TotalNavFailures       int
	LastNavUpdate          time.Time
	LastTelemetry          time.Time
}

func (s RaceState) clone() RaceState {
	s.LapStartTimes = slices.Clone(s.LapStartTimes)
	s.LapTimes = slices.Clone(s.LapTimes)
	return s
}
