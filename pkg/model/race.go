package model

import (
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FinishReason string

const (
	ReasonCompleted       FinishReason = "completed"
	ReasonModeChanged     FinishReason = "mode changed"
	ReasonNavUnresponsive FinishReason = "navigation unresponsive"
	ReasonAHRSUnhealthy   FinishReason = "AHRS unhealthy"
	ReasonNoPositionFix   FinishReason = "no position fix"
	ReasonSuperseded      FinishReason = "superseded by new race signal"
	ReasonShutdown        FinishReason = "shutdown"
)

// Aborted reports whether the race ended for any other reason than completion.
func (r FinishReason) Aborted() bool {
	return r != ReasonCompleted
}

// RaceRecord is written once per race start.
type RaceRecord struct {
	RaceID      uuid.UUID `json:"raceId"`
	AttemptID   string    `json:"attemptId"`
	Course      string    `json:"course"`
	Laps        int       `json:"laps"`
	CruiseSpeed float64   `json:"cruiseSpeed"` // m/s
	BankAngle   float64   `json:"bankAngle"`   // deg
	Altitude    float64   `json:"altitude"`    // m
	StartedAt   time.Time `json:"startedAt"`
}

// LapRecord is written for every completed lap.
type LapRecord struct {
	RaceID       uuid.UUID     `json:"raceId"`
	Lap          int           `json:"lap"`
	LapTime      time.Duration `json:"lapTime"`
	NavSuccesses int           `json:"navSuccesses"`
	NavFailures  int           `json:"navFailures"`
	RecordedAt   time.Time     `json:"recordedAt"`
}

// LapSeconds is the lap time in seconds with millisecond precision.
func (l LapRecord) LapSeconds() decimal.Decimal {
	return DurationSeconds(l.LapTime)
}

func DurationSeconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Round(time.Millisecond).Milliseconds()).Shift(-3)
}

// SecondsDuration is the inverse of DurationSeconds.
func SecondsDuration(s decimal.Decimal) time.Duration {
	return time.Duration(s.Shift(3).IntPart()) * time.Millisecond
}

// RaceSummary is produced when a race attempt ends.
type RaceSummary struct {
	RaceID         uuid.UUID               `json:"raceId"`
	Reason         FinishReason            `json:"reason"`
	Laps           int                     `json:"laps"`
	LapsCompleted  int                     `json:"lapsCompleted"`
	TotalTime      time.Duration           `json:"totalTime"`
	BestLap        null.Val[time.Duration] `json:"bestLap"`
	BestLapNumber  int                     `json:"bestLapNumber"`
	MeanLap        time.Duration           `json:"meanLap"`
	LapStdDev      time.Duration           `json:"lapStdDev"`
	NavSuccesses   int                     `json:"navSuccesses"`
	NavFailures    int                     `json:"navFailures"`
	NavSuccessRate null.Val[float64]       `json:"navSuccessRate"` // percent
	FinishedAt     time.Time               `json:"finishedAt"`
}
