package race

import "math"

const (
	DefaultLaps = 5
	MaxLaps     = 100
)

// Config is fixed for the duration of one race attempt.
type Config struct {
	Laps        int
	CruiseSpeed float64 // m/s
	BankAngle   float64 // deg
	Altitude    float64 // m
}

// ClampLaps maps the requested lap count into [1,MaxLaps]. Values <= 0 use
// DefaultLaps, values above MaxLaps are rejected in favor of DefaultLaps.
func ClampLaps(requested int) (laps int, rejected bool) {
	switch {
	case requested <= 0:
		return DefaultLaps, false
	case requested > MaxLaps:
		return DefaultLaps, true
	default:
		return requested, false
	}
}

// lapArg converts the numeric signal argument. Non-finite values count as 0.
func lapArg(v float64) int {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int(math.Round(v))
	}
}
