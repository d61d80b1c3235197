package config

import "time"

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string        // connection string for the postgres recorder (optional)
	SQLiteFile        string        // path of the sqlite flight recorder (optional)
	NatsURL           string        // NATS server for status and record fan-out (optional)
	StatusSerial      string        // serial port of the telemetry radio (optional)
	StatusBaud        int           // baud rate of the telemetry radio
	WaitForServices   string        // duration to wait for other services to be ready
	LogLevel          string        // sets the log level (zap log level values)
	SQLLogLevel       string        // sets the log level for sql subsystem
	LogFormat         string        // text vs json
	LogFile           string        // additional rotated log file
	LogFilter         string        // zapfilter rules
	EnableTelemetry   bool          // enable telemetry
	TelemetryEndpoint string        // endpoint for telemetry
	CourseFile        string        // course definition (yaml), empty for the built-in course
	LoopRate          float64       // control loop rate in Hz
	Laps              int           // lap count requested by the simulated sequencer
	RaceTimeout       time.Duration // scripted-control window of the simulated sequencer
	FailNavAfter      time.Duration // simulator: reject all nav commands after this duration (0=never)
)

const (
	DefaultLoopRate          = 50.0
	DefaultRaceMode          = "GUIDED"
	DefaultTelemetryInterval = 2 * time.Second
)

// Guidance holds the tunables of the race controller which are not vehicle
// parameters.
type Guidance struct {
	AnticipationFactor float64       `mapstructure:"anticipation-factor"`
	LookaheadTime      float64       `mapstructure:"lookahead-time"`
	FixedLookahead     float64       `mapstructure:"fixed-lookahead"`
	ValidationRadius   float64       `mapstructure:"validation-radius"`
	NavMinInterval     time.Duration `mapstructure:"nav-min-interval"`
	MaxNavFailures     int           `mapstructure:"max-nav-failures"`
	TelemetryInterval  time.Duration `mapstructure:"telemetry-interval"`
	FailureLogInterval time.Duration `mapstructure:"failure-log-interval"`
	RaceMode           string        `mapstructure:"race-mode"`
}

func DefaultGuidance() Guidance {
	return Guidance{
		AnticipationFactor: 1.0,
		LookaheadTime:      1.5,
		ValidationRadius:   15,
		NavMinInterval:     50 * time.Millisecond,
		MaxNavFailures:     10,
		TelemetryInterval:  DefaultTelemetryInterval,
		FailureLogInterval: time.Second,
		RaceMode:           DefaultRaceMode,
	}
}
