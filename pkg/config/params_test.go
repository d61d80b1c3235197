package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mpapenbr/pylonrace-go/log"
)

func observed() (*log.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return log.FromZap(zap.New(core)), logs
}

func TestFallbackChains(t *testing.T) {
	tests := []struct {
		name     string
		params   MapParams
		chain    FallbackChain
		want     float64
		source   string
		warnings int
	}{
		{"cruise primary", MapParams{"AIRSPEED_CRUISE": 18}, CruiseSpeedChain, 18, "AIRSPEED_CRUISE", 0},
		{"cruise legacy", MapParams{"TRIM_ARSPD_CM": 2200}, CruiseSpeedChain, 22, "TRIM_ARSPD_CM", 0},
		{"cruise primary wins", MapParams{"AIRSPEED_CRUISE": 18, "TRIM_ARSPD_CM": 2200}, CruiseSpeedChain, 18, "AIRSPEED_CRUISE", 0},
		{"cruise zero is unset", MapParams{"AIRSPEED_CRUISE": 0, "TRIM_ARSPD_CM": 1600}, CruiseSpeedChain, 16, "TRIM_ARSPD_CM", 0},
		{"cruise default", MapParams{}, CruiseSpeedChain, 15, "default", 0},
		{"cruise too fast", MapParams{"AIRSPEED_CRUISE": 55}, CruiseSpeedChain, 55, "AIRSPEED_CRUISE", 1},
		{"bank legacy", MapParams{"LIM_ROLL_CD": 6500}, BankAngleChain, 65, "LIM_ROLL_CD", 0},
		{"bank too shallow", MapParams{"ROLL_LIMIT_DEG": 10}, BankAngleChain, 10, "ROLL_LIMIT_DEG", 1},
		{"bank default", nil, BankAngleChain, 45, "default", 0},
		{"alt legacy", MapParams{"ALT_HOLD_RTL": 4000}, AltitudeChain, 40, "ALT_HOLD_RTL", 0},
		{"alt never warns", MapParams{"PYLON_ALT_M": 500}, AltitudeChain, 500, "PYLON_ALT_M", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, logs := observed()
			var store ParamStore
			if tt.params != nil {
				store = tt.params
			}
			got, source := tt.chain.Resolve(store, l)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.warnings, logs.FilterMessage("parameter outside typical range").Len())
		})
	}
}

func TestViperParams(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
params:
  AIRSPEED_CRUISE: 17.5
  lim_roll_cd: 5000
guidance:
  lookahead-time: 2
  nav-min-interval: 100ms
`)))
	p := NewViperParams(v)
	l, _ := observed()
	got := ResolveRaceParams(p, l)
	assert.Equal(t, RaceParams{CruiseSpeed: 17.5, BankAngle: 50, Altitude: 30}, got)

	_, ok := p.Param("UNKNOWN")
	assert.False(t, ok)

	g, err := GuidanceFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.LookaheadTime)
	assert.Equal(t, 100*time.Millisecond, g.NavMinInterval)
	assert.Equal(t, 10, g.MaxNavFailures)
}

func TestGuidanceDefaults(t *testing.T) {
	g, err := GuidanceFromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultGuidance(), g)
}
