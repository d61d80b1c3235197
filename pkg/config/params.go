package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/mpapenbr/pylonrace-go/log"
)

// ParamStore provides named vehicle parameters.
type ParamStore interface {
	Param(name string) (float64, bool)
}

// MapParams is a fixed set of parameters.
type MapParams map[string]float64

func (m MapParams) Param(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// ViperParams reads parameters from the "params" section of the config file.
// Names are case insensitive.
type ViperParams struct {
	v *viper.Viper
}

func NewViperParams(v *viper.Viper) *ViperParams {
	return &ViperParams{v: v}
}

func (p *ViperParams) Param(name string) (float64, bool) {
	key := "params." + strings.ToLower(name)
	if !p.v.IsSet(key) {
		return 0, false
	}
	return p.v.GetFloat64(key), true
}

// RaceParams are the vehicle dependent values resolved at race start.
type RaceParams struct {
	CruiseSpeed float64 // m/s
	BankAngle   float64 // deg
	Altitude    float64 // m
}

func DefaultRaceParams() RaceParams {
	return RaceParams{
		CruiseSpeed: CruiseSpeedChain.Default,
		BankAngle:   BankAngleChain.Default,
		Altitude:    AltitudeChain.Default,
	}
}

// FallbackChain resolves a value from a primary parameter, a legacy parameter
// with unit conversion and a final default. Values <= 0 count as unset.
type FallbackChain struct {
	Primary     string
	Legacy      string
	LegacyScale float64
	Default     float64
	// values outside [WarnMin,WarnMax] are used but logged. Both zero disables the check.
	WarnMin float64
	WarnMax float64
}

var (
	CruiseSpeedChain = FallbackChain{
		Primary: "AIRSPEED_CRUISE", Legacy: "TRIM_ARSPD_CM", LegacyScale: 0.01,
		Default: 15, WarnMin: 8, WarnMax: 40,
	}
	BankAngleChain = FallbackChain{
		Primary: "ROLL_LIMIT_DEG", Legacy: "LIM_ROLL_CD", LegacyScale: 0.01,
		Default: 45, WarnMin: 20, WarnMax: 70,
	}
	AltitudeChain = FallbackChain{
		Primary: "PYLON_ALT_M", Legacy: "ALT_HOLD_RTL", LegacyScale: 0.01,
		Default: 30,
	}
)

// Resolve returns the value and the name of the source it came from.
func (c FallbackChain) Resolve(store ParamStore, l *log.Logger) (value float64, source string) {
	switch {
	case lookup(store, c.Primary, &value):
		source = c.Primary
	case lookup(store, c.Legacy, &value):
		value *= c.LegacyScale
		source = c.Legacy
	default:
		value = c.Default
		source = "default"
	}
	if (c.WarnMin != 0 || c.WarnMax != 0) && (value < c.WarnMin || value > c.WarnMax) {
		l.Warn("parameter outside typical range",
			log.String("param", c.Primary),
			log.String("source", source),
			log.Float64("value", value),
			log.Float64("min", c.WarnMin),
			log.Float64("max", c.WarnMax))
	}
	return value, source
}

func lookup(store ParamStore, name string, dest *float64) bool {
	if store == nil || name == "" {
		return false
	}
	v, ok := store.Param(name)
	if !ok || v <= 0 {
		return false
	}
	*dest = v
	return true
}

// ResolveRaceParams applies all fallback chains.
func ResolveRaceParams(store ParamStore, l *log.Logger) RaceParams {
	ret := RaceParams{}
	var src [3]string
	ret.CruiseSpeed, src[0] = CruiseSpeedChain.Resolve(store, l)
	ret.BankAngle, src[1] = BankAngleChain.Resolve(store, l)
	ret.Altitude, src[2] = AltitudeChain.Resolve(store, l)
	l.Debug("resolved race parameters",
		log.Float64("cruise", ret.CruiseSpeed), log.String("cruiseSource", src[0]),
		log.Float64("bank", ret.BankAngle), log.String("bankSource", src[1]),
		log.Float64("alt", ret.Altitude), log.String("altSource", src[2]))
	return ret
}

// GuidanceFromViper overlays the "guidance" section of the config on the defaults.
func GuidanceFromViper(v *viper.Viper) (Guidance, error) {
	ret := DefaultGuidance()
	if !v.IsSet("guidance") {
		return ret, nil
	}
	if err := v.UnmarshalKey("guidance", &ret); err != nil {
		return DefaultGuidance(), err
	}
	return ret, nil
}
