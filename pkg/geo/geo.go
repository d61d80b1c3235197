// Package geo provides the great-circle helpers used by the guidance code.
// All angles are degrees, all distances meters.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadius is the mean earth radius used for all distance computations.
const EarthRadius = 6371000.0

type Position struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
	Alt float64 `yaml:"alt,omitempty" json:"alt,omitempty"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.7f,%.7f", p.Lat, p.Lon)
}

// IsZero reports whether p is the degenerate (0,0) location.
func (p Position) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

func (p Position) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// Distance returns the great-circle distance between a and b.
func Distance(a, b Position) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadius
}

// Bearing returns the initial bearing from a to b in [0,360).
func Bearing(a, b Position) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)
	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeBearing(degrees(math.Atan2(x, y)))
}

// Offset returns the position reached when travelling dist meters from p on
// the given bearing.
func Offset(p Position, bearing, dist float64) Position {
	lat1 := radians(p.Lat)
	lon1 := radians(p.Lon)
	brg := radians(bearing)
	d := dist / EarthRadius
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(
		math.Sin(brg)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return Position{Lat: degrees(lat2), Lon: normalizeLon(degrees(lon2)), Alt: p.Alt}
}

// OffsetNE moves p by north/east meters (flat earth, fine at course scale).
func OffsetNE(p Position, north, east float64) Position {
	dLat := north / EarthRadius
	dLon := east / (EarthRadius * math.Cos(radians(p.Lat)))
	return Position{Lat: p.Lat + degrees(dLat), Lon: p.Lon + degrees(dLon), Alt: p.Alt}
}

// Interpolate blends latitude and longitude linearly, f=0 yields a, f=1 yields b.
func Interpolate(a, b Position, f float64) Position {
	return Position{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
		Alt: a.Alt + (b.Alt-a.Alt)*f,
	}
}

func NormalizeBearing(b float64) float64 {
	b = math.Mod(b, 360)
	if b < 0 {
		b += 360
	}
	return b
}

// TurnAngle returns the absolute heading change from inbound to outbound in [0,180].
func TurnAngle(inbound, outbound float64) float64 {
	d := math.Abs(NormalizeBearing(outbound) - NormalizeBearing(inbound))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// HeadingError is the signed turn from heading to target in (-180,180],
// positive means turn right.
func HeadingError(heading, target float64) float64 {
	d := NormalizeBearing(target - heading)
	if d > 180 {
		d -= 360
	}
	return d
}

func normalizeLon(lon float64) float64 {
	return math.Mod(lon+540, 360) - 180
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
