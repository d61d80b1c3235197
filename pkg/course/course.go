// Package course holds the fixed five point pylon course and the gate line detector.
package course

import (
	"errors"
	"fmt"

	"github.com/mpapenbr/pylonrace-go/pkg/geo"
)

// Size is the number of waypoints of every course: the gate plus four corners.
const Size = 5

const (
	GateIndex = iota
	SWIndex
	NWIndex
	NEIndex
	SEIndex
)

var (
	ErrCourseSize   = errors.New("course must consist of exactly 5 waypoints")
	ErrZeroWaypoint = errors.New("waypoint at 0,0")
)

type Waypoint struct {
	geo.Position `yaml:",inline"`
	Name         string `yaml:"name"`
}

func (w Waypoint) String() string {
	return fmt.Sprintf("%s(%s)", w.Name, w.Position)
}

// Course is the ordered sequence Gate, SW, NW, NE, SE. It is immutable after New.
type Course struct {
	name      string
	waypoints []Waypoint
}

type Option func(c *Course)

func WithName(name string) Option {
	return func(c *Course) {
		c.name = name
	}
}

// New validates the waypoints and returns the course.
// Anything but exactly Size waypoints is a configuration error, so is a
// waypoint at 0,0 which is never a valid navigation target.
func New(waypoints []Waypoint, opts ...Option) (*Course, error) {
	if len(waypoints) != Size {
		return nil, fmt.Errorf("%w: got %d", ErrCourseSize, len(waypoints))
	}
	for i, wp := range waypoints {
		if wp.IsZero() {
			return nil, fmt.Errorf("%w: index %d (%s)", ErrZeroWaypoint, i, wp.Name)
		}
	}
	ret := &Course{
		name:      "course",
		waypoints: make([]Waypoint, Size),
	}
	copy(ret.waypoints, waypoints)
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (c *Course) Name() string { return c.name }
func (c *Course) Len() int     { return len(c.waypoints) }

// At returns the waypoint at index i modulo Size, so At(5) is the gate again.
func (c *Course) At(i int) Waypoint {
	return c.waypoints[Wrap(i)]
}

// Waypoint is the checked variant of At: indices outside [0,Size) are rejected.
func (c *Course) Waypoint(i int) (Waypoint, bool) {
	if c == nil || i < 0 || i >= len(c.waypoints) {
		return Waypoint{}, false
	}
	return c.waypoints[i], true
}

func (c *Course) Gate() Waypoint {
	return c.waypoints[GateIndex]
}

// Waypoints returns a copy of all waypoints in course order.
func (c *Course) Waypoints() []Waypoint {
	ret := make([]Waypoint, len(c.waypoints))
	copy(ret, c.waypoints)
	return ret
}

// Next returns the index following i.
func Next(i int) int {
	return Wrap(i + 1)
}

func Wrap(i int) int {
	return ((i % Size) + Size) % Size
}

func IsCorner(i int) bool {
	return Wrap(i) != GateIndex
}

// Leg describes the geometry around one waypoint.
type Leg struct {
	Name            string
	InboundDist     float64
	InboundBearing  float64
	OutboundDist    float64
	OutboundBearing float64
	TurnAngle       float64
}

// Legs computes inbound/outbound legs and turn angles for every waypoint.
func (c *Course) Legs() []Leg {
	ret := make([]Leg, 0, Size)
	for i := range c.waypoints {
		prev := c.At(i - 1)
		cur := c.At(i)
		next := c.At(i + 1)
		in := geo.Bearing(prev.Position, cur.Position)
		out := geo.Bearing(cur.Position, next.Position)
		ret = append(ret, Leg{
			Name:            cur.Name,
			InboundDist:     geo.Distance(prev.Position, cur.Position),
			InboundBearing:  in,
			OutboundDist:    geo.Distance(cur.Position, next.Position),
			OutboundBearing: out,
			TurnAngle:       geo.TurnAngle(in, out),
		})
	}
	return ret
}

// Length is the sum of all legs.
func (c *Course) Length() float64 {
	sum := 0.0
	for i := range c.waypoints {
		sum += geo.Distance(c.At(i).Position, c.At(i+1).Position)
	}
	return sum
}

// Default returns the SEFSD field course. The gate sits on the south
// straight, north of both south corners, so every lap crosses its latitude.
func Default() *Course {
	ret, _ := New([]Waypoint{
		{Name: "GATE", Position: geo.Position{Lat: 32.76314815, Lon: -117.21375170}},
		{Name: "SW", Position: geo.Position{Lat: 32.76304460, Lon: -117.21412720}},
		{Name: "NW", Position: geo.Position{Lat: 32.76338970, Lon: -117.21420500}},
		{Name: "NE", Position: geo.Position{Lat: 32.76351600, Lon: -117.21344860}},
		{Name: "SE", Position: geo.Position{Lat: 32.76310780, Lon: -117.21337620}},
	}, WithName("sefsd"))
	return ret
}
