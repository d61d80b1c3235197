package guidance

import (
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/course"
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/utils/ratelimit"
)

const DefaultLookaheadTime = 1.5 // seconds

// Blender interpolates the commanded target from the current waypoint toward
// the next one once the aircraft is within the lookahead distance.
type Blender struct {
	timeConstant  float64
	fixedDistance float64
	limiter       *ratelimit.Limiter
	l             *log.Logger
}

type BlenderOption func(b *Blender)

// WithLookaheadTime sets the lookahead distance to groundspeed * seconds.
func WithLookaheadTime(seconds float64) BlenderOption {
	return func(b *Blender) {
		b.timeConstant = seconds
	}
}

// WithFixedLookahead uses a constant lookahead distance in meters instead.
func WithFixedLookahead(meters float64) BlenderOption {
	return func(b *Blender) {
		b.fixedDistance = meters
	}
}

func WithBlenderLogger(l *log.Logger) BlenderOption {
	return func(b *Blender) {
		b.l = l
	}
}

func NewBlender(opts ...BlenderOption) *Blender {
	ret := &Blender{
		timeConstant: DefaultLookaheadTime,
		limiter:      ratelimit.New(5 * time.Second),
		l:            log.Default().Named("guidance"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (b *Blender) Distance(groundspeed float64) float64 {
	if b.fixedDistance > 0 {
		return b.fixedDistance
	}
	return groundspeed * b.timeConstant
}

// BlendFactor is clamp(1 - dist/lookahead, 0, 1); zero if lookahead is not positive.
func BlendFactor(dist, lookahead float64) float64 {
	if lookahead <= 0 {
		return 0
	}
	return lo.Clamp(1-dist/lookahead, 0, 1)
}

// Target returns the blended navigation target. Invalid waypoints fall back to
// the gate so a (0,0) location is never produced.
func (b *Blender) Target(pos geo.Position, c *course.Course, cur, next int, groundspeed float64) geo.Position {
	curWp, ok1 := c.Waypoint(cur)
	nextWp, ok2 := c.Waypoint(next)
	if !ok1 || !ok2 || curWp.IsZero() || nextWp.IsZero() {
		if b.limiter.Allow("fallback") {
			b.l.Warn("invalid lookahead waypoint, falling back to gate",
				log.Int("current", cur), log.Int("next", next))
		}
		return c.Gate().Position
	}
	dist := geo.Distance(pos, curWp.Position)
	lookahead := b.Distance(groundspeed)
	if lookahead <= 0 || dist >= lookahead {
		return curWp.Position
	}
	return geo.Interpolate(curWp.Position, nextWp.Position, BlendFactor(dist, lookahead))
}
