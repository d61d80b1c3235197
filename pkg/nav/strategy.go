package nav

import (
	"github.com/mpapenbr/pylonrace-go/pkg/geo"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

// Command is the input handed to every strategy.
type Command struct {
	Current geo.Position
	Target  geo.Position
	Cruise  float64
}

// Strategy is one delivery mechanism. Strategies are tried in order until one succeeds.
type Strategy struct {
	Name string
	Send func(cmd Command) error
}

const (
	StrategyAbsolute    = "absolute"
	StrategyIncremental = "incremental"
	StrategyVelocity    = "velocity"
)

// DefaultStrategies returns absolute target, incremental update and, as a last
// resort, a velocity vector toward the target at cruise speed.
func DefaultStrategies(c vehicle.Commander) []Strategy {
	return []Strategy{
		{
			Name: StrategyAbsolute,
			Send: func(cmd Command) error {
				return c.SetTargetLocation(cmd.Target)
			},
		},
		{
			Name: StrategyIncremental,
			Send: func(cmd Command) error {
				return c.UpdateTargetLocation(cmd.Current, cmd.Target)
			},
		},
		{
			Name: StrategyVelocity,
			Send: func(cmd Command) error {
				brg := geo.Bearing(cmd.Current, cmd.Target)
				return c.SetTargetVelocity(vehicle.VelocityFromBearing(brg, cmd.Cruise))
			},
		},
	}
}
