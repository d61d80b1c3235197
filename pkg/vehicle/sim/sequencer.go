package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/vehicle"
)

// Sequencer plays the mission: it hands scripted control to the race
// controller by switching the airframe to guided mode and raising a signal.
// Control is reclaimed when released or when the timeout expires.
type Sequencer struct {
	mu       sync.Mutex
	airframe *Airframe
	signal   *vehicle.Signal
	raisedAt time.Time
	released []string
	timeouts []string
	now      func() time.Time
	l        *log.Logger
}

type SequencerOption func(s *Sequencer)

func WithSequencerClock(now func() time.Time) SequencerOption {
	return func(s *Sequencer) {
		s.now = now
	}
}

func NewSequencer(a *Airframe, opts ...SequencerOption) *Sequencer {
	ret := &Sequencer{
		airframe: a,
		now:      time.Now,
		l:        log.Default().Named("sim.sequencer"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Raise starts a scripted-control window for laps with the given timeout.
func (s *Sequencer) Raise(laps int, timeout time.Duration) vehicle.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig := vehicle.Signal{ID: uuid.NewString(), Timeout: timeout, Arg1: float64(laps)}
	s.signal = &sig
	s.raisedAt = s.now()
	s.airframe.SetMode(vehicle.ModeGuided)
	s.l.Info("scripted control window opened",
		log.String("attempt", sig.ID), log.Int("laps", laps), log.Duration("timeout", timeout))
	return sig
}

// Poll returns the current signal. An expired window is reclaimed first.
func (s *Sequencer) Poll() (vehicle.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signal == nil {
		return vehicle.Signal{}, false
	}
	if s.signal.Timeout > 0 && s.now().Sub(s.raisedAt) > s.signal.Timeout {
		s.l.Warn("scripted control timed out, reclaiming", log.String("attempt", s.signal.ID))
		s.timeouts = append(s.timeouts, s.signal.ID)
		s.reclaim()
		return vehicle.Signal{}, false
	}
	return *s.signal, true
}

func (s *Sequencer) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, id)
	if s.signal == nil || s.signal.ID != id {
		s.l.Debug("release for inactive attempt", log.String("attempt", id))
		return
	}
	s.l.Info("scripted control released", log.String("attempt", id))
	s.reclaim()
}

// Active reports whether a scripted-control window is open.
func (s *Sequencer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signal != nil
}

func (s *Sequencer) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.released...)
}

func (s *Sequencer) TimedOut() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.timeouts...)
}

func (s *Sequencer) reclaim() {
	s.signal = nil
	s.airframe.SetMode(vehicle.ModeAuto)
}
