// Package ratelimit suppresses repeated messages of the same class within a cooldown window.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	mu        sync.Mutex
	interval  time.Duration
	intervals map[string]time.Duration
	classes   map[string]*rate.Limiter
	now       func() time.Time
}

type Option func(l *Limiter)

// WithClock replaces time.Now, used by tests and by the simulator clock.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithInterval overrides the cooldown for a single message class.
func WithInterval(class string, d time.Duration) Option {
	return func(l *Limiter) {
		l.intervals[class] = d
	}
}

func New(interval time.Duration, opts ...Option) *Limiter {
	ret := &Limiter{
		interval:  interval,
		intervals: make(map[string]time.Duration),
		classes:   make(map[string]*rate.Limiter),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Allow reports whether a message of the given class may be emitted now.
// A class is always allowed the first time.
func (l *Limiter) Allow(class string) bool {
	return l.AllowAt(class, l.now())
}

func (l *Limiter) AllowAt(class string, t time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.classes[class]
	if !ok {
		d := l.interval
		if v, found := l.intervals[class]; found {
			d = v
		}
		lim = rate.NewLimiter(rate.Every(d), 1)
		l.classes[class] = lim
	}
	return lim.AllowN(t, 1)
}

// Reset forgets all classes, the next message of each class passes.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.classes = make(map[string]*rate.Limiter)
}
