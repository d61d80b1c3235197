// Package status is the human readable status channel. Every message is
// logged and handed to the configured sinks.
package status

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

// Sink receives status messages. Sinks must not block.
type Sink interface {
	Publish(msg model.StatusMessage) error
}

type SinkFunc func(msg model.StatusMessage) error

func (f SinkFunc) Publish(msg model.StatusMessage) error {
	return f(msg)
}

type Reporter struct {
	sinks []Sink
	now   func() time.Time
	l     *log.Logger
}

type Option func(r *Reporter)

func WithSink(s ...Sink) Option {
	return func(r *Reporter) {
		r.sinks = append(r.sinks, s...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Reporter) {
		r.l = l
	}
}

func NewReporter(opts ...Option) *Reporter {
	ret := &Reporter{
		now: time.Now,
		l:   log.Default().Named("status"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (r *Reporter) Routine(format string, args ...any) {
	r.Report(model.PriorityRoutine, fmt.Sprintf(format, args...))
}

func (r *Reporter) Milestone(format string, args ...any) {
	r.Report(model.PriorityMilestone, fmt.Sprintf(format, args...))
}

func (r *Reporter) Critical(format string, args ...any) {
	r.Report(model.PriorityCritical, fmt.Sprintf(format, args...))
}

// Report logs text at a level matching p and publishes it to all sinks.
// Sink errors are logged, they never reach the caller.
func (r *Reporter) Report(p model.Priority, text string) {
	msg := model.StatusMessage{Priority: p, Text: text, Time: r.now()}
	switch p {
	case model.PriorityCritical:
		r.l.Error(text, log.Stringer("priority", p))
	case model.PriorityMilestone:
		r.l.Info(text, log.Stringer("priority", p))
	default:
		r.l.Debug(text, log.Stringer("priority", p))
	}
	var errs error
	for _, s := range r.sinks {
		errs = multierr.Append(errs, s.Publish(msg))
	}
	if errs != nil {
		r.l.Warn("could not publish status message", log.ErrorField(errs))
	}
}
