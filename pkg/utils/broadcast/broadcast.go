// Package broadcast fans a single source channel out to any number of subscribers.
package broadcast

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/pylonrace-go/log"
)

var ErrBufferFull = errors.New("broadcast buffer full")

// slow subscribers are skipped after this duration
const sendTimeout = 50 * time.Millisecond

type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	eventKey       string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListeners   atomic.Int64
	l              *log.Logger
}

//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	eventKey, name string,
	source <-chan T,
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		eventKey:       eventKey,
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		l:              log.Default().Named("broadcast").With(log.String("name", name)),
	}
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns a channel receiving every message from now on.
// The channel is closed when the server is closed.
func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.l.Debug("closing broadcast server",
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("pylonrace.broadcast")
	for _, d := range []struct {
		name  string
		desc  string
		value *atomic.Int64
	}{
		{"pylonrace.broadcast.rcv", "Number of received messages", &b.numRcv},
		{"pylonrace.broadcast.snd", "Number of sent messages", &b.numSnd},
		{"pylonrace.broadcast.skip", "Number of skipped messages", &b.numSkip},
		{"pylonrace.broadcast.listener", "Number of listeners", &b.numListeners},
	} {
		value := d.value
		if _, err := meter.Int64ObservableGauge(d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(), metric.WithAttributes(
					attribute.String("name", b.name),
					attribute.String("event", b.eventKey)))
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", d.name), log.ErrorField(err))
		}
	}
}

//nolint:cyclop // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListeners.Store(0)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListeners.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.numListeners.Store(int64(len(b.listeners)))
		case msg, ok := <-b.source:
			if !ok {
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd.Add(1)
				case <-time.After(sendTimeout):
					b.numSkip.Add(1)
				}
			}
		}
	}
}
