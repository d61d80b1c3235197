// Package natsrec publishes race records on NATS and keeps the latest summary
// per race in a JetStream key/value bucket.
package natsrec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

const DefaultBucket = "pylonrace_summaries"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type (
	Option   func(*Recorder)
	Recorder struct {
		pub    Publisher
		kv     jetstream.KeyValue
		prefix string
		l      *log.Logger
	}
)

func WithKeyValue(kv jetstream.KeyValue) Option {
	return func(r *Recorder) {
		r.kv = kv
	}
}

func WithPrefix(prefix string) Option {
	return func(r *Recorder) {
		r.prefix = prefix
	}
}

func New(pub Publisher, opts ...Option) *Recorder {
	ret := &Recorder{
		pub:    pub,
		prefix: "pylonrace",
		l:      log.Default().Named("recorder.nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// SummaryBucket creates or updates the key/value bucket for race summaries.
func SummaryBucket(ctx context.Context, nc *nats.Conn, bucket string) (jetstream.KeyValue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "pylon race summaries by race id",
		History:     1,
	})
}

func (r *Recorder) RecordRace(_ context.Context, rec model.RaceRecord) error {
	return r.publish(fmt.Sprintf("%s.race.%s", r.prefix, rec.RaceID), rec)
}

func (r *Recorder) RecordLap(_ context.Context, rec model.LapRecord) error {
	return r.publish(fmt.Sprintf("%s.lap.%s", r.prefix, rec.RaceID), rec)
}

func (r *Recorder) RecordSummary(ctx context.Context, s model.RaceSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.pub.Publish(fmt.Sprintf("%s.summary.%s", r.prefix, s.RaceID), data); err != nil {
		return err
	}
	if r.kv == nil {
		return nil
	}
	if _, err := r.kv.Put(ctx, s.RaceID.String(), data); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	r.l.Debug("stored race summary", log.String("raceId", s.RaceID.String()))
	return nil
}

func (r *Recorder) publish(subj string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.pub.Publish(subj, data)
}
