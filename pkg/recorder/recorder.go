// Package recorder is the append-only sink for race and lap records.
package recorder

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

type Recorder interface {
	RecordRace(ctx context.Context, r model.RaceRecord) error
	RecordLap(ctx context.Context, l model.LapRecord) error
	RecordSummary(ctx context.Context, s model.RaceSummary) error
}

// Multi writes to every recorder and combines their errors.
type Multi []Recorder

func (m Multi) RecordRace(ctx context.Context, r model.RaceRecord) error {
	var errs error
	for _, rec := range m {
		errs = multierr.Append(errs, rec.RecordRace(ctx, r))
	}
	return errs
}

func (m Multi) RecordLap(ctx context.Context, l model.LapRecord) error {
	var errs error
	for _, rec := range m {
		errs = multierr.Append(errs, rec.RecordLap(ctx, l))
	}
	return errs
}

func (m Multi) RecordSummary(ctx context.Context, s model.RaceSummary) error {
	var errs error
	for _, rec := range m {
		errs = multierr.Append(errs, rec.RecordSummary(ctx, s))
	}
	return errs
}

type Nop struct{}

func (Nop) RecordRace(context.Context, model.RaceRecord) error     { return nil }
func (Nop) RecordLap(context.Context, model.LapRecord) error       { return nil }
func (Nop) RecordSummary(context.Context, model.RaceSummary) error { return nil }

// Memory keeps all records, safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	races     []model.RaceRecord
	laps      []model.LapRecord
	summaries []model.RaceSummary
}

func (m *Memory) RecordRace(_ context.Context, r model.RaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.races = append(m.races, r)
	return nil
}

func (m *Memory) RecordLap(_ context.Context, l model.LapRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.laps = append(m.laps, l)
	return nil
}

func (m *Memory) RecordSummary(_ context.Context, s model.RaceSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

func (m *Memory) Races() []model.RaceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RaceRecord(nil), m.races...)
}

func (m *Memory) Laps() []model.LapRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.LapRecord(nil), m.laps...)
}

func (m *Memory) Summaries() []model.RaceSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RaceSummary(nil), m.summaries...)
}
