package recorder

import (
	"context"
	"slices"
	"sync"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

type job struct {
	race bool
	run  func(ctx context.Context) error
}

// Queue decouples the control loop from slow recorders. Records are buffered
// up to a fixed capacity; when full the oldest lap or summary record is
// evicted. Race records are never evicted since laps and summaries refer to them.
type Queue struct {
	target   Recorder
	capacity int
	mu       sync.Mutex
	jobs     []job
	notify   chan struct{}
	l        *log.Logger
}

type QueueOption func(q *Queue)

func WithQueueLogger(l *log.Logger) QueueOption {
	return func(q *Queue) {
		q.l = l
	}
}

func NewQueue(target Recorder, capacity int, opts ...QueueOption) *Queue {
	ret := &Queue{
		target:   target,
		capacity: max(capacity, 1),
		notify:   make(chan struct{}, 1),
		l:        log.Default().Named("recorder"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (q *Queue) RecordRace(_ context.Context, r model.RaceRecord) error {
	q.push(job{race: true, run: func(ctx context.Context) error { return q.target.RecordRace(ctx, r) }})
	return nil
}

func (q *Queue) RecordLap(_ context.Context, l model.LapRecord) error {
	q.push(job{run: func(ctx context.Context) error { return q.target.RecordLap(ctx, l) }})
	return nil
}

func (q *Queue) RecordSummary(_ context.Context, s model.RaceSummary) error {
	q.push(job{run: func(ctx context.Context) error { return q.target.RecordSummary(ctx, s) }})
	return nil
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) push(j job) {
	q.mu.Lock()
	if len(q.jobs) >= q.capacity && !q.evict() && !j.race {
		q.mu.Unlock()
		q.l.Warn("recorder queue full of race records, dropping record")
		return
	}
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// evict removes the oldest lap or summary record. Must be called with mu held.
func (q *Queue) evict() bool {
	i := slices.IndexFunc(q.jobs, func(j job) bool { return !j.race })
	if i < 0 {
		return false
	}
	q.jobs = slices.Delete(q.jobs, i, i+1)
	q.l.Warn("recorder queue full, dropping oldest record")
	return true
}

func (q *Queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

// Run writes queued records until ctx is done, then drains what is left
// using a fresh context.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			q.drain()
			return nil
		}
		if j, ok := q.pop(); ok {
			q.exec(ctx, j)
			continue
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
		}
	}
}

func (q *Queue) drain() {
	ctx := context.Background()
	for j, ok := q.pop(); ok; j, ok = q.pop() {
		q.exec(ctx, j)
	}
}

func (q *Queue) exec(ctx context.Context, j job) {
	if err := j.run(ctx); err != nil {
		q.l.Warn("could not write record", log.ErrorField(err))
	}
}
