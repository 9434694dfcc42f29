package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"pseudobench/internal/connector"
	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

// Work is one dispatched unit of work. It carries everything it touches explicitly.
type Work struct {
	Kind    workload.Kind
	Conn    connector.Connector
	Stats   *stats.Statistics
	Records *RecordSet
	// MaxTime is the scenario deadline measured from Stats.StartTime. Failures after it are
	// expected and swallowed.
	MaxTime time.Duration
	// Stop ends read, update and delete sweeps between two records.
	Stop <-chan struct{}
}

// Run performs the backend call(s) of the item and counts the item once. Create and ping issue
// one call; read, update and delete issue one call per record known when the item starts and
// are timed as a whole.
func (w Work) Run(ctx context.Context) error {
	start := time.Now()
	switch w.Kind {
	case workload.Create:
		ref, err := w.Conn.Create(ctx)
		if err == nil {
			w.Records.Add(ref)
		}
		return w.settle(ctx, start, nil, err)

	case workload.Ping:
		_, err := w.Conn.Ping(ctx)
		return w.settle(ctx, start, nil, err)

	case workload.Read, workload.Update, workload.Delete:
		call := w.call()
		for _, ref := range w.Records.Snapshot() {
			if w.stopped() {
				break
			}
			if err := call(ctx, ref); err != nil && !errors.Is(err, connector.ErrNotFound) {
				return w.settle(ctx, start, &ref, err)
			}
		}
		return w.settle(ctx, start, nil, nil)
	}
	return errors.Errorf("unknown work kind %d", w.Kind)
}

func (w Work) call() func(context.Context, connector.RecordRef) error {
	switch w.Kind {
	case workload.Read:
		return w.Conn.Read
	case workload.Update:
		return w.Conn.Update
	default:
		return w.Conn.Delete
	}
}

func (w Work) stopped() bool {
	select {
	case <-w.Stop:
		return true
	default:
		return false
	}
}

// settle counts the finished item. A missing record still counts as done. Other failures end
// the item; they are swallowed and counted as ignored once the deadline has passed or the run
// was cancelled.
func (w Work) settle(ctx context.Context, start time.Time, ref *connector.RecordRef, err error) error {
	switch {
	case err == nil, errors.Is(err, connector.ErrNotFound):
		w.Stats.Observe(w.Kind, time.Since(start))
		w.Stats.Add(w.Kind)
		return nil
	case w.Stats.Elapsed() >= w.MaxTime, ctx.Err() != nil:
		w.Stats.AddIgnored()
		w.Stats.Add(w.Kind)
		return nil
	default:
		return &OperationError{Kind: w.Kind, Ref: ref, Err: err}
	}
}
