package runner

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"pseudobench/internal/connector"
)

// Worker repeatedly pulls work from its provider and runs it on its own connector.
type Worker struct {
	ID       int
	conn     connector.Connector
	provider *WorkProvider
	log      *log.Entry

	dispatched atomic.Uint64
}

// Dispatched returns how many items the worker has started.
func (w *Worker) Dispatched() uint64 {
	return w.dispatched.Load()
}

// Run loops until stop is closed or ctx ends. stop is checked between items only; an item
// that has started runs to completion with ctx. The first operation error ends the worker
// and is returned.
func (w *Worker) Run(ctx context.Context, stop <-chan struct{}) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.provider.wait(waitCtx); err != nil {
			return nil
		}
		// stop may have closed while waiting for the limiter
		select {
		case <-stop:
			return nil
		default:
		}

		item := w.provider.Work(w.conn, stop)
		w.dispatched.Add(1)
		if err := item.Run(ctx); err != nil {
			w.log.WithError(err).WithField("kind", item.Kind.String()).Error("worker stopped by failed operation")
			return err
		}
	}
}
