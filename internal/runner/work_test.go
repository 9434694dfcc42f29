package runner

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/connector"
	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

func newWork(t *testing.T, kind workload.Kind, conn connector.Connector) (Work, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := stats.New(stats.WithClock(clock.Now))
	s.Start()
	return Work{
		Kind:    kind,
		Conn:    conn,
		Stats:   s,
		Records: NewRecordSet(),
		MaxTime: time.Second,
		Stop:    make(chan struct{}),
	}, clock
}

func TestWork_CreateAddsRecord(t *testing.T) {
	conn := new(mockConnector)
	ref := connector.RecordRef{IDType: "ID", IDString: "one"}
	conn.On("Create", mock.Anything).Return(ref, nil).Once()

	w, _ := newWork(t, workload.Create, conn)
	require.NoError(t, w.Run(t.Context()))

	assert.Equal(t, []connector.RecordRef{ref}, w.Records.Snapshot())
	assert.Equal(t, uint64(1), w.Stats.Count(workload.Create))
	conn.AssertExpectations(t)
}

func TestWork_SweepCallsOncePerRecordAndCountsOnce(t *testing.T) {
	for _, kind := range []workload.Kind{workload.Read, workload.Update, workload.Delete} {
		t.Run(kind.String(), func(t *testing.T) {
			conn := new(mockConnector)
			w, _ := newWork(t, kind, conn)
			for _, ref := range refs(3) {
				w.Records.Add(ref)
				conn.On(kindMethod(kind), mock.Anything, ref).Return(nil).Once()
			}

			require.NoError(t, w.Run(t.Context()))
			assert.Equal(t, uint64(1), w.Stats.Count(kind))
			assert.Equal(t, int64(1), w.Stats.Snapshot().Latency[kind].Count)
			assert.Equal(t, 3, w.Records.Len(), "records are never removed")
			conn.AssertExpectations(t)
		})
	}
}

func TestWork_NotFoundCountsAsDone(t *testing.T) {
	conn := new(mockConnector)
	w, _ := newWork(t, workload.Read, conn)
	for _, ref := range refs(2) {
		w.Records.Add(ref)
	}
	conn.On("Read", mock.Anything, mock.Anything).
		Return(&connector.StatusError{Method: "GET", URL: "/p", Code: 404})

	require.NoError(t, w.Run(t.Context()))
	assert.Equal(t, uint64(1), w.Stats.Count(workload.Read))
	assert.Equal(t, uint64(0), w.Stats.Snapshot().Ignored)
	conn.AssertNumberOfCalls(t, "Read", 2)
}

func TestWork_EmptySweepCountsOnce(t *testing.T) {
	for _, kind := range []workload.Kind{workload.Read, workload.Update, workload.Delete} {
		t.Run(kind.String(), func(t *testing.T) {
			conn := new(mockConnector)
			w, _ := newWork(t, kind, conn)

			require.NoError(t, w.Run(t.Context()))
			assert.Equal(t, uint64(1), w.Stats.Count(kind))
			conn.AssertNotCalled(t, kindMethod(kind), mock.Anything, mock.Anything)
		})
	}
}

func TestWork_FailureBeforeDeadlineIsReturned(t *testing.T) {
	conn := new(mockConnector)
	w, _ := newWork(t, workload.Update, conn)
	for _, ref := range refs(3) {
		w.Records.Add(ref)
	}
	boom := errors.New("boom")
	conn.On("Update", mock.Anything, refs(3)[0]).Return(nil).Once()
	conn.On("Update", mock.Anything, refs(3)[1]).Return(boom).Once()

	err := w.Run(t.Context())
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, workload.Update, opErr.Kind)
	assert.Equal(t, refs(3)[1], *opErr.Ref)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, w.Stats.Count(workload.Update))
	conn.AssertExpectations(t)
}

func TestWork_FailureAfterDeadlineIsSwallowed(t *testing.T) {
	conn := new(mockConnector)
	conn.On("Ping", mock.Anything).Return(0, errors.New("connection reset"))
	w, clock := newWork(t, workload.Ping, conn)
	clock.Advance(2 * time.Second)

	require.NoError(t, w.Run(t.Context()))
	snap := w.Stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Ignored)
	assert.Equal(t, uint64(1), snap.Counts[workload.Ping])
}

func TestWork_FailureAfterDeadlineEndsSweep(t *testing.T) {
	conn := new(mockConnector)
	w, clock := newWork(t, workload.Read, conn)
	for _, ref := range refs(4) {
		w.Records.Add(ref)
	}
	conn.On("Read", mock.Anything, refs(4)[0]).Return(nil).Once()
	conn.On("Read", mock.Anything, refs(4)[1]).Return(errors.New("connection reset")).Once()
	clock.Advance(2 * time.Second)

	require.NoError(t, w.Run(t.Context()))
	snap := w.Stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Counts[workload.Read])
	assert.Equal(t, uint64(1), snap.Ignored)
	conn.AssertExpectations(t)
	conn.AssertNumberOfCalls(t, "Read", 2)
}

func TestWork_FailureAfterCancelIsSwallowed(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	conn := new(mockConnector)
	conn.On("Create", mock.Anything).Return(connector.RecordRef{}, context.Canceled)
	w, _ := newWork(t, workload.Create, conn)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 0, w.Records.Len())
	assert.Equal(t, uint64(1), w.Stats.Snapshot().Ignored)
}

func TestWork_StopEndsSweep(t *testing.T) {
	conn := new(mockConnector)
	w, _ := newWork(t, workload.Delete, conn)
	for _, ref := range refs(5) {
		w.Records.Add(ref)
	}
	stop := make(chan struct{})
	close(stop)
	w.Stop = stop

	require.NoError(t, w.Run(t.Context()))
	conn.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Equal(t, uint64(1), w.Stats.Count(workload.Delete))
}

func kindMethod(kind workload.Kind) string {
	switch kind {
	case workload.Read:
		return "Read"
	case workload.Update:
		return "Update"
	default:
		return "Delete"
	}
}
