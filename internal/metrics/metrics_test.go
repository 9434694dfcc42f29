package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

func TestExporter_CountsOperations(t *testing.T) {
	e := NewExporter()
	e.Operation(workload.Create, 3*time.Millisecond)
	e.Operation(workload.Create, 4*time.Millisecond)
	e.Operation(workload.Ping, time.Millisecond)
	e.Ignored()

	assert.Equal(t, 2.0, testutil.ToFloat64(e.operations.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.operations.WithLabelValues("ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.ignored))
}

func TestExporter_StatisticsObserver(t *testing.T) {
	e := NewExporter()
	s := stats.New(stats.WithObserver(e))
	s.Start()
	s.Observe(workload.Read, time.Millisecond)
	s.AddIgnored()

	assert.Equal(t, 1.0, testutil.ToFloat64(e.operations.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.ignored))
}

func TestExporter_RowGauges(t *testing.T) {
	e := NewExporter()
	e.Row("mixed-2-threads", stats.Row{Counts: [workload.NumKinds]uint64{5, 7, 0, 0, 1}, IntervalTPS: 12.5})

	assert.Equal(t, 12.5, testutil.ToFloat64(e.tps.WithLabelValues("mixed-2-threads")))
	assert.Equal(t, 7.0, testutil.ToFloat64(e.total.WithLabelValues("mixed-2-threads", "read")))
}

func TestExporter_Handler(t *testing.T) {
	e := NewExporter()
	e.Operation(workload.Update, 2*time.Millisecond)
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pseudobench_operations_total{kind="update"} 1`)
	assert.Contains(t, string(body), "pseudobench_operation_latency_seconds_bucket")
}
