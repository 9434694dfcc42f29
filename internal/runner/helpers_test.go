package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/config"
	"pseudobench/internal/connector"
	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

type mockConnector struct {
	mock.Mock
}

func (m *mockConnector) Prepare(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockConnector) Create(ctx context.Context) (connector.RecordRef, error) {
	args := m.Called(ctx)
	return args.Get(0).(connector.RecordRef), args.Error(1)
}

func (m *mockConnector) Read(ctx context.Context, ref connector.RecordRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockConnector) Update(ctx context.Context, ref connector.RecordRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockConnector) Delete(ctx context.Context, ref connector.RecordRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockConnector) Ping(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// blockingConnector never returns from Create until release is closed, ignoring ctx.
type blockingConnector struct {
	connector.Connector
	release <-chan struct{}
}

func (c *blockingConnector) Create(context.Context) (connector.RecordRef, error) {
	<-c.release
	return connector.RecordRef{IDType: "ID", IDString: "late"}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu      sync.Mutex
	rows    []stats.Row
	storage []stats.StorageSample
	closed  bool
}

func (s *recordingSink) Append(row stats.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *recordingSink) AppendStorage(sample stats.StorageSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage = append(s.storage, sample)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func scenario(t *testing.T, rates workload.Rates, threads int, maxTime time.Duration, initial int) config.Configuration {
	t.Helper()
	cfg, err := config.NewBuilder().
		Name(t.Name()).
		DomainName("bench").
		Rates(rates).
		NumThreads(threads).
		MaxTime(maxTime).
		InitialDBSize(initial).
		ReportingInterval(100 * time.Millisecond).
		ReportingIntervalDBSpace(200 * time.Millisecond).
		Build()
	require.NoError(t, err)
	return cfg
}

func refs(n int) []connector.RecordRef {
	out := make([]connector.RecordRef, n)
	for i := range out {
		out[i] = connector.RecordRef{IDType: "ID", IDString: string(rune('a' + i))}
	}
	return out
}
