package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"pseudobench/internal/workload"
)

// Row is one line of the periodic report. Counts are cumulative since Start.
type Row struct {
	Timestamp   time.Time
	Elapsed     time.Duration
	Counts      [workload.NumKinds]uint64
	IntervalTPS float64
}

func (r Row) Total() uint64 {
	var t uint64
	for _, c := range r.Counts {
		t += c
	}
	return t
}

// Sink receives report rows.
type Sink interface {
	Append(Row) error
}

// StorageSample is one reading of a backend's storage consumption.
type StorageSample struct {
	Timestamp time.Time
	Elapsed   time.Duration
	Table     string
	Usage     string
}

// Observer is notified of every recorded operation. The metrics exporter implements it.
type Observer interface {
	Operation(kind workload.Kind, latency time.Duration)
	Ignored()
}

// Statistics holds real-time aggregated counters for one scenario. Increments are lock free;
// Report and LastOverallTPS share a mutex that never blocks increments.
type Statistics struct {
	counts  [workload.NumKinds]atomic.Uint64
	ignored atomic.Uint64
	latency [workload.NumKinds]*SafeHistogram

	// unix nanoseconds, zero until Start
	started atomic.Int64
	last    atomic.Int64

	mu        sync.Mutex
	lastTotal uint64
	lastTPS   float64

	observer Observer
	now      func() time.Time
}

type Option func(*Statistics)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Statistics) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Statistics) { s.observer = o }
}

func New(opts ...Option) *Statistics {
	s := &Statistics{now: time.Now}
	for i := range s.latency {
		s.latency[i] = NewSafeHistogram()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start records the scenario start time. Only the first call has an effect.
func (s *Statistics) Start() {
	now := s.now().UnixNano()
	if s.started.CompareAndSwap(0, now) {
		s.last.Store(now)
	}
}

func (s *Statistics) StartTime() time.Time { return fromNanos(s.started.Load()) }

// LastTime is the time of the last Report, or the start time before the first one.
func (s *Statistics) LastTime() time.Time { return fromNanos(s.last.Load()) }

// Elapsed is the time since Start, zero before it.
func (s *Statistics) Elapsed() time.Duration {
	start := s.started.Load()
	if start == 0 {
		return 0
	}
	return s.now().Sub(time.Unix(0, start))
}

func (s *Statistics) Add(kind workload.Kind) {
	s.counts[kind].Add(1)
}

func (s *Statistics) AddCreate() { s.Add(workload.Create) }
func (s *Statistics) AddRead()   { s.Add(workload.Read) }
func (s *Statistics) AddUpdate() { s.Add(workload.Update) }
func (s *Statistics) AddDelete() { s.Add(workload.Delete) }
func (s *Statistics) AddPing()   { s.Add(workload.Ping) }

// AddIgnored counts a failure swallowed because it raced the scenario deadline.
func (s *Statistics) AddIgnored() {
	s.ignored.Add(1)
	if s.observer != nil {
		s.observer.Ignored()
	}
}

// Observe records the latency of one completed backend call.
func (s *Statistics) Observe(kind workload.Kind, latency time.Duration) {
	s.latency[kind].Record(latency)
	if s.observer != nil {
		s.observer.Operation(kind, latency)
	}
}

func (s *Statistics) Count(kind workload.Kind) uint64 {
	return s.counts[kind].Load()
}

func (s *Statistics) Counts() [workload.NumKinds]uint64 {
	var out [workload.NumKinds]uint64
	for i := range s.counts {
		out[i] = s.counts[i].Load()
	}
	return out
}

// Report appends one row to sink and moves LastTime forward. Operations racing the read may
// land in the next row.
func (s *Statistics) Report(sink Sink) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	row := Row{Timestamp: now, Counts: s.Counts()}
	if start := s.started.Load(); start != 0 {
		row.Elapsed = now.Sub(time.Unix(0, start))
	}
	total := row.Total()
	if last := s.last.Load(); last != 0 {
		if interval := now.Sub(time.Unix(0, last)); interval > 0 {
			row.IntervalTPS = float64(total-s.lastTotal) / interval.Seconds()
		}
	}

	s.lastTotal = total
	s.lastTPS = row.IntervalTPS
	s.last.Store(now.UnixNano())

	if sink != nil {
		if err := sink.Append(row); err != nil {
			return row, errors.Wrap(err, "appending report row")
		}
	}
	return row, nil
}

// LastOverallTPS is the throughput measured by the most recent Report.
func (s *Statistics) LastOverallTPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTPS
}

// Snapshot is a point-in-time copy of the statistics.
type Snapshot struct {
	Counts    [workload.NumKinds]uint64
	Ignored   uint64
	StartTime time.Time
	LastTime  time.Time
	Elapsed   time.Duration
	LastTPS   float64
	Latency   [workload.NumKinds]LatencySummary
}

func (s Snapshot) Total() uint64 {
	return Row{Counts: s.Counts}.Total()
}

// OverallTPS is the average throughput since start.
func (s Snapshot) OverallTPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total()) / s.Elapsed.Seconds()
}

func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		Counts:    s.Counts(),
		Ignored:   s.ignored.Load(),
		StartTime: s.StartTime(),
		LastTime:  s.LastTime(),
		Elapsed:   s.Elapsed(),
		LastTPS:   s.LastOverallTPS(),
	}
	for i, h := range s.latency {
		snap.Latency[i] = h.Summary()
	}
	return snap
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
