package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 10min, 3 significant figures
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// Record adds one latency sample. Values beyond the trackable range are clamped to it.
func (h *SafeHistogram) Record(d time.Duration) {
	us := d.Microseconds()
	h.mu.Lock()
	defer h.mu.Unlock()
	if us > h.hist.HighestTrackableValue() {
		us = h.hist.HighestTrackableValue()
	}
	if us < 0 {
		us = 0
	}
	_ = h.hist.RecordValue(us)
}

// LatencySummary is a point-in-time digest of a histogram.
type LatencySummary struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
}

func (h *SafeHistogram) Summary() LatencySummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return LatencySummary{
		Count: h.hist.TotalCount(),
		Mean:  time.Duration(h.hist.Mean() * float64(time.Microsecond)),
		P50:   micros(h.hist.ValueAtQuantile(50)),
		P90:   micros(h.hist.ValueAtQuantile(90)),
		P99:   micros(h.hist.ValueAtQuantile(99)),
		Max:   micros(h.hist.Max()),
	}
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
