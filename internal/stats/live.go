package stats

import (
	"sync/atomic"
)

// Snapshot is a cheap copy of the live counters, sent to progress displays.
type Snapshot struct {
	Issued    uint64
	Completed uint64
	Responses uint64
	Success   uint64
	Failures  uint64
	Bytes     uint64
	Inflight  int64

	P50Ms  float64
	P90Ms  float64
	P99Ms  float64
	MaxMs  float64
	MeanMs float64

	Done bool
}

// Live holds the counters a run updates while it is in progress.
type Live struct {
	issued    uint64
	completed uint64
	responses uint64
	success   uint64
	failures  uint64
	bytes     uint64
	inflight  int64

	Latency *SafeHistogram
}

func NewLive() *Live {
	return &Live{Latency: NewSafeHistogram()}
}

// Begin marks one unit as issued and in flight.
func (l *Live) Begin() {
	atomic.AddUint64(&l.issued, 1)
	atomic.AddInt64(&l.inflight, 1)
}

// End records a finished unit.
func (l *Live) End(o Outcome) {
	atomic.AddInt64(&l.inflight, -1)
	atomic.AddUint64(&l.completed, 1)

	if o.IsFailure() {
		atomic.AddUint64(&l.failures, 1)
		return
	}

	atomic.AddUint64(&l.responses, 1)
	if ClassifyStatus(o.StatusCode) == ClassSuccess {
		atomic.AddUint64(&l.success, 1)
	}
	if o.Bytes > 0 {
		atomic.AddUint64(&l.bytes, uint64(o.Bytes))
	}
	l.Latency.Record(o.Latency)
}

func (l *Live) Inflight() int64 {
	return atomic.LoadInt64(&l.inflight)
}

func (l *Live) Snapshot() Snapshot {
	return Snapshot{
		Issued:    atomic.LoadUint64(&l.issued),
		Completed: atomic.LoadUint64(&l.completed),
		Responses: atomic.LoadUint64(&l.responses),
		Success:   atomic.LoadUint64(&l.success),
		Failures:  atomic.LoadUint64(&l.failures),
		Bytes:     atomic.LoadUint64(&l.bytes),
		Inflight:  atomic.LoadInt64(&l.inflight),
		P50Ms:     l.Latency.QuantileMs(50),
		P90Ms:     l.Latency.QuantileMs(90),
		P99Ms:     l.Latency.QuantileMs(99),
		MaxMs:     l.Latency.MaxMs(),
		MeanMs:    l.Latency.MeanMs(),
	}
}
