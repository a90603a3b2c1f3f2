// Package metrics maintains the bounded ring of recent RTT samples plus the
// monotonic probe counters, and rolls them up into min/max/mean/percentile/
// jitter statistics on demand.
//
// In addition to the in-process ring used for Stats(), package-level
// Prometheus collectors mirror the same counters for live export, declared
// with promauto.New*(prometheus.*Opts{Namespace: ...}). These collectors are
// process-wide, matching the one-node-per-process daemon this package is
// built for; a program embedding more than one Metrics instance would see
// their counts merged into a single series.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Prometheus Collectors ──────────────────────────────────────────────────

var (
	pingsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swim",
		Subsystem: "probe",
		Name:      "pings_sent_total",
		Help:      "Total direct pings sent by this node.",
	})

	acksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swim",
		Subsystem: "probe",
		Name:      "acks_received_total",
		Help:      "Total acks received carrying an RTT sample.",
	})

	timeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "swim",
		Subsystem: "probe",
		Name:      "timeouts_total",
		Help:      "Total probes that timed out after both direct and indirect attempts.",
	})

	rttSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "swim",
		Subsystem: "probe",
		Name:      "rtt_seconds",
		Help:      "Round-trip time between a ping and its matching ack.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

// ─── Ring + Counters ─────────────────────────────────────────────────────────

// Metrics tracks monotonic counters and a bounded ring of recent RTT
// samples. A mutex guards it solely to let the optional HTTP status server
// read a consistent snapshot from a goroutine other than the event loop —
// the event loop itself never contends on it.
type Metrics struct {
	mu       sync.Mutex
	samples  []time.Duration
	capacity int

	pingsSent    uint64
	acksReceived uint64
	timeouts     uint64
}

// New creates a Metrics with the given ring capacity (spec default: 1000).
func New(capacity int) *Metrics {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Metrics{capacity: capacity, samples: make([]time.Duration, 0, capacity)}
}

// RecordPingSent increments the direct-ping counter.
func (m *Metrics) RecordPingSent() {
	m.mu.Lock()
	m.pingsSent++
	m.mu.Unlock()
	pingsSentTotal.Inc()
}

// RecordRTT appends an RTT sample, evicting the oldest if the ring is full,
// and increments acks_received.
func (m *Metrics) RecordRTT(d time.Duration) {
	m.mu.Lock()
	if len(m.samples) >= m.capacity {
		m.samples = m.samples[1:]
	}
	m.samples = append(m.samples, d)
	m.acksReceived++
	m.mu.Unlock()

	acksReceivedTotal.Inc()
	rttSeconds.Observe(d.Seconds())
}

// RecordTimeout increments the timeout counter.
func (m *Metrics) RecordTimeout() {
	m.mu.Lock()
	m.timeouts++
	m.mu.Unlock()
	timeoutsTotal.Inc()
}

// Counters is a snapshot of the three monotonic counters.
type Counters struct {
	PingsSent    uint64
	AcksReceived uint64
	Timeouts     uint64
}

// Counts returns the current counters.
func (m *Metrics) Counts() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counters{PingsSent: m.pingsSent, AcksReceived: m.acksReceived, Timeouts: m.timeouts}
}

// Stats is the rollup over the current ring.
type Stats struct {
	Min, Max, Mean, P50, P95, P99, Jitter time.Duration
	SampleCount                           int
}

// Stats computes min/max/mean/p50/p95/p99/jitter/count over a sorted
// snapshot of the current ring. Percentiles use index floor(n*q) clamped to
// n-1. Jitter is the population standard deviation. Returns ok=false when
// the ring is empty ("no data").
func (m *Metrics) Stats() (Stats, bool) {
	m.mu.Lock()
	n := len(m.samples)
	if n == 0 {
		m.mu.Unlock()
		return Stats{}, false
	}
	sorted := make([]time.Duration, n)
	copy(sorted, m.samples)
	m.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	mean := sum / time.Duration(n)

	percentile := func(q float64) time.Duration {
		idx := int(math.Floor(float64(n) * q))
		if idx >= n {
			idx = n - 1
		}
		return sorted[idx]
	}

	var variance float64
	meanNanos := float64(mean.Nanoseconds())
	for _, d := range sorted {
		diff := float64(d.Nanoseconds()) - meanNanos
		variance += diff * diff
	}
	variance /= float64(n)
	jitter := time.Duration(math.Sqrt(variance))

	return Stats{
		Min:          sorted[0],
		Max:          sorted[n-1],
		Mean:         mean,
		P50:          percentile(0.50),
		P95:          percentile(0.95),
		P99:          percentile(0.99),
		Jitter:       jitter,
		SampleCount:  n,
	}, true
}
