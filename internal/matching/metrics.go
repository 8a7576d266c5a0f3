package matching

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"
)

// Metrics is the Prometheus surface for one worker lane's engine:
// hot-path counters plus per-symbol depth gauges, and a bounded rolling
// window of batch latencies for percentile reporting.
type Metrics struct {
	OrdersProcessed prometheus.Counter
	TradesExecuted  prometheus.Counter
	QueueDrops      prometheus.Counter
	OutputOverflows prometheus.Counter
	PoolExhaustions prometheus.Counter
	BookDepth       *prometheus.GaugeVec

	mu      sync.Mutex
	samples []float64 // recent batch-processing latencies, in microseconds
}

// NewMetrics constructs and registers a Metrics set against reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		OrdersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_processed_total",
			Help: "Total NewOrder messages processed.",
		}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_executed_total",
			Help: "Total trades matched.",
		}),
		QueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_drops_total",
			Help: "Total envelopes dropped due to a full output queue.",
		}),
		OutputOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "output_overflow_total",
			Help: "Total output messages dropped due to a full per-operation output buffer.",
		}),
		PoolExhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pool_exhaustion_total",
			Help: "Total order-pool allocation failures.",
		}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "book_depth",
			Help: "Current number of distinct price levels, by symbol and side.",
		}, []string{"symbol", "side"}),
	}

	if reg != nil {
		reg.MustRegister(m.OrdersProcessed, m.TradesExecuted, m.QueueDrops, m.OutputOverflows, m.PoolExhaustions, m.BookDepth)
	}
	return m
}

// ObserveBatchLatency records one worker-loop batch's processing latency
// in microseconds, keeping a bounded rolling window for percentile
// computation.
func (m *Metrics) ObserveBatchLatency(microseconds float64) {
	const window = 4096
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, microseconds)
	if len(m.samples) > window {
		m.samples = m.samples[len(m.samples)-window:]
	}
}

// LatencyPercentiles returns the p50/p99 of the current rolling window of
// batch latencies, computed with gonum/stat rather than a hand-rolled
// running min/max/avg.
func (m *Metrics) LatencyPercentiles() (p50, p99 float64) {
	m.mu.Lock()
	sorted := append([]float64(nil), m.samples...)
	m.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0
	}
	quickSort(sorted)
	return stat.Quantile(0.50, stat.Empirical, sorted, nil),
		stat.Quantile(0.99, stat.Empirical, sorted, nil)
}

// quickSort is a small in-place quicksort sized for the bounded
// rolling window above; stat.Quantile requires its input sorted ascending
// and gonum does not sort for the caller.
func quickSort(a []float64) {
	if len(a) < 2 {
		return
	}
	pivot := a[len(a)/2]
	lo, hi := 0, len(a)-1
	for lo <= hi {
		for a[lo] < pivot {
			lo++
		}
		for a[hi] > pivot {
			hi--
		}
		if lo <= hi {
			a[lo], a[hi] = a[hi], a[lo]
			lo++
			hi--
		}
	}
	if hi > 0 {
		quickSort(a[:hi+1])
	}
	if lo < len(a) {
		quickSort(a[lo:])
	}
}
