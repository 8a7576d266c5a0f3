package matching

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	idleSleepFast = time.Microsecond
	idleSleepSlow = 100 * time.Microsecond
)

// WorkerConfig is the tunable surface of one worker loop. Zero values
// fall back to the package's compiled defaults, so tests can pass an
// empty config.
type WorkerConfig struct {
	BatchSize     int
	IdleThreshold int
}

// Worker is a single matching-pipeline stage: one engine, one input
// queue, one output queue, one monotonic sequence counter, spinning on
// its own input queue and backing off when idle. Exactly one worker
// processes a given symbol's partition for the worker's lifetime, so the
// engine and its books never need locking.
type Worker struct {
	Lane   int
	engine *Engine
	in     *InputQueue
	out    *OutputQueue

	batchSize     int
	idleThreshold int

	seq uint64 // monotonic per-worker sequence stamped on every output envelope

	shutdown *int32 // shared atomic flag; 0 = running, nonzero = stop

	idleCount int

	// origin is the client that sent the input currently being processed,
	// so mid-flush drains route their cancel acks to the same client as
	// the final batch.
	origin uint32

	metrics           *Metrics
	lastAllocFailures uint64

	log *zap.Logger
}

// NewWorker builds a worker around an already-constructed engine and its
// two queues. shutdown is shared across every worker and the ingress/
// egress stages.
func NewWorker(lane int, engine *Engine, in *InputQueue, out *OutputQueue, shutdown *int32, cfg WorkerConfig, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = BatchSize
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = IdleThreshold
	}
	w := &Worker{
		Lane: lane, engine: engine, in: in, out: out,
		batchSize: cfg.BatchSize, idleThreshold: cfg.IdleThreshold,
		shutdown: shutdown, log: log,
	}
	engine.FlushDrain = func(buf *OutputBuffer) {
		w.routeOutputs(buf, w.origin)
	}
	return w
}

// SetMetrics attaches the lane's Prometheus counters. Safe to leave unset
// in tests; all observations are nil-guarded.
func (w *Worker) SetMetrics(m *Metrics) { w.metrics = m }

func (w *Worker) nextSeq() uint64 {
	return atomic.AddUint64(&w.seq, 1)
}

// Run is the worker's cooperative loop. It never blocks:
// an empty batch triggers a short sleep that escalates after the
// configured number of consecutive empty polls, and the loop exits once
// the shared shutdown flag is observed set.
func (w *Worker) Run() {
	batch := make([]InputEnvelope, w.batchSize)
	outBuf := NewOutputBuffer(MaxOutputMessages)
	outBuf.SetLogger(w.log)

	for atomic.LoadInt32(w.shutdown) == 0 {
		n := w.in.DequeueBatch(batch)
		if n == 0 {
			if w.idleCount == 0 && w.metrics != nil {
				w.publishBookStats()
			}
			w.backoff()
			continue
		}
		w.idleCount = 0

		start := time.Now()
		for i := 0; i < n; i++ {
			w.processOne(batch[i], outBuf)
		}
		if w.metrics != nil {
			w.metrics.ObserveBatchLatency(float64(time.Since(start).Nanoseconds()) / 1e3)
		}
	}
}

func (w *Worker) processOne(env InputEnvelope, outBuf *OutputBuffer) {
	outBuf.Reset()
	droppedBefore := outBuf.Dropped()
	w.origin = env.ClientID
	w.engine.Process(env.Payload, env.ClientID, outBuf)
	w.routeOutputs(outBuf, env.ClientID)

	if w.metrics != nil {
		if env.Payload.Kind == NewOrderInput {
			w.metrics.OrdersProcessed.Inc()
		}
		if overflowed := outBuf.Dropped() - droppedBefore; overflowed > 0 {
			w.metrics.OutputOverflows.Add(float64(overflowed))
		}
	}
}

// routeOutputs turns each raw book/engine output into one-or-two
// envelopes, each stamped with this worker's next sequence number, and
// pushes them to the output queue. A full output queue drops the
// envelope; the drop is counted inside OutputQueue, not retried.
func (w *Worker) routeOutputs(outBuf *OutputBuffer, originClientID uint32) {
	for _, msg := range outBuf.Messages() {
		if w.metrics != nil && msg.Kind == TradeMsg {
			w.metrics.TradesExecuted.Inc()
		}
		for _, env := range route(msg, originClientID, w.nextSeq) {
			if !w.out.Enqueue(env) {
				w.log.Warn("output queue full, dropping envelope",
					zap.Uint32("client_id", env.ClientID), zap.Uint64("seq", env.Seq))
				if w.metrics != nil {
					w.metrics.QueueDrops.Inc()
				}
			}
		}
	}
}

// publishBookStats refreshes the per-symbol depth gauges and the pool
// exhaustion counter. Called only on the transition into idleness, so the
// walk over every book never lands on the hot path.
func (w *Worker) publishBookStats() {
	w.engine.ForEachBook(func(b *Book) {
		sym := string(b.Symbol())
		w.metrics.BookDepth.WithLabelValues(sym, Buy.String()).Set(float64(b.Depth(Buy)))
		w.metrics.BookDepth.WithLabelValues(sym, Sell.String()).Set(float64(b.Depth(Sell)))
	})
	if failures := w.engine.PoolStats().AllocFailures; failures > w.lastAllocFailures {
		w.metrics.PoolExhaustions.Add(float64(failures - w.lastAllocFailures))
		w.lastAllocFailures = failures
	}
}

func (w *Worker) backoff() {
	w.idleCount++
	if w.idleCount > w.idleThreshold {
		time.Sleep(idleSleepSlow)
		return
	}
	time.Sleep(idleSleepFast)
}
