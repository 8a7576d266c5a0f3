package matching

import "sync/atomic"

const cacheLinePad = 64

// paddedUint64 pads a single atomic counter out to its own cache line so
// the producer's tail and the consumer's head never false-share.
type paddedUint64 struct {
	v    uint64
	_pad [cacheLinePad - 8]byte
}

// InputQueue is a fixed-capacity, lock-free SPSC ring buffer of
// InputEnvelope values. Capacity must be a power of two; one slot is
// always left empty so a full queue is distinguishable from an empty one
// without a separate counter.
type InputQueue struct {
	buf  []InputEnvelope
	mask uint64

	head paddedUint64 // consumer-owned
	tail paddedUint64 // producer-owned

	droppedEnqueue uint64
}

// NewInputQueue allocates a queue of the given power-of-two capacity.
func NewInputQueue(capacity int) *InputQueue {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("matching: NewInputQueue: capacity must be a power of two")
	}
	return &InputQueue{
		buf:  make([]InputEnvelope, capacity),
		mask: uint64(capacity) - 1,
	}
}

func (q *InputQueue) Capacity() int { return len(q.buf) }

// Enqueue is called only by the single producer thread. Returns false
// (and bumps a drop counter) if the queue is full.
func (q *InputQueue) Enqueue(item InputEnvelope) bool {
	tail := atomic.LoadUint64(&q.tail.v)
	head := atomic.LoadUint64(&q.head.v) // acquire: see consumer's latest progress
	if tail-head >= uint64(len(q.buf)-1) {
		atomic.AddUint64(&q.droppedEnqueue, 1)
		return false
	}
	q.buf[tail&q.mask] = item
	atomic.StoreUint64(&q.tail.v, tail+1) // release: publish the new element
	return true
}

// Dequeue is called only by the single consumer thread. Returns false if
// the queue is empty.
func (q *InputQueue) Dequeue() (InputEnvelope, bool) {
	head := atomic.LoadUint64(&q.head.v)
	tail := atomic.LoadUint64(&q.tail.v) // acquire: see producer's latest publish
	if head == tail {
		return InputEnvelope{}, false
	}
	item := q.buf[head&q.mask]
	atomic.StoreUint64(&q.head.v, head+1) // release
	return item, true
}

// DequeueBatch drains up to len(dst) items FIFO, returning the count
// filled. Batch dequeue is the worker's one concession to throughput;
// enqueue stays strictly one envelope at a time.
func (q *InputQueue) DequeueBatch(dst []InputEnvelope) int {
	n := 0
	for n < len(dst) {
		item, ok := q.Dequeue()
		if !ok {
			break
		}
		dst[n] = item
		n++
	}
	return n
}

// Size returns an approximate current occupancy — exact only under a
// single-threaded snapshot.
func (q *InputQueue) Size() int {
	tail := atomic.LoadUint64(&q.tail.v)
	head := atomic.LoadUint64(&q.head.v)
	return int((tail - head) & q.mask)
}

func (q *InputQueue) Empty() bool {
	return atomic.LoadUint64(&q.head.v) == atomic.LoadUint64(&q.tail.v)
}

func (q *InputQueue) DroppedEnqueue() uint64 { return atomic.LoadUint64(&q.droppedEnqueue) }

// OutputQueue is the output-side counterpart, carrying OutputEnvelope
// values from a worker to the egress stage. Same SPSC ring discipline as
// InputQueue; kept as a distinct type rather than a generic so each
// queue's element type is concrete at its call sites.
type OutputQueue struct {
	buf  []OutputEnvelope
	mask uint64

	head paddedUint64
	tail paddedUint64

	droppedEnqueue uint64
}

func NewOutputQueue(capacity int) *OutputQueue {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("matching: NewOutputQueue: capacity must be a power of two")
	}
	return &OutputQueue{
		buf:  make([]OutputEnvelope, capacity),
		mask: uint64(capacity) - 1,
	}
}

func (q *OutputQueue) Capacity() int { return len(q.buf) }

func (q *OutputQueue) Enqueue(item OutputEnvelope) bool {
	tail := atomic.LoadUint64(&q.tail.v)
	head := atomic.LoadUint64(&q.head.v)
	if tail-head >= uint64(len(q.buf)-1) {
		atomic.AddUint64(&q.droppedEnqueue, 1)
		return false
	}
	q.buf[tail&q.mask] = item
	atomic.StoreUint64(&q.tail.v, tail+1)
	return true
}

func (q *OutputQueue) Dequeue() (OutputEnvelope, bool) {
	head := atomic.LoadUint64(&q.head.v)
	tail := atomic.LoadUint64(&q.tail.v)
	if head == tail {
		return OutputEnvelope{}, false
	}
	item := q.buf[head&q.mask]
	atomic.StoreUint64(&q.head.v, head+1)
	return item, true
}

func (q *OutputQueue) Size() int {
	tail := atomic.LoadUint64(&q.tail.v)
	head := atomic.LoadUint64(&q.head.v)
	return int((tail - head) & q.mask)
}

func (q *OutputQueue) Empty() bool {
	return atomic.LoadUint64(&q.head.v) == atomic.LoadUint64(&q.tail.v)
}

func (q *OutputQueue) DroppedEnqueue() uint64 { return atomic.LoadUint64(&q.droppedEnqueue) }
