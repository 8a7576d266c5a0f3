package matching

import (
	"sync/atomic"

	cerrors "github.com/tembolo1284/matching-engine-c-sub001/internal/common/errors"
)

// OrderPool is a fixed-capacity slab of Order records with index-based
// alloc/free: a deterministic free-list stack rather than a GC-backed
// sync.Pool, because the matching book needs a *stable* slot index it can
// store in its intrusive FIFO links and in the order index, which a
// sync.Pool cannot promise across Get/Put cycles.
//
// A single OrderPool is owned by exactly one worker thread; there is no
// internal locking.
type OrderPool struct {
	slots    []Order
	free     []int32 // stack of free slot indices
	freeTop  int32   // index of the next free slot in `free`; -1 when empty

	totalAllocations uint64
	peakUsage        uint64
	allocFailures    uint64
}

// NewOrderPool allocates a pool of the given fixed capacity. Capacity never
// grows after construction.
func NewOrderPool(capacity int) *OrderPool {
	p := &OrderPool{
		slots: make([]Order, capacity),
		free:  make([]int32, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.free[i] = int32(i)
	}
	p.freeTop = int32(capacity) - 1
	return p
}

// Cap returns the pool's fixed capacity.
func (p *OrderPool) Cap() int { return len(p.slots) }

// Alloc pops a free slot, zeroes it, and returns its index. Returns an
// out-of-capacity error when the pool is exhausted — a capacity-planning
// failure, not a transient condition.
func (p *OrderPool) Alloc() (int32, error) {
	if p.freeTop < 0 {
		atomic.AddUint64(&p.allocFailures, 1)
		return nullSlot, cerrors.New(cerrors.CodeOutOfCapacity, "OrderPool.Alloc").
			WithDetail("capacity", len(p.slots))
	}

	slot := p.free[p.freeTop]
	p.freeTop--

	p.slots[slot] = Order{}

	atomic.AddUint64(&p.totalAllocations, 1)
	inUse := uint64(len(p.slots)) - uint64(p.freeTop+1)
	if inUse > atomic.LoadUint64(&p.peakUsage) {
		atomic.StoreUint64(&p.peakUsage, inUse)
	}

	return slot, nil
}

// Free pushes a slot back onto the free stack. The caller must guarantee
// the slot was allocated and not already freed. Free panics on an
// out-of-range slot and when the free stack is already full (so a double
// free is caught once every other slot has been returned); a double free
// while other slots are still allocated is not detected and leaves the
// slot on the free stack twice.
func (p *OrderPool) Free(slot int32) {
	if slot < 0 || int(slot) >= len(p.slots) {
		panic("matching: OrderPool.Free: slot out of range")
	}
	if p.freeTop+1 >= int32(len(p.free)) {
		panic("matching: OrderPool.Free: free-list overflow (double free?)")
	}
	p.freeTop++
	p.free[p.freeTop] = slot
}

// Get returns a pointer to the order stored at slot.
func (p *OrderPool) Get(slot int32) *Order {
	return &p.slots[slot]
}

// Stats is a point-in-time snapshot of pool utilization, surfaced through
// Prometheus in metrics.go.
type PoolStats struct {
	Capacity         int
	FreeCount        int
	TotalAllocations uint64
	PeakUsage        uint64
	AllocFailures    uint64
}

func (p *OrderPool) Stats() PoolStats {
	return PoolStats{
		Capacity:         len(p.slots),
		FreeCount:        int(p.freeTop) + 1,
		TotalAllocations: atomic.LoadUint64(&p.totalAllocations),
		PeakUsage:        atomic.LoadUint64(&p.peakUsage),
		AllocFailures:    atomic.LoadUint64(&p.allocFailures),
	}
}
