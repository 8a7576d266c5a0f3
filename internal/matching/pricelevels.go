package matching

import cerrors "github.com/tembolo1284/matching-engine-c-sub001/internal/common/errors"

// priceLevel is one price point on one side of a book: an intrusive FIFO
// of order slots plus the running sum of their remaining quantity.
type priceLevel struct {
	price    Price
	head     int32 // slot index, nullSlot if empty
	tail     int32
	totalQty Quantity
}

func (l *priceLevel) empty() bool { return l.head == nullSlot }

// priceLevelTable is a per-side array of price levels kept in total
// order: descending for bids, ascending for asks. find() is a binary
// search; findOrCreate()/removeAt() shift the tail to keep the array dense.
type priceLevelTable struct {
	levels []priceLevel
	desc   bool // true for bids (best = lowest index = highest price)
}

func newPriceLevelTable(capacity int, desc bool) *priceLevelTable {
	return &priceLevelTable{levels: make([]priceLevel, 0, capacity), desc: desc}
}

func (t *priceLevelTable) len() int { return len(t.levels) }

// less reports whether price a sorts strictly before price b in this
// table's order (i.e. a belongs at a lower index than b).
func (t *priceLevelTable) less(a, b Price) bool {
	if t.desc {
		return a > b
	}
	return a < b
}

// find performs a binary search for price, returning (index, true) if
// present, or (insertion point, false) otherwise.
func (t *priceLevelTable) find(price Price) (int, bool) {
	lo, hi := 0, len(t.levels)
	for lo < hi {
		mid := (lo + hi) / 2
		p := t.levels[mid].price
		if p == price {
			return mid, true
		}
		if t.less(p, price) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

// findOrCreate locates price's level, inserting a fresh empty one in
// sorted position if absent. Returns an out-of-capacity error if the
// table is already at its configured level limit and price is not
// already present.
func (t *priceLevelTable) findOrCreate(price Price) (*priceLevel, error) {
	idx, ok := t.find(price)
	if ok {
		return &t.levels[idx], nil
	}
	if len(t.levels) == cap(t.levels) {
		return nil, cerrors.New(cerrors.CodeOutOfCapacity, "priceLevelTable.findOrCreate").
			WithDetail("l_max", cap(t.levels))
	}
	t.levels = append(t.levels, priceLevel{})
	copy(t.levels[idx+1:], t.levels[idx:len(t.levels)-1])
	t.levels[idx] = priceLevel{price: price, head: nullSlot, tail: nullSlot}
	return &t.levels[idx], nil
}

// removeAt deletes the level at idx, shifting the tail of the array down
// by one. Called only once a level's FIFO has emptied.
func (t *priceLevelTable) removeAt(idx int) {
	copy(t.levels[idx:], t.levels[idx+1:])
	t.levels = t.levels[:len(t.levels)-1]
}

// best returns a pointer to the top-of-book level, or nil if the side is
// empty.
func (t *priceLevelTable) best() *priceLevel {
	if len(t.levels) == 0 {
		return nil
	}
	return &t.levels[0]
}

// appendOrder links slot onto the tail of level's FIFO and bumps
// total_qty. pool provides access to the Order records for link updates.
func appendOrder(pool *OrderPool, level *priceLevel, slot int32) {
	o := pool.Get(slot)
	o.prev = level.tail
	o.next = nullSlot
	if level.tail != nullSlot {
		pool.Get(level.tail).next = slot
	} else {
		level.head = slot
	}
	level.tail = slot
	level.totalQty += o.RemainingQty
	o.levelPrice = level.price
	o.inBook = true
}

// unlinkPointers splices slot out of level's FIFO without touching
// total_qty — used mid-match, where the caller has already subtracted
// the filled quantity incrementally as it walked the level.
func unlinkPointers(pool *OrderPool, level *priceLevel, slot int32) {
	o := pool.Get(slot)
	if o.prev != nullSlot {
		pool.Get(o.prev).next = o.next
	} else {
		level.head = o.next
	}
	if o.next != nullSlot {
		pool.Get(o.next).prev = o.prev
	} else {
		level.tail = o.prev
	}
	o.prev, o.next = nullSlot, nullSlot
	o.inBook = false
}

// unlinkOrder splices slot out of level's FIFO and subtracts its full
// remaining quantity from total_qty in one step — used for cancel, where
// the quantity hasn't already been accounted for elsewhere.
func unlinkOrder(pool *OrderPool, level *priceLevel, slot int32) {
	level.totalQty -= pool.Get(slot).RemainingQty
	unlinkPointers(pool, level, slot)
}
