package matching

import (
	"fmt"

	"go.uber.org/zap"
)

// Book is a single symbol's order book: a price-level table per side, an
// order index for key lookup, and the sticky top-of-book state. The
// order pool is shared across every book owned by an engine, out of a
// single fixed-capacity array of books; the index and price levels are
// each book's own.
//
// A Book has no internal locking: it is owned by exactly one worker
// thread for its entire lifetime.
type Book struct {
	symbol Symbol
	pool   *OrderPool
	index  *OrderIndex
	bids   *priceLevelTable
	asks   *priceLevelTable
	clock  monotonicClock
	log    *zap.Logger

	prevBidPrice Price
	prevBidQty   Quantity
	bidEverActive bool
	prevAskPrice Price
	prevAskQty   Quantity
	askEverActive bool

	flushing bool
	flushSide int // 0 = draining bids, 1 = draining asks, 2 = pending final TOB
}

// NewBook constructs an empty book over a shared order pool, with its own
// order index and price-level tables sized to lMax levels per side.
func NewBook(symbol Symbol, pool *OrderPool, indexCapacity, lMax int, log *zap.Logger) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{
		symbol: symbol,
		pool:   pool,
		index:  NewOrderIndex(indexCapacity),
		bids:   newPriceLevelTable(lMax, true),
		asks:   newPriceLevelTable(lMax, false),
		log:    log,
	}
}

func (b *Book) sideTables(side Side) (own, opposite *priceLevelTable) {
	if side == Buy {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// crosses reports whether a resting order at restingPrice can be matched
// by an aggressor on side at price (LIMIT orders only; callers never call
// this for MARKET orders since they always cross).
func crosses(side Side, price, restingPrice Price) bool {
	if side == Buy {
		return price >= restingPrice
	}
	return price <= restingPrice
}

// Add allocates the incoming order, acks it, sweeps the opposite side
// while crossing, rests any residual LIMIT quantity, then runs the TOB
// detector. Returns an error only for capacity exhaustion — a
// capacity-planning failure. Pool exhaustion is reported before anything
// is emitted. A failure to rest the residual (price-level table full, or
// order-index probe overflow) is reported after the Ack and any trades
// have been emitted; the residual is then released and the TOB detector
// does not run for that call.
func (b *Book) Add(userID, userOrderID uint32, side Side, orderType OrderType, price Price, qty Quantity, clientID uint32, out *OutputBuffer) error {
	slot, err := b.pool.Alloc()
	if err != nil {
		return err
	}
	o := b.pool.Get(slot)
	o.UserID = userID
	o.UserOrderID = userOrderID
	o.Side = side
	o.Type = orderType
	o.Price = price
	o.OriginalQty = qty
	o.RemainingQty = qty
	o.ClientID = clientID
	o.Timestamp = b.clock.next()
	o.prev, o.next = nullSlot, nullSlot

	out.Append(ackMsg(b.symbol, userID, userOrderID))

	_, opposite := b.sideTables(side)

	iterations := 0
	for o.RemainingQty > 0 && opposite.len() > 0 {
		if iterations >= MaxMatchIterations {
			panic("matching: Book.Add: exceeded MAX_MATCH_ITERATIONS")
		}
		iterations++

		best := opposite.best()
		if orderType == Limit && !crosses(side, price, best.price) {
			break
		}

		for o.RemainingQty > 0 && best.head != nullSlot {
			passiveSlot := best.head
			passive := b.pool.Get(passiveSlot)

			fill := o.RemainingQty
			if passive.RemainingQty < fill {
				fill = passive.RemainingQty
			}

			var buyUser, buyOID, buyClient, sellUser, sellOID, sellClient uint32
			if side == Buy {
				buyUser, buyOID, buyClient = o.UserID, o.UserOrderID, clientID
				sellUser, sellOID, sellClient = passive.UserID, passive.UserOrderID, passive.ClientID
			} else {
				buyUser, buyOID, buyClient = passive.UserID, passive.UserOrderID, passive.ClientID
				sellUser, sellOID, sellClient = o.UserID, o.UserOrderID, clientID
			}
			out.Append(tradeMsg(b.symbol, buyUser, buyOID, buyClient, sellUser, sellOID, sellClient, best.price, fill))
			b.log.Debug("trade",
				zap.Uint32("buy_user", buyUser), zap.Uint32("buy_order", buyOID),
				zap.Uint32("sell_user", sellUser), zap.Uint32("sell_order", sellOID),
				zap.Uint32("price", uint32(best.price)), zap.Uint32("qty", uint32(fill)))

			o.RemainingQty -= fill
			passive.RemainingQty -= fill
			best.totalQty -= fill

			if passive.RemainingQty == 0 {
				b.index.Remove(passive.Key())
				unlinkPointers(b.pool, best, passiveSlot)
				b.pool.Free(passiveSlot)
			} else {
				// aggressor must be exhausted for a partial passive fill.
				break
			}
		}

		if best.empty() {
			opposite.removeAt(0)
		}
	}

	if orderType == Limit && o.RemainingQty > 0 {
		own, _ := b.sideTables(side)
		level, lerr := own.findOrCreate(price)
		if lerr != nil {
			b.pool.Free(slot)
			return lerr
		}
		appendOrder(b.pool, level, slot)
		if ierr := b.index.Insert(o.Key(), location{side: side, price: price, slot: slot}); ierr != nil {
			unlinkOrder(b.pool, level, slot)
			if level.empty() {
				if idx, ok := own.find(price); ok {
					own.removeAt(idx)
				}
			}
			b.pool.Free(slot)
			return ierr
		}
	} else {
		b.pool.Free(slot)
	}

	b.runTOBDetector(out)
	return nil
}

// Cancel is idempotent and always emits a CancelAck, whether or not the
// key was found.
func (b *Book) Cancel(userID, userOrderID uint32, out *OutputBuffer) {
	key := MakeOrderKey(userID, userOrderID)
	loc, ok := b.index.Find(key)
	out.Append(cancelAckMsg(b.symbol, userID, userOrderID))
	if !ok {
		return
	}

	table, _ := b.sideTables(loc.side)
	idx, found := table.find(loc.price)
	if !found {
		return
	}
	level := &table.levels[idx]
	unlinkOrder(b.pool, level, loc.slot)
	b.pool.Free(loc.slot)
	b.index.Remove(key)
	if level.empty() {
		table.removeAt(idx)
	}

	b.runTOBDetector(out)
}

// MassCancel removes every order whose client_id matches, emitting a
// CancelAck per removal, then runs the TOB detector once. Returns the
// number of orders removed.
func (b *Book) MassCancel(clientID uint32, out *OutputBuffer) int {
	removed := 0
	removed += b.massCancelSide(b.bids, clientID, out)
	removed += b.massCancelSide(b.asks, clientID, out)
	if removed > 0 {
		b.runTOBDetector(out)
	}
	return removed
}

func (b *Book) massCancelSide(table *priceLevelTable, clientID uint32, out *OutputBuffer) int {
	removed := 0
	i := 0
	for i < len(table.levels) {
		level := &table.levels[i]
		slot := level.head
		for slot != nullSlot {
			next := b.pool.Get(slot).next
			o := b.pool.Get(slot)
			if o.ClientID == clientID {
				out.Append(cancelAckMsg(b.symbol, o.UserID, o.UserOrderID))
				b.index.Remove(o.Key())
				unlinkOrder(b.pool, level, slot)
				b.pool.Free(slot)
				removed++
			}
			slot = next
		}
		if level.empty() {
			table.removeAt(i)
			continue
		}
		i++
	}
	return removed
}

// Flush begins an iterative drain of every resting order. Returns true if
// the flush completed in this call (small books), false if the caller
// must invoke ContinueFlush to keep draining.
func (b *Book) Flush(out *OutputBuffer) bool {
	b.flushing = true
	b.flushSide = 0
	return b.ContinueFlush(out)
}

// ContinueFlush resumes a flush started by Flush, draining up to
// FLUSH_BATCH_SIZE cancels per call. Returns true once the book is fully
// empty and the final TOB elimination has been emitted.
func (b *Book) ContinueFlush(out *OutputBuffer) bool {
	if !b.flushing {
		return true
	}

	budget := FlushBatchSize
	for budget > 0 {
		switch b.flushSide {
		case 0:
			if !b.drainHead(b.bids, out) {
				b.flushSide = 1
				continue
			}
			budget--
		case 1:
			if !b.drainHead(b.asks, out) {
				b.flushSide = 2
				continue
			}
			budget--
		case 2:
			b.index.Clear()
			b.runTOBDetector(out)
			b.flushing = false
			return true
		}
	}
	return false
}

// drainHead removes and acks the head order of the first remaining level
// of table, returning false once table is empty. Order: best level first,
// head-to-tail within a level — the deterministic drain order clients
// depend on.
func (b *Book) drainHead(table *priceLevelTable, out *OutputBuffer) bool {
	level := table.best()
	if level == nil {
		return false
	}
	slot := level.head
	o := b.pool.Get(slot)
	out.Append(cancelAckMsg(b.symbol, o.UserID, o.UserOrderID))
	unlinkOrder(b.pool, level, slot)
	b.pool.Free(slot)
	if level.empty() {
		table.removeAt(0)
	}
	return true
}

// runTOBDetector checks the bid side before the ask side; sticky "ever
// active" flags gate elimination messages so a side that never had a
// resting order doesn't emit a spurious elimination.
func (b *Book) runTOBDetector(out *OutputBuffer) {
	b.checkSide(Buy, out)
	b.checkSide(Sell, out)
}

func (b *Book) checkSide(side Side, out *OutputBuffer) {
	table, _ := b.sideTables(side)

	var curPrice Price
	var curQty Quantity
	if lvl := table.best(); lvl != nil {
		curPrice, curQty = lvl.price, lvl.totalQty
	}

	var prevPrice *Price
	var prevQty *Quantity
	var everActive *bool
	if side == Buy {
		prevPrice, prevQty, everActive = &b.prevBidPrice, &b.prevBidQty, &b.bidEverActive
	} else {
		prevPrice, prevQty, everActive = &b.prevAskPrice, &b.prevAskQty, &b.askEverActive
	}

	if curPrice > 0 {
		*everActive = true
	}

	if curPrice != *prevPrice || curQty != *prevQty {
		switch {
		case curPrice == 0 && *everActive:
			out.Append(tobMsg(b.symbol, side, 0, 0, true))
		case curPrice > 0:
			out.Append(tobMsg(b.symbol, side, curPrice, curQty, false))
		}
		*prevPrice, *prevQty = curPrice, curQty
	}
}

// Empty reports whether the book currently has no resting orders on
// either side. Books live for the engine's entire lifetime; this is
// kept for diagnostics and tests, not symbol reclamation.
func (b *Book) Empty() bool {
	return b.bids.len() == 0 && b.asks.len() == 0
}

// Symbol returns the symbol this book serves.
func (b *Book) Symbol() Symbol { return b.symbol }

// Depth returns the number of distinct price levels currently present on
// side.
func (b *Book) Depth(side Side) int {
	table, _ := b.sideTables(side)
	return table.len()
}

func (b *Book) String() string {
	return fmt.Sprintf("Book{%s bids=%d asks=%d}", b.symbol, b.bids.len(), b.asks.len())
}
