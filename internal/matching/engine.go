package matching

import (
	"hash/fnv"

	cerrors "github.com/tembolo1284/matching-engine-c-sub001/internal/common/errors"
	"go.uber.org/zap"
)

// symbolEntry is one slot of the engine's symbol→book index.
type symbolEntry struct {
	symbol Symbol
	used   bool
	bookIdx int32
}

// keySymbolEntry is one slot of the engine's order-key→symbol index.
type keySymbolEntry struct {
	key    OrderKey
	symbol Symbol
	state  uint8 // 0 empty, 1 live, 2 tombstone
}

// Engine is the multi-symbol routing layer: one symbol→book table, one
// order-key→symbol table, a contiguous array of books backed by a single
// shared order pool, all operated from exactly one worker thread. A
// single owning thread means no atomic-pointer-swap trick is needed —
// there is no concurrent writer to guard against.
type Engine struct {
	pool *OrderPool

	books     []*Book
	symbols   []symbolEntry
	symMask   uint64

	keySymbol     []keySymbolEntry
	keySymbolMask uint64
	keySymbolLive int

	bookIndexCapacity int
	lMax              int

	log *zap.Logger

	// FlushDrain, if set, is invoked with the output buffer's contents
	// between ContinueFlush batches so a flush across many resting
	// orders never needs a buffer sized to the whole book. The worker
	// stage wires this to its output-queue routing path.
	FlushDrain func(out *OutputBuffer)
}

// EngineConfig bundles the capacity limits an Engine is built from; see
// internal/config for the viper-backed tunable surface
// these are sourced from at startup.
type EngineConfig struct {
	PoolCapacity       int
	MaxSymbols         int
	BookIndexCapacity  int
	PriceLevelCapacity int
	OrderKeyMapCapacity int
}

// NewEngine constructs an Engine with its own order pool sized to
// cfg.PoolCapacity, shared across every book it creates.
func NewEngine(cfg EngineConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	symSize := nextPow2(cfg.MaxSymbols * 2)
	keySize := nextPow2(cfg.OrderKeyMapCapacity)
	return &Engine{
		pool:              NewOrderPool(cfg.PoolCapacity),
		books:             make([]*Book, 0, cfg.MaxSymbols),
		symbols:           make([]symbolEntry, symSize),
		symMask:           uint64(symSize) - 1,
		keySymbol:         make([]keySymbolEntry, keySize),
		keySymbolMask:     uint64(keySize) - 1,
		bookIndexCapacity: cfg.BookIndexCapacity,
		lMax:              cfg.PriceLevelCapacity,
		log:               log,
	}
}

func fnv1a(s Symbol) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// getOrCreateBook resolves a symbol to its book, creating one on first
// use. Returns a symbol-table-full error once cfg.MaxSymbols distinct
// symbols have been seen.
func (e *Engine) getOrCreateBook(symbol Symbol) (*Book, error) {
	start := fnv1a(symbol) & e.symMask
	for i := uint64(0); i <= e.symMask; i++ {
		pos := (start + i) & e.symMask
		slot := &e.symbols[pos]
		if !slot.used {
			if len(e.books) >= cap(e.books) {
				return nil, cerrors.New(cerrors.CodeSymbolTableFull, "Engine.getOrCreateBook").
					WithDetail("max_symbols", cap(e.books))
			}
			book := NewBook(symbol, e.pool, e.bookIndexCapacity, e.lMax, e.log)
			e.books = append(e.books, book)
			e.log.Info("created book",
				zap.String("symbol", string(symbol)), zap.Int("book_count", len(e.books)))
			slot.symbol = symbol
			slot.used = true
			slot.bookIdx = int32(len(e.books) - 1)
			return book, nil
		}
		if slot.symbol == symbol {
			return e.books[slot.bookIdx], nil
		}
	}
	return nil, cerrors.New(cerrors.CodeSymbolTableFull, "Engine.getOrCreateBook").
		WithDetail("max_symbols", cap(e.books))
}

func keyMix(key OrderKey) uint64 { return mix64(uint64(key)) }

// recordOrderSymbol inserts key→symbol for future cancel lookups: every
// live order has an entry in this map.
func (e *Engine) recordOrderSymbol(key OrderKey, symbol Symbol) error {
	start := keyMix(key) & e.keySymbolMask
	firstTombstone := int64(-1)
	for i := 0; i < MaxProbe; i++ {
		pos := (start + uint64(i)) & e.keySymbolMask
		entry := &e.keySymbol[pos]
		switch entry.state {
		case 0:
			target := pos
			if firstTombstone >= 0 {
				target = uint64(firstTombstone)
			} else {
				e.keySymbolLive++
			}
			e.keySymbol[target] = keySymbolEntry{key: key, symbol: symbol, state: 1}
			return nil
		case 2:
			if firstTombstone < 0 {
				firstTombstone = int64(pos)
			}
		case 1:
			if entry.key == key {
				entry.symbol = symbol
				return nil
			}
		}
	}
	return cerrors.New(cerrors.CodeProbeOverflow, "Engine.recordOrderSymbol").
		WithDetail("max_probe", MaxProbe)
}

func (e *Engine) lookupOrderSymbol(key OrderKey) (Symbol, bool) {
	start := keyMix(key) & e.keySymbolMask
	for i := 0; i < MaxProbe; i++ {
		pos := (start + uint64(i)) & e.keySymbolMask
		entry := &e.keySymbol[pos]
		if entry.state == 0 {
			return "", false
		}
		if entry.state == 1 && entry.key == key {
			return entry.symbol, true
		}
	}
	return "", false
}

func (e *Engine) forgetOrderSymbol(key OrderKey) {
	start := keyMix(key) & e.keySymbolMask
	for i := 0; i < MaxProbe; i++ {
		pos := (start + uint64(i)) & e.keySymbolMask
		entry := &e.keySymbol[pos]
		if entry.state == 0 {
			return
		}
		if entry.state == 1 && entry.key == key {
			entry.state = 2
			e.keySymbolLive--
			return
		}
	}
}

// Process dispatches one input message against the engine. clientID is
// the originating client, threaded through so Add can stamp it onto
// resting orders for later trade-routing and mass cancel.
func (e *Engine) Process(msg InputMessage, clientID uint32, out *OutputBuffer) {
	switch msg.Kind {
	case NewOrderInput:
		e.processNewOrder(msg, clientID, out)
	case CancelInput:
		e.processCancel(msg, out)
	case FlushInput:
		e.processFlush(out)
	case MassCancelInput:
		e.processMassCancel(msg.MassCancelClientID, out)
	}
}

func (e *Engine) processNewOrder(msg InputMessage, clientID uint32, out *OutputBuffer) {
	book, err := e.getOrCreateBook(msg.Symbol)
	if err != nil {
		// The Ack is still emitted so the client sees an acknowledgement,
		// even though no book exists to match against.
		e.log.Warn("symbol table full, order acked without a book",
			zap.String("symbol", string(msg.Symbol)), zap.Error(err))
		out.Append(ackMsg(msg.Symbol, msg.UserID, msg.UserOrderID))
		return
	}

	orderType := Limit
	if msg.Price == MarketPrice {
		orderType = Market
	}

	if addErr := book.Add(msg.UserID, msg.UserOrderID, msg.Side, orderType, msg.Price, msg.Quantity, clientID, out); addErr != nil {
		e.log.Error("order rejected: capacity exhausted", zap.Error(addErr),
			zap.String("symbol", string(msg.Symbol)), zap.Uint32("user_id", msg.UserID))
		return
	}

	key := MakeOrderKey(msg.UserID, msg.UserOrderID)
	if err := e.recordOrderSymbol(key, msg.Symbol); err != nil {
		e.log.Error("order-key→symbol map probe overflow", zap.Error(err))
	}
}

func (e *Engine) processCancel(msg InputMessage, out *OutputBuffer) {
	key := MakeOrderKey(msg.UserID, msg.UserOrderID)
	symbol, ok := e.lookupOrderSymbol(key)
	if !ok {
		// No entry means no book lookup at all, but CancelAck is still
		// unconditional.
		out.Append(cancelAckMsg("", msg.UserID, msg.UserOrderID))
		return
	}

	book, err := e.getOrCreateBook(symbol)
	if err != nil {
		out.Append(cancelAckMsg(symbol, msg.UserID, msg.UserOrderID))
		return
	}
	book.Cancel(msg.UserID, msg.UserOrderID, out)
	e.forgetOrderSymbol(key)
}

func (e *Engine) processFlush(out *OutputBuffer) {
	for _, book := range e.books {
		done := book.Flush(out)
		for !done {
			if e.FlushDrain != nil {
				e.FlushDrain(out)
				out.Reset()
			}
			done = book.ContinueFlush(out)
		}
	}
	for i := range e.keySymbol {
		e.keySymbol[i] = keySymbolEntry{}
	}
	e.keySymbolLive = 0
}

func (e *Engine) processMassCancel(clientID uint32, out *OutputBuffer) int {
	total := 0
	for _, book := range e.books {
		total += book.MassCancel(clientID, out)
	}
	return total
}

// Book returns the book for symbol if one has already been created.
func (e *Engine) Book(symbol Symbol) (*Book, bool) {
	start := fnv1a(symbol) & e.symMask
	for i := uint64(0); i <= e.symMask; i++ {
		pos := (start + i) & e.symMask
		slot := &e.symbols[pos]
		if !slot.used {
			return nil, false
		}
		if slot.symbol == symbol {
			return e.books[slot.bookIdx], true
		}
	}
	return nil, false
}

// BookCount returns the number of distinct symbols seen so far.
func (e *Engine) BookCount() int { return len(e.books) }

// ForEachBook invokes fn for every created book, in creation order. Must
// be called from the owning worker thread; books have no internal
// locking.
func (e *Engine) ForEachBook(fn func(*Book)) {
	for _, b := range e.books {
		fn(b)
	}
}

// PoolStats snapshots the shared order pool's utilization counters.
func (e *Engine) PoolStats() PoolStats { return e.pool.Stats() }
