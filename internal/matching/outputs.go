package matching

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageKind tags the payload carried by an OutputMessage.
type MessageKind uint8

const (
	AckMsg MessageKind = iota
	CancelAckMsg
	TradeMsg
	TopOfBookMsg
)

// OutputMessage is the flat, allocation-free shape emitted by a book
// operation into a caller-supplied OutputBuffer. Only the fields relevant
// to Kind are meaningful; the rest are zero. Kept flat (no payload
// interface) so buffers are plain slices with no per-message boxing,
// mirroring the order pool's slab discipline; the one per-message
// allocation is a Trade's TradeUUID string.
type OutputMessage struct {
	Kind MessageKind

	Symbol Symbol

	// Ack / CancelAck
	UserID      uint32
	UserOrderID uint32

	// Trade
	BuyUserID       uint32
	BuyUserOrderID  uint32
	BuyClientID     uint32
	SellUserID      uint32
	SellUserOrderID uint32
	SellClientID    uint32
	Price           Price
	Quantity        Quantity
	TradeUUID       string // opaque per-trade identifier for log correlation; not part of the wire CSV shape

	// TopOfBook
	Side       Side
	TotalQty   Quantity
	Eliminated bool
}

// OutputBuffer is a bounded, book-operation-scoped sink for OutputMessage
// values. It never grows past capacity; once full, further appends are
// dropped and counted rather than silently truncating the batch.
type OutputBuffer struct {
	msgs    []OutputMessage
	dropped uint64
	log     *zap.Logger
}

// NewOutputBuffer allocates a buffer with the given fixed capacity.
func NewOutputBuffer(capacity int) *OutputBuffer {
	return &OutputBuffer{msgs: make([]OutputMessage, 0, capacity)}
}

// SetLogger attaches a logger used to warn on dropped messages. Safe to
// leave unset; drops are still counted.
func (b *OutputBuffer) SetLogger(log *zap.Logger) { b.log = log }

// Reset clears the buffer for reuse in the next book operation without
// reallocating.
func (b *OutputBuffer) Reset() {
	b.msgs = b.msgs[:0]
}

// Append adds msg if there is room; returns false and bumps the dropped
// counter otherwise.
func (b *OutputBuffer) Append(msg OutputMessage) bool {
	if len(b.msgs) == cap(b.msgs) {
		b.dropped++
		if b.log != nil {
			b.log.Warn("output buffer full, dropping message",
				zap.Uint8("kind", uint8(msg.Kind)), zap.String("symbol", string(msg.Symbol)),
				zap.Int("capacity", cap(b.msgs)))
		}
		return false
	}
	b.msgs = append(b.msgs, msg)
	return true
}

// Messages returns the buffer's current contents, in emission order.
func (b *OutputBuffer) Messages() []OutputMessage { return b.msgs }

// Dropped returns the cumulative count of messages dropped due to a full
// buffer since construction.
func (b *OutputBuffer) Dropped() uint64 { return b.dropped }

func ackMsg(symbol Symbol, userID, userOrderID uint32) OutputMessage {
	return OutputMessage{Kind: AckMsg, Symbol: symbol, UserID: userID, UserOrderID: userOrderID}
}

func cancelAckMsg(symbol Symbol, userID, userOrderID uint32) OutputMessage {
	return OutputMessage{Kind: CancelAckMsg, Symbol: symbol, UserID: userID, UserOrderID: userOrderID}
}

func tradeMsg(symbol Symbol, buyUser, buyOID, buyClientID, sellUser, sellOID, sellClientID uint32, price Price, qty Quantity) OutputMessage {
	return OutputMessage{
		Kind: TradeMsg, Symbol: symbol,
		BuyUserID: buyUser, BuyUserOrderID: buyOID, BuyClientID: buyClientID,
		SellUserID: sellUser, SellUserOrderID: sellOID, SellClientID: sellClientID,
		Price: price, Quantity: qty, TradeUUID: uuid.New().String(),
	}
}

func tobMsg(symbol Symbol, side Side, price Price, qty Quantity, eliminated bool) OutputMessage {
	return OutputMessage{
		Kind: TopOfBookMsg, Symbol: symbol, Side: side,
		Price: price, TotalQty: qty, Eliminated: eliminated,
	}
}
