package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// These reproduce full order-lifecycle sequences exactly (inputs and
// expected CSV-shaped outputs, in order) for a single symbol IBM in a
// fresh engine.

func freshEndToEndEngine() *Engine {
	cfg := EngineConfig{
		PoolCapacity:        1024,
		MaxSymbols:          4,
		BookIndexCapacity:   256,
		PriceLevelCapacity:  64,
		OrderKeyMapCapacity: 1024,
	}
	return NewEngine(cfg, zap.NewNop())
}

func TestEndToEnd_CrossAtPassivePrice(t *testing.T) {
	e := freshEndToEndEngine()
	out := NewOutputBuffer(MaxOutputMessages)

	e.Process(InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 10, Quantity: 100, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 2, UserOrderID: 2, Symbol: "IBM", Price: 11, Quantity: 100, Side: Sell}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 3, UserOrderID: 3, Symbol: "IBM", Price: 11, Quantity: 30, Side: Buy}, 0, out)

	assert.Equal(t, []string{
		"A, IBM, 1, 1",
		"B, IBM, B, 10, 100",
		"A, IBM, 2, 2",
		"B, IBM, S, 11, 100",
		"A, IBM, 3, 3",
		"T, IBM, 3, 3, 2, 2, 11, 30",
		"B, IBM, S, 11, 70",
	}, textsOf(out))
}

func TestEndToEnd_FIFOWithinLevel(t *testing.T) {
	e := freshEndToEndEngine()
	out := NewOutputBuffer(MaxOutputMessages)

	e.Process(InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 100, Quantity: 10, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 2, UserOrderID: 2, Symbol: "IBM", Price: 100, Quantity: 20, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 3, UserOrderID: 3, Symbol: "IBM", Price: 100, Quantity: 30, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 4, UserOrderID: 4, Symbol: "IBM", Price: 100, Quantity: 35, Side: Sell}, 0, out)

	assert.Equal(t, []string{
		"A, IBM, 1, 1",
		"B, IBM, B, 100, 10",
		"A, IBM, 2, 2",
		"B, IBM, B, 100, 30",
		"A, IBM, 3, 3",
		"B, IBM, B, 100, 60",
		"A, IBM, 4, 4",
		"T, IBM, 1, 1, 4, 4, 100, 10",
		"T, IBM, 2, 2, 4, 4, 100, 20",
		"T, IBM, 3, 3, 4, 4, 100, 5",
		"B, IBM, B, 100, 25",
	}, textsOf(out))
}

func TestEndToEnd_MarketOrderSweepsAndDiscardsResidual(t *testing.T) {
	e := freshEndToEndEngine()
	out := NewOutputBuffer(MaxOutputMessages)

	e.Process(InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 100, Quantity: 10, Side: Sell}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 2, UserOrderID: 2, Symbol: "IBM", Price: MarketPrice, Quantity: 50, Side: Buy}, 0, out)

	assert.Equal(t, []string{
		"A, IBM, 1, 1",
		"B, IBM, S, 100, 10",
		"A, IBM, 2, 2",
		"T, IBM, 2, 2, 1, 1, 100, 10",
		"B, IBM, S, -, -",
	}, textsOf(out))

	book, ok := e.Book("IBM")
	assert.True(t, ok)
	assert.True(t, book.Empty(), "residual market-order quantity must be discarded, never rested")
}

func TestEndToEnd_CancelUnknownIsAcknowledged(t *testing.T) {
	e := freshEndToEndEngine()
	out := NewOutputBuffer(MaxOutputMessages)

	e.Process(InputMessage{Kind: CancelInput, UserID: 1, UserOrderID: 999}, 0, out)

	assert.Equal(t, []string{"C, , 1, 999"}, textsOf(out))
}

func TestEndToEnd_TOBEliminationIsSticky(t *testing.T) {
	e := freshEndToEndEngine()
	out := NewOutputBuffer(MaxOutputMessages)

	e.Process(InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 100, Quantity: 10, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: CancelInput, UserID: 1, UserOrderID: 1}, 0, out)

	assert.Equal(t, []string{
		"A, IBM, 1, 1",
		"B, IBM, B, 100, 10",
		"C, IBM, 1, 1",
		"B, IBM, B, -, -",
	}, textsOf(out))
}

func TestEndToEnd_FlushEmitsDeterministicCancelOrder(t *testing.T) {
	e := freshEndToEndEngine()
	out := NewOutputBuffer(MaxOutputMessages)

	e.Process(InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 10, Quantity: 100, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 2, Symbol: "IBM", Price: 12, Quantity: 100, Side: Sell}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 2, UserOrderID: 101, Symbol: "IBM", Price: 9, Quantity: 100, Side: Buy}, 0, out)
	e.Process(InputMessage{Kind: NewOrderInput, UserID: 2, UserOrderID: 102, Symbol: "IBM", Price: 11, Quantity: 100, Side: Sell}, 0, out)
	out.Reset()

	e.Process(InputMessage{Kind: FlushInput}, 0, out)

	assert.Equal(t, []string{
		"C, IBM, 1, 1",
		"C, IBM, 2, 101",
		"C, IBM, 2, 102",
		"C, IBM, 1, 2",
		"B, IBM, B, -, -",
		"B, IBM, S, -, -",
	}, textsOf(out))
}
