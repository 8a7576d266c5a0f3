package matching

import "math/rand"

// LoadGenerator produces synthetic NewOrder traffic (limit and market
// orders; it generates no cancels) for local
// soak-testing the pipeline without a real network ingress. Seeded
// deterministically so repeat runs are reproducible.
type LoadGenerator struct {
	rng     *rand.Rand
	symbols []Symbol
	users   []uint32
	maxQty  int
	maxTick int

	nextOrderID uint32
}

// NewLoadGenerator builds a generator seeded deterministically so repeat
// runs are reproducible; symbols/users/maxQty/maxTick bound the random
// order shape it emits.
func NewLoadGenerator(seed int64, symbols []Symbol, userCount int, maxQty, maxTick int) *LoadGenerator {
	users := make([]uint32, userCount)
	for i := range users {
		users[i] = uint32(i + 1)
	}
	return &LoadGenerator{
		rng:     rand.New(rand.NewSource(seed)),
		symbols: symbols,
		users:   users,
		maxQty:  maxQty,
		maxTick: maxTick,
	}
}

// NextNewOrder returns a random, validly-shaped NewOrder input message:
// a nonzero quantity, a BUY/SELL side, and a limit price in [1, maxTick],
// never the 0/market sentinel.
func (g *LoadGenerator) NextNewOrder() InputMessage {
	g.nextOrderID++
	side := Buy
	if g.rng.Intn(2) == 1 {
		side = Sell
	}
	return InputMessage{
		Kind:        NewOrderInput,
		UserID:      g.users[g.rng.Intn(len(g.users))],
		UserOrderID: g.nextOrderID,
		Symbol:      g.symbols[g.rng.Intn(len(g.symbols))],
		Price:       Price(1 + g.rng.Intn(g.maxTick)),
		Quantity:    Quantity(1 + g.rng.Intn(g.maxQty)),
		Side:        side,
	}
}

// NextMarketOrder returns a random MARKET order (price == 0).
func (g *LoadGenerator) NextMarketOrder() InputMessage {
	msg := g.NextNewOrder()
	msg.Price = MarketPrice
	return msg
}
