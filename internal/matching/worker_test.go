package matching

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWorker(t *testing.T) (*Worker, *InputQueue, *OutputQueue, *int32) {
	t.Helper()
	cfg := EngineConfig{
		PoolCapacity:        256,
		MaxSymbols:          4,
		BookIndexCapacity:   64,
		PriceLevelCapacity:  16,
		OrderKeyMapCapacity: 256,
	}
	engine := NewEngine(cfg, zap.NewNop())
	in := NewInputQueue(16)
	out := NewOutputQueue(16)
	shutdown := new(int32)
	w := NewWorker(0, engine, in, out, shutdown, WorkerConfig{}, zap.NewNop())
	return w, in, out, shutdown
}

func drainAll(out *OutputQueue, timeout time.Duration) []OutputEnvelope {
	var envs []OutputEnvelope
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		env, ok := out.Dequeue()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		envs = append(envs, env)
	}
	return envs
}

func TestWorker_ProcessesOneEnvelopeEndToEnd(t *testing.T) {
	w, in, out, shutdown := newTestWorker(t)
	go w.Run()
	defer atomic.StoreInt32(shutdown, 1)

	require.True(t, in.Enqueue(InputEnvelope{
		Payload: InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 10, Quantity: 100, Side: Buy},
		ClientID: 7,
	}))

	var got OutputEnvelope
	require.Eventually(t, func() bool {
		env, ok := out.Dequeue()
		if ok {
			got = env
			return true
		}
		return false
	}, time.Second, time.Millisecond)

	assert.Equal(t, AckMsg, got.Payload.Kind)
	assert.Equal(t, uint32(7), got.ClientID)
}

func TestWorker_TradeRoutesToBothClients(t *testing.T) {
	w, in, out, shutdown := newTestWorker(t)
	go w.Run()
	defer atomic.StoreInt32(shutdown, 1)

	require.True(t, in.Enqueue(InputEnvelope{
		Payload:  InputMessage{Kind: NewOrderInput, UserID: 1, UserOrderID: 1, Symbol: "IBM", Price: 10, Quantity: 100, Side: Sell},
		ClientID: 11,
	}))
	require.True(t, in.Enqueue(InputEnvelope{
		Payload:  InputMessage{Kind: NewOrderInput, UserID: 2, UserOrderID: 2, Symbol: "IBM", Price: 10, Quantity: 100, Side: Buy},
		ClientID: 22,
	}))

	var tradeClients []uint32
	require.Eventually(t, func() bool {
		for {
			env, ok := out.Dequeue()
			if !ok {
				return len(tradeClients) >= 2
			}
			if env.Payload.Kind == TradeMsg {
				tradeClients = append(tradeClients, env.ClientID)
			}
		}
	}, time.Second, time.Millisecond)

	assert.ElementsMatch(t, []uint32{11, 22}, tradeClients)
}

func TestWorker_StopsOnShutdownFlag(t *testing.T) {
	w, _, _, shutdown := newTestWorker(t)
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	atomic.StoreInt32(shutdown, 1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not observe shutdown flag in time")
	}
}
