package ingress

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/tembolo1284/matching-engine-c-sub001/internal/matching"
)

// MassCancelDispatcher fans a client disconnect's mass-cancel request out
// to every worker lane's input queue concurrently, using a bounded
// goroutine pool instead of an unbounded `go func` per lane. A mass
// cancel is delivered to each worker as an in-band command in its own
// input queue, not by reaching into the book directly.
type MassCancelDispatcher struct {
	pool  *ants.Pool
	lanes [matching.NumLanes]*matching.InputQueue
	log   *zap.Logger
}

// NewMassCancelDispatcher wraps the two worker lanes' input queues.
// poolSize bounds how many concurrent fan-out submissions are in flight;
// it has nothing to do with how many symbols or orders exist.
func NewMassCancelDispatcher(lanes [matching.NumLanes]*matching.InputQueue, poolSize int, log *zap.Logger) (*MassCancelDispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &MassCancelDispatcher{pool: pool, lanes: lanes, log: log}, nil
}

// Dispatch enqueues a MassCancelInput command onto both lanes
// concurrently: a client's orders across both lanes live in two
// independent engines, so per-client mass cancel must be invoked on
// both.
func (d *MassCancelDispatcher) Dispatch(clientID uint32) {
	for _, lane := range d.lanes {
		lane := lane
		err := d.pool.Submit(func() {
			env := matching.InputEnvelope{
				Payload: matching.InputMessage{
					Kind:               matching.MassCancelInput,
					MassCancelClientID: clientID,
				},
			}
			if !lane.Enqueue(env) {
				d.log.Warn("mass cancel command dropped: input queue full", zap.Uint32("client_id", clientID))
			}
		})
		if err != nil {
			d.log.Error("mass cancel dispatch rejected by pool", zap.Error(err))
		}
	}
}

// Release stops accepting new submissions and releases pool resources.
func (d *MassCancelDispatcher) Release() {
	d.pool.Release()
}
