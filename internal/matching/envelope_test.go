package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_SingleMessageGoesToOriginatingClient(t *testing.T) {
	var seq uint64
	next := func() uint64 { seq++; return seq }

	envs := route(ackMsg("IBM", 1, 1), 42, next)

	require.Len(t, envs, 1)
	assert.Equal(t, uint32(42), envs[0].ClientID)
	assert.Equal(t, AckMsg, envs[0].Payload.Kind)
	assert.NotEmpty(t, envs[0].CorrelationID)
}

func TestRoute_TradeDuplicatesToBothCounterparties(t *testing.T) {
	var seq uint64
	next := func() uint64 { seq++; return seq }

	msg := tradeMsg("IBM", 1, 1, 10, 2, 2, 20, 100, 50)
	envs := route(msg, 0, next)

	require.Len(t, envs, 2)
	clientIDs := []uint32{envs[0].ClientID, envs[1].ClientID}
	assert.Contains(t, clientIDs, uint32(10))
	assert.Contains(t, clientIDs, uint32(20))
	assert.NotEqual(t, envs[0].Seq, envs[1].Seq)
}

func TestRoute_TradeSuppressesZeroClientSide(t *testing.T) {
	var seq uint64
	next := func() uint64 { seq++; return seq }

	msg := tradeMsg("IBM", 1, 1, 0, 2, 2, 20, 100, 50)
	envs := route(msg, 0, next)

	require.Len(t, envs, 1)
	assert.Equal(t, uint32(20), envs[0].ClientID)
}

func TestRoute_TradeBothClientsZeroEmitsNothing(t *testing.T) {
	var seq uint64
	next := func() uint64 { seq++; return seq }

	msg := tradeMsg("IBM", 1, 1, 0, 2, 2, 0, 100, 50)
	envs := route(msg, 0, next)

	assert.Empty(t, envs)
}

func TestRoute_SelfCrossSameClientEmitsOneEnvelope(t *testing.T) {
	var seq uint64
	next := func() uint64 { seq++; return seq }

	msg := tradeMsg("IBM", 5, 1, 9, 5, 2, 9, 100, 50)
	envs := route(msg, 0, next)

	require.Len(t, envs, 1)
	assert.Equal(t, uint32(9), envs[0].ClientID)
}
