package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputQueue_FIFOAndCapacity(t *testing.T) {
	q := NewInputQueue(4) // usable capacity 3, one slot always empty

	for i := 0; i < 3; i++ {
		ok := q.Enqueue(InputEnvelope{Seq: uint64(i)})
		require.True(t, ok)
	}
	assert.False(t, q.Enqueue(InputEnvelope{Seq: 99}))
	assert.EqualValues(t, 1, q.DroppedEnqueue())

	for i := 0; i < 3; i++ {
		env, ok := q.Dequeue()
		require.True(t, ok)
		assert.EqualValues(t, i, env.Seq)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestInputQueue_SizeInvariant(t *testing.T) {
	q := NewInputQueue(8)
	for i := 0; i < 5; i++ {
		q.Enqueue(InputEnvelope{Seq: uint64(i)})
	}
	assert.Equal(t, 5, q.Size())
	assert.Less(t, q.Size(), q.Capacity())

	q.Dequeue()
	q.Dequeue()
	assert.Equal(t, 3, q.Size())
}

func TestInputQueue_BatchDequeuePreservesOrder(t *testing.T) {
	q := NewInputQueue(16)
	for i := 0; i < 10; i++ {
		q.Enqueue(InputEnvelope{Seq: uint64(i)})
	}
	dst := make([]InputEnvelope, 4)
	n := q.DequeueBatch(dst)
	assert.Equal(t, 4, n)
	for i := 0; i < 4; i++ {
		assert.EqualValues(t, i, dst[i].Seq)
	}
}

func TestInputQueue_PanicsOnNonPowerOfTwoCapacity(t *testing.T) {
	assert.Panics(t, func() { NewInputQueue(3) })
}

func TestOutputQueue_FIFOAndCapacity(t *testing.T) {
	q := NewOutputQueue(4)
	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(OutputEnvelope{Seq: uint64(i)}))
	}
	assert.False(t, q.Enqueue(OutputEnvelope{Seq: 9}))

	for i := 0; i < 3; i++ {
		env, ok := q.Dequeue()
		require.True(t, ok)
		assert.EqualValues(t, i, env.Seq)
	}
	assert.True(t, q.Empty())
}
