package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderIndex_InsertFindRemove(t *testing.T) {
	idx := NewOrderIndex(16)
	key := MakeOrderKey(1, 1)
	loc := location{side: Buy, price: 100, slot: 3}

	require.NoError(t, idx.Insert(key, loc))
	got, ok := idx.Find(key)
	require.True(t, ok)
	assert.Equal(t, loc, got)
	assert.Equal(t, 1, idx.Len())

	assert.True(t, idx.Remove(key))
	_, ok = idx.Find(key)
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())
}

func TestOrderIndex_RemoveUnknownIsNoop(t *testing.T) {
	idx := NewOrderIndex(16)
	assert.False(t, idx.Remove(MakeOrderKey(9, 9)))
}

func TestOrderIndex_OverwriteOnDuplicateInsert(t *testing.T) {
	idx := NewOrderIndex(16)
	key := MakeOrderKey(1, 1)
	require.NoError(t, idx.Insert(key, location{slot: 1}))
	require.NoError(t, idx.Insert(key, location{slot: 2}))
	got, ok := idx.Find(key)
	require.True(t, ok)
	assert.EqualValues(t, 2, got.slot)
	assert.Equal(t, 1, idx.Len())
}

func TestOrderIndex_TombstonesPreserveProbeChain(t *testing.T) {
	idx := NewOrderIndex(4)
	// Force at least one collision by inserting several keys into a tiny
	// table, then remove one and confirm the others are still findable.
	// (1,1) and (1,11) share home slot 3, so (1,11) wraps to slot 0 and
	// (1,4), whose home is slot 0, moves on to slot 1.
	keys := []OrderKey{
		MakeOrderKey(1, 1),
		MakeOrderKey(1, 11),
		MakeOrderKey(1, 4),
	}
	for i, k := range keys {
		require.NoError(t, idx.Insert(k, location{slot: int32(i)}))
	}
	require.True(t, idx.Remove(keys[0]))
	for i, k := range keys[1:] {
		got, ok := idx.Find(k)
		require.True(t, ok, "key %d should still be findable", i+1)
		assert.EqualValues(t, i+1, got.slot)
	}
}

func TestOrderIndex_RehashDropsTombstones(t *testing.T) {
	idx := NewOrderIndex(8)
	for i := uint32(0); i < 6; i++ {
		require.NoError(t, idx.Insert(MakeOrderKey(1, i), location{slot: int32(i)}))
	}
	for i := uint32(0); i < 4; i++ {
		idx.Remove(MakeOrderKey(1, i))
	}
	// Next insert should trigger rehash (tombstone fraction > 25%) without error.
	require.NoError(t, idx.Insert(MakeOrderKey(2, 0), location{slot: 99}))
	got, ok := idx.Find(MakeOrderKey(2, 0))
	require.True(t, ok)
	assert.EqualValues(t, 99, got.slot)
}
