package matching

import (
	cerrors "github.com/tembolo1284/matching-engine-c-sub001/internal/common/errors"
)

// location records where a live order is resting: which side, at which
// price, and which pool slot holds it.
type location struct {
	side  Side
	price Price
	slot  int32
}

const (
	emptyKey     OrderKey = 0
	tombstoneKey OrderKey = ^OrderKey(0)
)

// OrderIndex is a fixed-size open-addressed hash table mapping an order
// key to its book location. Linear probing with a tombstone sentinel so
// cancels don't break probe chains for keys that collided with the
// removed one.
type OrderIndex struct {
	keys      []OrderKey
	locs      []location
	mask      uint64
	count     int // live entries
	tombstone int // tombstoned entries
}

// NewOrderIndex builds a table sized to the next power of two at or above
// capacity; the caller's capacity is the slot count, not a live-entry
// target. Capacity is fixed for the table's lifetime (aside
// from in-place rehashing, which preserves size).
func NewOrderIndex(capacity int) *OrderIndex {
	size := nextPow2(capacity)
	idx := &OrderIndex{
		keys: make([]OrderKey, size),
		locs: make([]location, size),
		mask: uint64(size) - 1,
	}
	for i := range idx.keys {
		idx.keys[i] = emptyKey
	}
	return idx
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// mix64 is a 64-bit xor-shift mix with the golden-ratio multiplier.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

func (idx *OrderIndex) slotFor(key OrderKey) uint64 {
	return mix64(uint64(key)) & idx.mask
}

// Insert adds or overwrites the location for key. Returns a probe-overflow
// error if MaxProbe consecutive slots are occupied by live, non-matching
// entries — a capacity-planning failure, not a transient condition.
func (idx *OrderIndex) Insert(key OrderKey, loc location) error {
	if idx.tombstone*4 > len(idx.keys) {
		idx.rehash()
	}

	start := idx.slotFor(key)
	firstTombstone := int64(-1)

	for i := 0; i < MaxProbe; i++ {
		pos := (start + uint64(i)) & idx.mask
		k := idx.keys[pos]

		switch {
		case k == emptyKey:
			target := pos
			if firstTombstone >= 0 {
				target = uint64(firstTombstone)
				idx.tombstone--
			}
			idx.count++
			idx.keys[target] = key
			idx.locs[target] = loc
			return nil
		case k == tombstoneKey:
			if firstTombstone < 0 {
				firstTombstone = int64(pos)
			}
		case k == key:
			idx.locs[pos] = loc
			return nil
		}
	}

	if firstTombstone >= 0 {
		idx.keys[firstTombstone] = key
		idx.locs[firstTombstone] = loc
		idx.tombstone--
		idx.count++
		return nil
	}

	return cerrors.New(cerrors.CodeProbeOverflow, "OrderIndex.Insert").
		WithDetail("max_probe", MaxProbe)
}

// Find returns the location for key, if present.
func (idx *OrderIndex) Find(key OrderKey) (location, bool) {
	start := idx.slotFor(key)
	for i := 0; i < MaxProbe; i++ {
		pos := (start + uint64(i)) & idx.mask
		k := idx.keys[pos]
		if k == emptyKey {
			return location{}, false
		}
		if k == key {
			return idx.locs[pos], true
		}
	}
	return location{}, false
}

// Remove tombstones the entry for key, if present, and returns whether it
// was found.
func (idx *OrderIndex) Remove(key OrderKey) bool {
	start := idx.slotFor(key)
	for i := 0; i < MaxProbe; i++ {
		pos := (start + uint64(i)) & idx.mask
		k := idx.keys[pos]
		if k == emptyKey {
			return false
		}
		if k == key {
			idx.keys[pos] = tombstoneKey
			idx.count--
			idx.tombstone++
			return true
		}
	}
	return false
}

// Len returns the number of live entries.
func (idx *OrderIndex) Len() int { return idx.count }

// rehash rebuilds the table in place, dropping tombstones. Triggered when
// the tombstone fraction exceeds 25% or explicitly on flush.
func (idx *OrderIndex) rehash() {
	oldKeys, oldLocs := idx.keys, idx.locs
	idx.keys = make([]OrderKey, len(oldKeys))
	idx.locs = make([]location, len(oldLocs))
	for i := range idx.keys {
		idx.keys[i] = emptyKey
	}
	idx.count = 0
	idx.tombstone = 0

	for i, k := range oldKeys {
		if k == emptyKey || k == tombstoneKey {
			continue
		}
		_ = idx.Insert(k, oldLocs[i]) // table is same size; cannot overflow if it didn't before
	}
}

// Clear empties the table in place, used by flush.
func (idx *OrderIndex) Clear() {
	for i := range idx.keys {
		idx.keys[i] = emptyKey
	}
	idx.count = 0
	idx.tombstone = 0
}
