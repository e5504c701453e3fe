package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over a fixed set of entries
type ring struct {
	hashRing *treemap.Map

	// minEntryValue caches the value of the min entry, since treemap.Map.Min()
	// is O(log n) and is needed for every wrap-around lookup.
	minEntryValue interface{}
}

// newRing returns a new consistent hash ring where every entry is placed
// replicationFactor times
func newRing(entries map[string]interface{}, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for k, v := range entries {
		keyHash, _ := murmur3.Sum128([]byte(k))
		keyHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(keyHashBytes, keyHash)

		for i := uint32(0); i < uint32(replicationFactor); i++ {
			indexBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(indexBytes, i)

			hasher := murmur3.New128()
			hasher.Write(keyHashBytes)
			hasher.Write(indexBytes)
			hash, _ := hasher.Sum128()
			hashRing.Put(int64(hash), v)
		}
	}

	_, minEntryValue := hashRing.Min()

	return &ring{
		hashRing:      hashRing,
		minEntryValue: minEntryValue,
	}
}

// shard consistently hashes the key and returns the owning entry value
func (r *ring) shard(key []byte) interface{} {
	raw, _ := murmur3.Sum128(key)
	if _, shard := r.hashRing.Ceiling(int64(raw)); shard != nil {
		return shard
	}
	return r.minEntryValue
}
