package hash

import (
	"sync"

	"github.com/zeebo/blake3"
)

// pool amortizes the allocations of blake3 hashers used for key derivation.
var pool = &sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

// GetHasher gets a clean blake3 hasher from the pool.
func GetHasher() *blake3.Hasher {
	return pool.Get().(*blake3.Hasher)
}

// PutHasher resets the hasher and returns it to the pool.
// The hasher and any Digest obtained from it must not be used afterwards.
func PutHasher(hasher *blake3.Hasher) {
	hasher.Reset()
	pool.Put(hasher)
}
