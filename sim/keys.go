package sim

import (
	"encoding/binary"

	"github.com/spacemeshos/go-keysync/hash"
	"github.com/spacemeshos/go-keysync/keysync/types"
)

// KeySource generates keys for the simulated peers.
type KeySource interface {
	Next() types.KeyBytes
}

// RandomKeys generates random keys.
type RandomKeys struct {
	KeyLen int
}

// Next implements KeySource.
func (rk RandomKeys) Next() types.KeyBytes {
	k := types.RandomKeyBytes(rk.KeyLen)
	if k == nil {
		panic("BUG: can't read random bytes")
	}
	return k
}

// SeededKeys generates a reproducible key sequence by hashing the seed
// together with a counter.
type SeededKeys struct {
	seed    uint64
	keyLen  int
	counter uint64
}

// NewSeededKeys creates a SeededKeys.
func NewSeededKeys(seed uint64, keyLen int) *SeededKeys {
	return &SeededKeys{seed: seed, keyLen: keyLen}
}

// Next implements KeySource.
func (sk *SeededKeys) Next() types.KeyBytes {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:], sk.seed)
	binary.BigEndian.PutUint64(b[8:], sk.counter)
	sk.counter++

	h := hash.GetHasher()
	defer hash.PutHasher(h)
	h.Write(b[:])
	k := make(types.KeyBytes, sk.keyLen)
	if _, err := h.Digest().Read(k); err != nil {
		panic("BUG: reading the hash output: " + err.Error())
	}
	return k
}
