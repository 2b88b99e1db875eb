package types

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
)

// DefaultKeyLen is the default key length in bytes.
const DefaultKeyLen = 32

// MaxKeyLen is the largest supported key length, limited by the 16-bit depth
// field of the wire entries.
const MaxKeyLen = 1<<13 - 1

// ErrBadKeyLength is returned when a key doesn't have the configured length.
var ErrBadKeyLength = errors.New("bad key length")

// KeyBytes represents an item (key) in a reconciliable set.
type KeyBytes []byte

// String implements fmt.Stringer.
func (k KeyBytes) String() string {
	return hex.EncodeToString(k)
}

// ShortString returns an abbreviated hex representation of the key.
func (k KeyBytes) ShortString() string {
	if len(k) < 5 {
		return k.String()
	}
	return hex.EncodeToString(k[:5])
}

// Clone returns a copy of the key.
func (k KeyBytes) Clone() KeyBytes {
	return slices.Clone(k)
}

// Compare compares two keys.
func (k KeyBytes) Compare(other KeyBytes) int {
	return bytes.Compare(k, other)
}

// Equal returns true if the keys are byte-for-byte equal.
func (k KeyBytes) Equal(other KeyBytes) bool {
	return bytes.Equal(k, other)
}

// BitFromLeft returns the n-th bit from the left in the key.
func (k KeyBytes) BitFromLeft(i int) bool {
	bi := i / 8
	if bi >= len(k) {
		panic("BUG: bad key bit index")
	}
	return k[bi]&(0x1<<uint(7-i%8)) != 0
}

// Xor updates the key by XORing it with another key of the same length.
func (k KeyBytes) Xor(other KeyBytes) {
	if len(other) != len(k) {
		panic("BUG: xor of keys with different length")
	}
	for n := range k {
		k[n] ^= other[n]
	}
}

// Zero sets all bytes in the key to zero.
func (k KeyBytes) Zero() {
	clear(k)
}

// IsZero returns true if all bytes in the key are zero.
func (k KeyBytes) IsZero() bool {
	for _, b := range k {
		if b != 0 {
			return false
		}
	}
	return true
}

// Trim zeroes all the bits in the key starting with the given bit index.
func (k KeyBytes) Trim(bit int) {
	bi := bit / 8
	if bi >= len(k) {
		return
	}
	clear(k[bi+1:])
	k[bi] &^= 0xff >> uint(bit%8)
}

// CheckLen returns ErrBadKeyLength if the key isn't keyLen bytes long.
func (k KeyBytes) CheckLen(keyLen int) error {
	if len(k) != keyLen {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBadKeyLength, len(k), keyLen)
	}
	return nil
}

// RandomKeyBytes generates random data in bytes for testing.
func RandomKeyBytes(size int) KeyBytes {
	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return nil
	}
	return b
}

// MustParseHexKeyBytes converts a hex string to KeyBytes.
func MustParseHexKeyBytes(s string) KeyBytes {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("bad hex key bytes: " + err.Error())
	}
	return KeyBytes(b)
}
