package types

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Digest summarizes a subtree of the key space: the number of keys it
// contains and the XOR of all of them.
// A Digest with Count 1 carries the key itself in Combined, and an empty
// Digest has all-zero Combined.
type Digest struct {
	Count    uint32
	Combined KeyBytes
}

// EmptyDigest returns the digest of an empty subtree.
func EmptyDigest(keyLen int) Digest {
	return Digest{Combined: make(KeyBytes, keyLen)}
}

// Equal returns true if both digests have the same count and combined value.
func (d Digest) Equal(other Digest) bool {
	if d.Count != other.Count {
		return false
	}
	if d.Count == 0 {
		return true
	}
	return d.Combined.Equal(other.Combined)
}

// Singleton returns the only key summarized by the digest, if any.
func (d Digest) Singleton() (KeyBytes, bool) {
	if d.Count != 1 {
		return nil, false
	}
	return d.Combined, true
}

// Clone returns a deep copy of the digest.
func (d Digest) Clone() Digest {
	return Digest{Count: d.Count, Combined: d.Combined.Clone()}
}

// Add includes the key in the digest.
func (d *Digest) Add(k KeyBytes) {
	d.Count++
	d.Combined.Xor(k)
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return fmt.Sprintf("%d:%s", d.Count, d.Combined.ShortString())
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (d Digest) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("count", d.Count)
	enc.AddString("combined", d.Combined.ShortString())
	return nil
}
