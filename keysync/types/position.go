package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadPosition is returned when a position encoding is invalid.
var ErrBadPosition = errors.New("bad position")

// Position identifies a subtree of the key space by its bit prefix.
// The zero value is the root position. Positions are comparable and can be
// used as map keys.
type Position struct {
	depth int
	// bits holds (depth+7)/8 bytes of the prefix, with the bits beyond depth
	// set to zero.
	bits string
}

// RootPosition returns the position of the whole key space.
func RootPosition() Position {
	return Position{}
}

// PrefixOf returns the position of the depth-bit prefix of k.
func PrefixOf(k KeyBytes, depth int) Position {
	if depth < 0 || depth > len(k)*8 {
		panic("BUG: bad prefix depth")
	}
	if depth == 0 {
		return Position{}
	}
	b := make(KeyBytes, (depth+7)/8)
	copy(b, k)
	b.Trim(depth)
	return Position{depth: depth, bits: string(b)}
}

// PositionFromBytes makes a position from a depth and a zero-padded prefix.
// The prefix must not have any bits set beyond depth.
func PositionFromBytes(prefix []byte, depth int) (Position, error) {
	if depth < 0 || depth > len(prefix)*8 {
		return Position{}, fmt.Errorf("%w: depth %d exceeds %d bits", ErrBadPosition, depth, len(prefix)*8)
	}
	p := PrefixOf(prefix, depth)
	for i, b := range prefix {
		if i < len(p.bits) {
			b ^= p.bits[i]
		}
		if b != 0 {
			return Position{}, fmt.Errorf("%w: bits set beyond depth %d", ErrBadPosition, depth)
		}
	}
	return p, nil
}

// Depth returns the number of prefix bits.
func (p Position) Depth() int {
	return p.depth
}

// IsRoot returns true for the root position.
func (p Position) IsRoot() bool {
	return p.depth == 0
}

// Bit returns the i-th prefix bit from the left.
func (p Position) Bit(i int) bool {
	if i >= p.depth {
		panic("BUG: position bit index out of range")
	}
	return p.bits[i/8]&(0x1<<uint(7-i%8)) != 0
}

// Child returns the position one bit deeper along the given direction.
func (p Position) Child(bit bool) Position {
	depth := p.depth + 1
	b := make([]byte, (depth+7)/8)
	copy(b, p.bits)
	if bit {
		b[p.depth/8] |= 0x1 << uint(7-p.depth%8)
	}
	return Position{depth: depth, bits: string(b)}
}

// Contains returns true if k has this position's prefix.
func (p Position) Contains(k KeyBytes) bool {
	if p.depth > len(k)*8 {
		return false
	}
	return PrefixOf(k, p.depth) == p
}

// IsPrefixOf returns true if other lies within this position's subtree.
func (p Position) IsPrefixOf(other Position) bool {
	if p.depth > other.depth {
		return false
	}
	return PrefixOf(KeyBytes(other.bits), p.depth) == p
}

// Bytes returns the prefix padded with zeroes to keyLen bytes.
func (p Position) Bytes(keyLen int) []byte {
	if len(p.bits) > keyLen {
		panic("BUG: position deeper than the key")
	}
	b := make([]byte, keyLen)
	copy(b, p.bits)
	return b
}

// String implements fmt.Stringer.
func (p Position) String() string {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(fmt.Sprint(p.depth))
	if p.depth != 0 {
		sb.WriteString(":")
		for i := 0; i < p.depth; i++ {
			if p.Bit(i) {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	sb.WriteString(">")
	return sb.String()
}
