// Package wire defines the message format of the key set reconciliation
// protocol.
//
// A message is a sequence of fixed-size entries with no header. Each entry
// carries a position in the key space and the digest of the sender's keys
// under that position, with integers encoded as big-endian:
//
//	depth    : 2 bytes
//	prefix   : KeyLen bytes, position bits padded with zeroes
//	count    : 4 bytes
//	combined : KeyLen bytes
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-keysync/codec"
	"github.com/spacemeshos/go-keysync/keysync/types"
)

var (
	// ErrTruncated is returned for messages which don't consist of whole entries.
	ErrTruncated = errors.New("truncated message")
	// ErrInvalidEntry is returned for entries that can't be produced by a valid
	// digest tree.
	ErrInvalidEntry = errors.New("invalid entry")
)

// EntrySize returns the size of an encoded entry for keys of keyLen bytes.
func EntrySize(keyLen int) int {
	return 6 + 2*keyLen
}

// Entry is a single (position, digest) pair.
type Entry struct {
	Position types.Position
	Digest   types.Digest
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return fmt.Sprintf("%s=%s", e.Position, e.Digest)
}

// rawEntry is the on-wire representation of an Entry.
type rawEntry struct {
	depth    [2]byte
	prefix   []byte
	count    [4]byte
	combined []byte
}

func newRawEntry(keyLen int) *rawEntry {
	return &rawEntry{
		prefix:   make([]byte, keyLen),
		combined: make([]byte, keyLen),
	}
}

func (r *rawEntry) fromEntry(e Entry, keyLen int) {
	binary.BigEndian.PutUint16(r.depth[:], uint16(e.Position.Depth()))
	r.prefix = e.Position.Bytes(keyLen)
	binary.BigEndian.PutUint32(r.count[:], e.Digest.Count)
	if e.Digest.Count == 0 {
		clear(r.combined)
	} else {
		copy(r.combined, e.Digest.Combined)
	}
}

func (r *rawEntry) toEntry(keyLen int) (Entry, error) {
	depth := int(binary.BigEndian.Uint16(r.depth[:]))
	if depth > keyLen*8 {
		return Entry{}, fmt.Errorf("%w: depth %d", ErrInvalidEntry, depth)
	}
	pos, err := types.PositionFromBytes(r.prefix, depth)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	d := types.Digest{
		Count:    binary.BigEndian.Uint32(r.count[:]),
		Combined: types.KeyBytes(bytes.Clone(r.combined)),
	}
	switch {
	case d.Count == 0 && !d.Combined.IsZero():
		return Entry{}, fmt.Errorf("%w: empty digest at %s with non-zero value", ErrInvalidEntry, pos)
	case d.Count == 1 && !pos.Contains(d.Combined):
		return Entry{}, fmt.Errorf("%w: key %s is outside %s", ErrInvalidEntry, d.Combined, pos)
	case d.Count > 1 && depth == keyLen*8:
		return Entry{}, fmt.Errorf("%w: %d keys at full key depth", ErrInvalidEntry, d.Count)
	}
	return Entry{Position: pos, Digest: d}, nil
}

// EncodeScale implements scale.Encodable.
func (r *rawEntry) EncodeScale(e *scale.Encoder) (int, error) {
	total := 0
	for _, b := range [][]byte{r.depth[:], r.prefix, r.count[:], r.combined} {
		n, err := scale.EncodeByteArray(e, b)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (r *rawEntry) DecodeScale(d *scale.Decoder) (int, error) {
	total := 0
	for _, b := range [][]byte{r.depth[:], r.prefix, r.count[:], r.combined} {
		n, err := scale.DecodeByteArray(d, b)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Encoder writes entries to a caller-provided buffer, never exceeding its
// size and never writing partial entries.
type Encoder struct {
	keyLen int
	w      *codec.FixedWriter
	raw    *rawEntry
	count  int
}

// NewEncoder creates an Encoder writing to buf.
func NewEncoder(buf []byte, keyLen int) *Encoder {
	return &Encoder{
		keyLen: keyLen,
		w:      codec.NewFixedWriter(buf),
		raw:    newRawEntry(keyLen),
	}
}

// Room returns the number of entries that still fit in the buffer.
func (enc *Encoder) Room() int {
	return enc.w.Available() / EntrySize(enc.keyLen)
}

// Append adds an entry to the buffer. It returns false if there's no room
// left for the entry.
func (enc *Encoder) Append(e Entry) (bool, error) {
	if enc.Room() == 0 {
		return false, nil
	}
	if e.Digest.Count != 0 && len(e.Digest.Combined) != enc.keyLen {
		return false, fmt.Errorf("%w: digest value", types.ErrBadKeyLength)
	}
	enc.raw.fromEntry(e, enc.keyLen)
	if _, err := codec.EncodeTo(enc.w, enc.raw); err != nil {
		return false, err
	}
	enc.count++
	return true, nil
}

// Count returns the number of entries written.
func (enc *Encoder) Count() int {
	return enc.count
}

// Len returns the number of bytes written.
func (enc *Encoder) Len() int {
	return enc.w.Len()
}

// EncodeEntries writes as many of the entries as fit into buf, returning the
// number of bytes written.
func EncodeEntries(buf []byte, keyLen int, entries []Entry) (int, error) {
	enc := NewEncoder(buf, keyLen)
	for _, e := range entries {
		ok, err := enc.Append(e)
		if err != nil {
			return enc.Len(), err
		}
		if !ok {
			break
		}
	}
	return enc.Len(), nil
}

// DecodeEntries decodes and validates all the entries in msg.
// Either all the entries are returned or an error is, so that a malformed
// message is never partially applied.
func DecodeEntries(msg []byte, keyLen int) ([]Entry, error) {
	size := EntrySize(keyLen)
	if len(msg)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of entry size %d", ErrTruncated, len(msg), size)
	}
	entries := make([]Entry, 0, len(msg)/size)
	raw := newRawEntry(keyLen)
	r := bytes.NewReader(msg)
	for r.Len() != 0 {
		if _, err := codec.DecodeFrom(r, raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		e, err := raw.toEntry(keyLen)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
