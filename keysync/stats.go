package keysync

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Stats holds the engine-wide counters.
type Stats struct {
	// KeyCount is the number of keys in the local set.
	KeyCount int
	// SentMessages is the number of non-empty messages built.
	SentMessages int
	// SentRoot is the number of built messages that carried the root digest.
	SentRoot int
	// SentRecordCount is the total number of entries in the built messages.
	SentRecordCount int
	// ReceivedRecordCount is the total number of entries received.
	ReceivedRecordCount int
	// ReceivedUninteresting is the number of received entries which matched
	// the local digests.
	ReceivedUninteresting int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("keyCount", s.KeyCount)
	enc.AddInt("sentMessages", s.SentMessages)
	enc.AddInt("sentRoot", s.SentRoot)
	enc.AddInt("sentRecordCount", s.SentRecordCount)
	enc.AddInt("receivedRecordCount", s.ReceivedRecordCount)
	enc.AddInt("receivedUninteresting", s.ReceivedUninteresting)
	return nil
}

// PeerStats holds the per-peer counters.
type PeerStats[P comparable] struct {
	Peer P
	// SendCount is the number of local keys the peer is known to be missing.
	SendCount int
	// RecvCount is the number of the peer's keys known to be missing locally.
	RecvCount int
	// Progress is the number of built messages that brought nothing new since
	// anything new was learned about the peer.
	Progress int
	// Resolved is the number of positions known to be equal on both sides.
	Resolved int
	// Pending is the number of positions queued for disclosure.
	Pending          int
	SentMessages     int
	ReceivedMessages int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s PeerStats[P]) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("peer", fmt.Sprint(s.Peer))
	enc.AddInt("sendCount", s.SendCount)
	enc.AddInt("recvCount", s.RecvCount)
	enc.AddInt("progress", s.Progress)
	enc.AddInt("resolved", s.Resolved)
	enc.AddInt("pending", s.Pending)
	enc.AddInt("sentMessages", s.SentMessages)
	enc.AddInt("receivedMessages", s.ReceivedMessages)
	return nil
}
