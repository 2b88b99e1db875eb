package keysync

import (
	"github.com/spacemeshos/go-keysync/keysync/types"
)

//go:generate mockgen -typed -package=keysync -destination=./mocks.go -source=./interface.go

// EventKind specifies the kind of key difference found during reconciliation.
type EventKind int

const (
	// PeerHas means that the peer has a key which is missing locally.
	PeerHas EventKind = iota
	// PeerDoesNotHave means that a local key is missing on the peer.
	PeerDoesNotHave
	// PeerNowHas means that the peer has received a key it was previously
	// found to be missing.
	PeerNowHas
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case PeerHas:
		return "peer-has"
	case PeerDoesNotHave:
		return "peer-does-not-have"
	case PeerNowHas:
		return "peer-now-has"
	default:
		return "unknown"
	}
}

// Event describes a key difference with a peer.
type Event[P comparable] struct {
	Kind EventKind
	// Peer is the handle of the peer that sent the message which revealed the
	// difference.
	Peer P
	// Key is the key that differs.
	Key types.KeyBytes
	// KeyContext is the application context of the local key. It's nil for
	// PeerHas events.
	KeyContext any
}

// Handler receives key difference events.
// HandleEvent is invoked synchronously from Engine methods. It may look up
// keys with Engine.Has but must not add keys or exchange messages.
type Handler[P comparable] interface {
	HandleEvent(ev Event[P])
}

// HandlerFunc is a function that implements Handler.
type HandlerFunc[P comparable] func(ev Event[P])

// HandleEvent implements Handler.
func (f HandlerFunc[P]) HandleEvent(ev Event[P]) {
	f(ev)
}
