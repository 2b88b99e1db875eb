package keysync

import (
	"github.com/spacemeshos/go-keysync/keysync/types"
)

// pendingItem is a position queued for disclosure to the peer.
type pendingItem struct {
	pos types.Position
	// ack items are sent even if the position is already resolved, so that
	// the peer can mark it as resolved, too.
	ack bool
}

type owedKey struct {
	key types.KeyBytes
	ctx any
}

// peerCursor tracks the state of reconciliation with a single peer.
type peerCursor[P comparable] struct {
	peer P
	// resolved positions are those where the peer's digest was found to be
	// equal to the local one.
	resolved map[types.Position]struct{}
	pending  []pendingItem
	queued   map[types.Position]struct{}
	// needs holds the keys the peer has and we don't.
	needs map[string]struct{}
	// owed holds the keys we have and the peer doesn't.
	owed map[string]owedKey
	// announced holds the keys the peer was told about during the current walk.
	announced map[string]struct{}
	// changed is set when anything new is learned about the peer.
	changed bool
	// echoes counts the equal root digests received after the root was
	// resolved.
	echoes   int
	progress int
	sent     int
	received int
}

func newPeerCursor[P comparable](peer P) *peerCursor[P] {
	return &peerCursor[P]{
		peer:      peer,
		resolved:  make(map[types.Position]struct{}),
		queued:    make(map[types.Position]struct{}),
		needs:     make(map[string]struct{}),
		owed:      make(map[string]owedKey),
		announced: make(map[string]struct{}),
	}
}

func (c *peerCursor[P]) isResolved(p types.Position) bool {
	_, found := c.resolved[p]
	return found
}

// resolve marks the position as resolved, returning true if it wasn't
// resolved before.
func (c *peerCursor[P]) resolve(p types.Position) bool {
	if c.isResolved(p) {
		return false
	}
	c.resolved[p] = struct{}{}
	c.changed = true
	return true
}

func (c *peerCursor[P]) unresolve(p types.Position) {
	delete(c.resolved, p)
	if p.IsRoot() {
		c.echoes = 0
	}
}

// echo registers an equal root digest received while the root is already
// resolved. It returns true on every second one, as a peer that keeps sending
// the root must have missed the acknowledgement.
func (c *peerCursor[P]) echo() bool {
	c.echoes++
	return c.echoes%2 == 0
}

// invalidate drops the resolved positions along the path of a newly added key.
func (c *peerCursor[P]) invalidate(k types.KeyBytes, maxDepth int) {
	if len(c.resolved) < maxDepth {
		for p := range c.resolved {
			if p.Contains(k) {
				delete(c.resolved, p)
			}
		}
	} else {
		for depth := 0; depth <= maxDepth; depth++ {
			delete(c.resolved, types.PrefixOf(k, depth))
		}
	}
	delete(c.needs, string(k))
	c.echoes = 0
	c.changed = true
}

// enqueue queues the position for disclosure, returning false if it's
// already queued.
func (c *peerCursor[P]) enqueue(p types.Position, ack bool) bool {
	if _, found := c.queued[p]; found {
		if ack {
			for n := range c.pending {
				if c.pending[n].pos == p {
					c.pending[n].ack = true
				}
			}
		}
		return false
	}
	c.queued[p] = struct{}{}
	c.pending = append(c.pending, pendingItem{pos: p, ack: ack})
	return true
}

// expand queues a position to be sent in reply to a mismatch. Newly queued
// positions count as progress.
func (c *peerCursor[P]) expand(p types.Position) {
	if c.enqueue(p, false) {
		c.changed = true
	}
}

func (c *peerCursor[P]) peek() (pendingItem, bool) {
	if len(c.pending) == 0 {
		return pendingItem{}, false
	}
	return c.pending[0], true
}

func (c *peerCursor[P]) pop() {
	delete(c.queued, c.pending[0].pos)
	c.pending[0] = pendingItem{}
	c.pending = c.pending[1:]
	if len(c.pending) == 0 {
		c.pending = nil
	}
}

func (c *peerCursor[P]) hasPending() bool {
	return len(c.pending) != 0
}

// need registers a key the peer has and we don't, returning true if it's new.
func (c *peerCursor[P]) need(k types.KeyBytes) bool {
	if _, found := c.needs[string(k)]; found {
		return false
	}
	c.needs[string(k)] = struct{}{}
	c.changed = true
	return true
}

// owe registers a key the peer is missing, returning true if it's new.
func (c *peerCursor[P]) owe(k types.KeyBytes, ctx any) bool {
	if _, found := c.owed[string(k)]; found {
		return false
	}
	c.owed[string(k)] = owedKey{key: k, ctx: ctx}
	c.changed = true
	return true
}

// settle drops an owed key, returning its context if it was owed.
func (c *peerCursor[P]) settle(k types.KeyBytes) (owedKey, bool) {
	ok, found := c.owed[string(k)]
	if !found {
		return owedKey{}, false
	}
	delete(c.owed, string(k))
	c.changed = true
	return ok, true
}

// settleUnder drops all the owed keys under the position and returns them.
func (c *peerCursor[P]) settleUnder(p types.Position) []owedKey {
	var r []owedKey
	for s, ok := range c.owed {
		if p.Contains(ok.key) {
			r = append(r, ok)
			delete(c.owed, s)
		}
	}
	if len(r) != 0 {
		c.changed = true
	}
	return r
}

// announce marks the key as announced to the peer during the current walk,
// returning false if it already was.
func (c *peerCursor[P]) announce(k types.KeyBytes) bool {
	if _, found := c.announced[string(k)]; found {
		return false
	}
	c.announced[string(k)] = struct{}{}
	return true
}

func (c *peerCursor[P]) startWalk() {
	clear(c.announced)
}

// tick updates the progress counter after a message has been built.
// Messages which only repeat the root digest, as well as empty ones, count
// as no progress unless something new was learned about the peer since the
// previous message. Resolutions, expansions and disclosures reset the
// counter. Messages that drain the pending queue otherwise leave it as is.
func (c *peerCursor[P]) tick(drained bool) {
	switch {
	case c.changed:
		c.progress = 0
		c.changed = false
	case !drained:
		c.progress++
	}
}

func (c *peerCursor[P]) stats() PeerStats[P] {
	return PeerStats[P]{
		Peer:             c.peer,
		SendCount:        len(c.owed),
		RecvCount:        len(c.needs),
		Progress:         c.progress,
		Resolved:         len(c.resolved),
		Pending:          len(c.pending),
		SentMessages:     c.sent,
		ReceivedMessages: c.received,
	}
}
