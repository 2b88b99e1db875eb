// Package keysync implements anti-entropy reconciliation of key sets.
//
// Each peer keeps its keys in a digest tree and exchanges small messages
// carrying (position, digest) entries with other peers. Equal digests prune
// whole subtrees, differing aggregate digests are expanded into their
// children, and digests of single keys disclose the keys themselves. Key
// differences found along the way are reported to the application via a
// Handler, which is expected to transfer the missing keys by other means.
package keysync

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-keysync/keysync/digesttree"
	"github.com/spacemeshos/go-keysync/keysync/types"
	"github.com/spacemeshos/go-keysync/keysync/wire"
)

// ErrMalformed is returned for messages that can't be decoded or validated.
var ErrMalformed = errors.New("malformed message")

type options struct {
	keyLen int
	logger *zap.Logger
	name   string
}

// Option specifies an option for an Engine.
type Option func(*options)

// WithKeyLen sets the key length in bytes.
// All the engines that exchange messages must use the same key length.
func WithKeyLen(keyLen int) Option {
	return func(o *options) {
		o.keyLen = keyLen
	}
}

// WithLogger specifies the logger for the Engine.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithName sets the name of the engine used in the logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Engine reconciles the local key set with the key sets of any number of
// peers. P is the type of the peer handles used by the application.
// Engine is not safe for concurrent use.
type Engine[P comparable] struct {
	logger     *zap.Logger
	keyLen     int
	tree       *digesttree.Tree
	handler    Handler[P]
	cursors    []*peerCursor[P]
	byPeer     map[P]*peerCursor[P]
	next       int
	idleBuilds int
	stats      Stats
	events     []Event[P]
	released   bool
}

// New creates a new Engine that reports key differences to the handler.
func New[P comparable](h Handler[P], opts ...Option) *Engine[P] {
	o := options{
		keyLen: types.DefaultKeyLen,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if o.name != "" {
		logger = logger.Named(o.name)
	}
	return &Engine[P]{
		logger:  logger,
		keyLen:  o.keyLen,
		tree:    digesttree.New(o.keyLen),
		handler: h,
		byPeer:  make(map[P]*peerCursor[P]),
	}
}

func (e *Engine[P]) ensureLive() {
	if e.released {
		panic("BUG: using a released engine")
	}
}

// KeyLen returns the key length in bytes.
func (e *Engine[P]) KeyLen() int {
	return e.keyLen
}

// EntrySize returns the size of a message entry in bytes.
func (e *Engine[P]) EntrySize() int {
	return wire.EntrySize(e.keyLen)
}

// Add adds a key with the associated application context to the local set.
// Adding a key that is already present is a no-op.
func (e *Engine[P]) Add(k types.KeyBytes, keyCtx any) error {
	e.ensureLive()
	added, err := e.tree.Insert(k, keyCtx)
	if err != nil {
		return fmt.Errorf("add key: %w", err)
	}
	if !added {
		return nil
	}
	e.stats.KeyCount++
	addedKeyCount.Inc()
	for _, c := range e.cursors {
		c.invalidate(k, e.tree.MaxDepth())
	}
	e.logger.Debug("key added", zap.Stringer("key", k))
	return nil
}

// Has returns true if the key is present in the local set.
func (e *Engine[P]) Has(k types.KeyBytes) bool {
	e.ensureLive()
	return e.tree.Has(k)
}

// RootDigest returns the digest of the whole local set.
func (e *Engine[P]) RootDigest() types.Digest {
	e.ensureLive()
	return e.tree.Root()
}

func (e *Engine[P]) cursor(peer P) *peerCursor[P] {
	c, found := e.byPeer[peer]
	if !found {
		c = newPeerCursor(peer)
		e.byPeer[peer] = c
		e.cursors = append(e.cursors, c)
		e.logger.Debug("new peer", zap.Any("peer", peer))
	}
	return c
}

// pickCursor chooses the peer to build the next message for, going round-robin
// over the peers and preferring those with positions pending disclosure.
func (e *Engine[P]) pickCursor() *peerCursor[P] {
	n := len(e.cursors)
	root := types.RootPosition()
	for _, pendingOnly := range []bool{true, false} {
		for i := range n {
			idx := (e.next + i) % n
			c := e.cursors[idx]
			if (pendingOnly && c.hasPending()) || (!pendingOnly && !c.isResolved(root)) {
				e.next = (idx + 1) % n
				return c
			}
		}
	}
	return nil
}

// BuildMessage builds the next message into buf and returns its length.
// The message is meant to be broadcast: it's built for the next peer in
// turn, but its contents are valid for any peer. Before any peer is known,
// the message carries the root digest. No partial entries are ever written;
// if buf can't hold a single entry, 0 is returned and the engine state is
// not changed.
func (e *Engine[P]) BuildMessage(buf []byte) int {
	e.ensureLive()
	if len(buf) < e.EntrySize() {
		return 0
	}
	if len(e.cursors) == 0 {
		e.idleBuilds++
		enc := wire.NewEncoder(buf, e.keyLen)
		e.appendEntry(enc, types.RootPosition())
		e.account(enc, true)
		return enc.Len()
	}
	c := e.pickCursor()
	if c == nil {
		for _, c := range e.cursors {
			c.tick(false)
		}
		return 0
	}
	return e.build(c, buf)
}

// BuildMessageTo builds the next message for the specified peer into buf and
// returns its length.
func (e *Engine[P]) BuildMessageTo(peer P, buf []byte) int {
	e.ensureLive()
	if len(buf) < e.EntrySize() {
		return 0
	}
	return e.build(e.cursor(peer), buf)
}

func (e *Engine[P]) appendEntry(enc *wire.Encoder, p types.Position) bool {
	ok, err := enc.Append(wire.Entry{Position: p, Digest: e.tree.DigestAt(p)})
	if err != nil {
		panic("BUG: error encoding entry: " + err.Error())
	}
	return ok
}

func (e *Engine[P]) build(c *peerCursor[P], buf []byte) int {
	enc := wire.NewEncoder(buf, e.keyLen)
	sentRoot := false
	drained := false
	for enc.Room() > 0 {
		item, ok := c.peek()
		if !ok {
			break
		}
		if item.ack || !c.isResolved(item.pos) {
			if !e.appendEntry(enc, item.pos) {
				break
			}
			sentRoot = sentRoot || item.pos.IsRoot()
			drained = true
		}
		c.pop()
	}
	root := types.RootPosition()
	if enc.Count() == 0 && !c.isResolved(root) {
		// nothing else to disclose, start a new walk from the root
		c.startWalk()
		e.appendEntry(enc, root)
		sentRoot = true
	}
	c.tick(drained)
	if enc.Count() != 0 {
		c.sent++
	}
	e.account(enc, sentRoot)
	e.logger.Debug("built message",
		zap.Any("peer", c.peer),
		zap.Int("entries", enc.Count()),
		zap.Bool("root", sentRoot),
		zap.Int("pending", len(c.pending)),
		zap.Int("progress", c.progress))
	return enc.Len()
}

func (e *Engine[P]) account(enc *wire.Encoder, sentRoot bool) {
	// nothing goes on the wire for empty builds, so they aren't counted as
	// sent messages
	if enc.Count() == 0 {
		return
	}
	e.stats.SentMessages++
	if sentRoot {
		e.stats.SentRoot++
	}
	e.stats.SentRecordCount += enc.Count()
	sentEntryCount.Add(float64(enc.Count()))
	messageEntries.Observe(float64(enc.Count()))
}

// RecvMessage processes a message received from the peer.
// Malformed messages are rejected with an error wrapping ErrMalformed
// without changing the engine state.
func (e *Engine[P]) RecvMessage(peer P, msg []byte) error {
	e.ensureLive()
	entries, err := wire.DecodeEntries(msg, e.keyLen)
	if err != nil {
		malformedCount.Inc()
		e.logger.Debug("malformed message", zap.Any("peer", peer), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	c := e.cursor(peer)
	c.received++
	for _, entry := range entries {
		e.handleEntry(c, entry)
	}
	e.flushEvents()
	return nil
}

func (e *Engine[P]) handleEntry(c *peerCursor[P], entry wire.Entry) {
	e.stats.ReceivedRecordCount++
	p := entry.Position
	remote := entry.Digest
	local := e.tree.DigestAt(p)
	if local.Equal(remote) {
		e.stats.ReceivedUninteresting++
		receivedEqualCount.Inc()
		switch {
		case !p.IsRoot():
			c.resolve(p)
		case c.resolve(p):
			// let the peer know the sets are equal
			c.enqueue(p, true)
		case c.echo():
			// the acknowledgement was lost, repeat it
			c.enqueue(p, true)
		}
		for _, ok := range c.settleUnder(p) {
			e.emit(PeerNowHas, c.peer, ok.key, ok.ctx)
		}
		return
	}
	receivedDiffCount.Inc()
	c.unresolve(p)
	e.logger.Debug("digest mismatch",
		zap.Any("peer", c.peer),
		zap.Stringer("pos", p),
		zap.Object("local", local),
		zap.Object("remote", remote))
	switch {
	case remote.Count == 0:
		e.disclose(c, p, nil)
	case remote.Count == 1:
		k := remote.Combined
		if e.tree.Has(k) {
			if ok, found := c.settle(k); found {
				e.emit(PeerNowHas, c.peer, ok.key, ok.ctx)
			}
		} else {
			if c.need(k) {
				e.emit(PeerHas, c.peer, k, nil)
			}
			if c.announce(k) {
				// show the peer that the key is missing here
				c.expand(e.tree.Slot(k, p))
			}
		}
		e.disclose(c, p, k)
	case local.Count > 1:
		c.expand(p.Child(false))
		c.expand(p.Child(true))
	default:
		// the remote side has more keys under p, but it can only tell
		// which ones after seeing the local digest
		c.expand(p)
	}
}

// disclose handles the local keys under the position, except the specified
// one, which are known to be missing on the peer.
func (e *Engine[P]) disclose(c *peerCursor[P], p types.Position, except types.KeyBytes) {
	e.tree.Leaves(p, func(pos types.Position, k types.KeyBytes, ctx any) bool {
		if except != nil && k.Equal(except) {
			return true
		}
		if c.owe(k, ctx) {
			e.emit(PeerDoesNotHave, c.peer, k, ctx)
		}
		if c.announce(k) {
			c.expand(pos)
		}
		return true
	})
}

func (e *Engine[P]) emit(kind EventKind, peer P, k types.KeyBytes, ctx any) {
	e.events = append(e.events, Event[P]{
		Kind:       kind,
		Peer:       peer,
		Key:        k.Clone(),
		KeyContext: ctx,
	})
}

func (e *Engine[P]) flushEvents() {
	events := e.events
	e.events = nil
	for _, ev := range events {
		countEvent(ev.Kind)
		e.logger.Debug("key difference",
			zap.Stringer("kind", ev.Kind),
			zap.Any("peer", ev.Peer),
			zap.Stringer("key", ev.Key))
		if e.handler != nil {
			e.handler.HandleEvent(ev)
		}
	}
}

// Stats returns the engine-wide counters.
func (e *Engine[P]) Stats() Stats {
	return e.stats
}

// Peers returns the counters of all the known peers in the order they were
// first seen.
func (e *Engine[P]) Peers() []PeerStats[P] {
	r := make([]PeerStats[P], len(e.cursors))
	for n, c := range e.cursors {
		r[n] = c.stats()
	}
	return r
}

// PeerStats returns the counters of the specified peer.
func (e *Engine[P]) PeerStats(peer P) (PeerStats[P], bool) {
	c, found := e.byPeer[peer]
	if !found {
		return PeerStats[P]{}, false
	}
	return c.stats(), true
}

// Progress returns the number of consecutive built messages that only
// repeated the root digest or were empty while nothing new was learned about
// the peer, taking the minimum over all the peers. It grows steadily once
// reconciliation has stalled or completed. Before any peer is known, it
// returns the number of messages built so far.
func (e *Engine[P]) Progress() int {
	if len(e.cursors) == 0 {
		return e.idleBuilds
	}
	p := e.cursors[0].progress
	for _, c := range e.cursors[1:] {
		p = min(p, c.progress)
	}
	return p
}

// Release frees the resources held by the engine.
// The engine can't be used after Release.
func (e *Engine[P]) Release() {
	if e.released {
		return
	}
	e.tree.Release()
	e.cursors = nil
	e.byPeer = nil
	e.events = nil
	e.released = true
}
