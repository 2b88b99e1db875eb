// Package sim runs simulated key set reconciliation between a number of
// peers sharing a lossy broadcast medium. Each message built by a peer is
// delivered to every other peer, keys found missing on a peer are
// transferred to it after a delay, and the simulation ends when all the
// peers hold the same keys.
package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-keysync/hash"
	"github.com/spacemeshos/go-keysync/keysync"
	"github.com/spacemeshos/go-keysync/keysync/types"
)

var (
	// ErrStalled is returned when the peers stop making progress before
	// reaching agreement.
	ErrStalled = errors.New("reconciliation stalled")
	// ErrContract is returned when the engine reports a key difference which
	// doesn't match the actual state of the peers.
	ErrContract = errors.New("bad key difference reported")
)

// Opt specifies an option for a Simulation.
type Opt func(s *Simulation)

// WithLogger specifies the logger for the Simulation.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Simulation) {
		s.logger = logger
	}
}

// WithKeySource specifies the source of the generated keys.
func WithKeySource(ks KeySource) Opt {
	return func(s *Simulation) {
		s.keys = ks
	}
}

func withClock(clock clockwork.Clock) Opt {
	return func(s *Simulation) {
		s.clock = clock
	}
}

type peer struct {
	id     int
	engine *keysync.Engine[int]
}

type transfer struct {
	due  int
	from int
	to   int
	key  types.KeyBytes
}

type transferKey struct {
	to  int
	key string
}

// Simulation is a single reconciliation run.
type Simulation struct {
	id        uuid.UUID
	cfg       Config
	logger    *zap.Logger
	clock     clockwork.Clock
	keys      KeySource
	rng       *rand.Rand
	peers     []*peer
	transfers []transfer
	scheduled map[transferKey]struct{}
	packets   int
	dropped   int
	delivered int
	events    [3]int
	err       error
}

// New creates a new Simulation.
func New(cfg Config, opts ...Opt) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		id:        uuid.New(),
		cfg:       cfg,
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		scheduled: make(map[transferKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if s.keys == nil {
		if cfg.Seed != 0 {
			s.keys = NewSeededKeys(cfg.Seed, cfg.KeyLen)
		} else {
			s.keys = RandomKeys{KeyLen: cfg.KeyLen}
		}
	}
	s.logger = s.logger.With(zap.Stringer("run", s.id))
	for n := range cfg.Peers {
		s.peers = append(s.peers, &peer{
			id: n,
			engine: keysync.New(
				keysync.HandlerFunc[int](func(ev keysync.Event[int]) { s.handleEvent(n, ev) }),
				keysync.WithKeyLen(cfg.KeyLen),
				keysync.WithLogger(s.logger),
				keysync.WithName(fmt.Sprintf("peer%d", n)),
			),
		})
	}
	if err := s.populate(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// ID returns the unique identifier of the run.
func (s *Simulation) ID() uuid.UUID {
	return s.id
}

func (s *Simulation) populate() error {
	for range s.cfg.CommonKeys {
		k := s.keys.Next()
		for _, p := range s.peers {
			if err := p.engine.Add(k, p.id); err != nil {
				return fmt.Errorf("add common key: %w", err)
			}
		}
	}
	for _, p := range s.peers {
		for range s.cfg.uniqueKeys(p.id) {
			k := s.keys.Next()
			if err := p.engine.Add(k, p.id); err != nil {
				return fmt.Errorf("add unique key: %w", err)
			}
			s.logger.Debug("unique key", zap.Int("peer", p.id), zap.Stringer("key", k))
		}
	}
	return nil
}

// handleEvent checks the reported key difference against the actual peer
// state and schedules transfers of the keys missing on the peers.
func (s *Simulation) handleEvent(self int, ev keysync.Event[int]) {
	s.events[ev.Kind]++
	local := s.peers[self].engine.Has(ev.Key)
	remote := s.peers[ev.Peer].engine.Has(ev.Key)
	var ok bool
	switch ev.Kind {
	case keysync.PeerHas:
		ok = !local && remote
	case keysync.PeerDoesNotHave:
		ok = local && !remote
		if ok {
			s.schedule(self, ev.Peer, ev.Key)
		}
	case keysync.PeerNowHas:
		ok = local && remote
	}
	if !ok && s.err == nil {
		s.err = fmt.Errorf("%w: %s from %d to %d for key %s (local %v remote %v)",
			ErrContract, ev.Kind, ev.Peer, self, ev.Key, local, remote)
	}
}

func (s *Simulation) schedule(from, to int, k types.KeyBytes) {
	tk := transferKey{to: to, key: string(k)}
	if _, found := s.scheduled[tk]; found {
		return
	}
	s.scheduled[tk] = struct{}{}
	s.transfers = append(s.transfers, transfer{
		due:  s.packets + s.cfg.TransferDelay,
		from: from,
		to:   to,
		key:  k,
	})
	transfersInFlight.Inc()
}

// completeTransfers adds the keys from the transfers which are due.
// Transfers are scheduled in the order of their due time.
func (s *Simulation) completeTransfers() error {
	n := 0
	for _, t := range s.transfers {
		if t.due > s.packets {
			break
		}
		n++
		delete(s.scheduled, transferKey{to: t.to, key: string(t.key)})
		if err := s.peers[t.to].engine.Add(t.key, t.from); err != nil {
			return fmt.Errorf("transfer key: %w", err)
		}
		s.logger.Debug("transfer complete",
			zap.Int("from", t.from),
			zap.Int("to", t.to),
			zap.Stringer("key", t.key))
	}
	s.transfers = s.transfers[n:]
	transfersInFlight.Sub(float64(n))
	return nil
}

// Converged returns true if all the peers hold the same keys, no transfers
// are in progress and no peer has outstanding key differences with the
// others.
func (s *Simulation) Converged() bool {
	if len(s.transfers) != 0 {
		return false
	}
	root := s.peers[0].engine.RootDigest()
	for _, p := range s.peers[1:] {
		if !p.engine.RootDigest().Equal(root) {
			return false
		}
	}
	for _, p := range s.peers {
		for _, ps := range p.engine.Peers() {
			if ps.SendCount != 0 || ps.RecvCount != 0 {
				return false
			}
		}
	}
	return true
}

func (s *Simulation) broadcast(from *peer, msg []byte) error {
	for _, p := range s.peers {
		if p == from {
			continue
		}
		if s.cfg.DropRate > 0 && s.rng.Float64() < s.cfg.DropRate {
			s.dropped++
			continue
		}
		s.delivered++
		if err := p.engine.RecvMessage(from.id, msg); err != nil {
			return fmt.Errorf("peer %d receiving from %d: %w", p.id, from.id, err)
		}
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

// step lets a single peer send a message, then completes due transfers.
func (s *Simulation) step(p *peer, buf []byte) error {
	n := p.engine.BuildMessage(buf)
	s.packets++
	if n != 0 {
		if err := s.broadcast(p, buf[:n]); err != nil {
			return err
		}
	}
	return s.completeTransfers()
}

// Run runs the simulation until the peers converge, stall or the context is
// canceled.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	start := s.clock.Now()
	buf := make([]byte, s.cfg.MessageSize)
	err := s.run(ctx, buf)
	r := s.report(s.clock.Since(start))
	if err != nil {
		r.Error = err.Error()
		simulationCount.WithLabelValues("failed").Inc()
		s.logger.Warn("simulation failed", zap.Error(err), zap.Object("report", r))
		return r, err
	}
	simulationCount.WithLabelValues("converged").Inc()
	packetsToConverge.Observe(float64(s.packets))
	s.logger.Info("simulation complete", zap.Object("report", r))
	return r, nil
}

func (s *Simulation) run(ctx context.Context, buf []byte) error {
	for {
		for _, p := range s.peers {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.Converged() {
				return nil
			}
			if progress := p.engine.Progress(); progress > s.cfg.StallThreshold {
				return fmt.Errorf("%w: peer %d made no progress for %d messages",
					ErrStalled, p.id, progress)
			}
			if s.packets >= s.cfg.MaxPackets {
				return fmt.Errorf("%w: packet limit %d reached", ErrStalled, s.cfg.MaxPackets)
			}
			if err := s.step(p, buf); err != nil {
				return err
			}
			if s.cfg.RoundInterval > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-s.clock.After(s.cfg.RoundInterval):
				}
			}
		}
	}
}

// Release frees the resources held by the peers.
func (s *Simulation) Release() {
	transfersInFlight.Sub(float64(len(s.transfers)))
	s.transfers = nil
	for _, p := range s.peers {
		p.engine.Release()
	}
}

// trialSeed derives the seed of a trial from the base seed.
func trialSeed(seed uint64, trial int) uint64 {
	if seed == 0 {
		return 0
	}
	var b [16]byte
	binary.BigEndian.PutUint64(b[:], seed)
	binary.BigEndian.PutUint64(b[8:], uint64(trial))
	h := hash.Sum(b[:])
	return binary.BigEndian.Uint64(h[:]) | 1
}
