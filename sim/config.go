package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/spacemeshos/go-keysync/keysync/types"
)

// Config is the simulation configuration.
type Config struct {
	// Peers is the number of simulated peers.
	Peers int `mapstructure:"peers"`
	// CommonKeys is the number of keys every peer starts with.
	CommonKeys int `mapstructure:"common-keys"`
	// UniqueKeys is the number of keys only a single peer starts with, per
	// peer. If there are fewer values than peers, the last one is used for
	// the remaining peers.
	UniqueKeys []int `mapstructure:"unique-keys"`
	// KeyLen is the key length in bytes.
	KeyLen int `mapstructure:"key-len"`
	// MessageSize is the size of the message buffer in bytes.
	MessageSize int `mapstructure:"message-size"`
	// TransferDelay is the number of packets sent before a key transfer
	// requested by a peer completes.
	TransferDelay int `mapstructure:"transfer-delay"`
	// StallThreshold is the engine progress value which is considered a stall.
	StallThreshold int `mapstructure:"stall-threshold"`
	// DropRate is the probability of a message not reaching a peer.
	DropRate float64 `mapstructure:"drop-rate"`
	// Seed makes key generation and message loss deterministic. Zero means
	// random keys.
	Seed uint64 `mapstructure:"seed"`
	// MaxPackets limits the number of packets sent in a single trial.
	MaxPackets int `mapstructure:"max-packets"`
	// RoundInterval is the delay between consecutive packets.
	RoundInterval time.Duration `mapstructure:"round-interval"`
	// Trials is the number of independent simulations to run.
	Trials int `mapstructure:"trials"`
	// Parallel is the number of trials run concurrently.
	Parallel int `mapstructure:"parallel"`
}

// DefaultConfig returns the default simulation configuration.
func DefaultConfig() Config {
	return Config{
		Peers:          2,
		CommonKeys:     100,
		UniqueKeys:     []int{10},
		KeyLen:         types.DefaultKeyLen,
		MessageSize:    200,
		TransferDelay:  10,
		StallThreshold: 50,
		MaxPackets:     100000,
		Trials:         1,
		Parallel:       4,
	}
}

// ErrBadConfig is returned for invalid simulation configurations.
var ErrBadConfig = errors.New("bad simulation config")

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Peers < 1:
		return fmt.Errorf("%w: need at least 1 peer", ErrBadConfig)
	case cfg.KeyLen < 1 || cfg.KeyLen > types.MaxKeyLen:
		return fmt.Errorf("%w: bad key length %d", ErrBadConfig, cfg.KeyLen)
	case cfg.MessageSize < 6+2*cfg.KeyLen:
		return fmt.Errorf("%w: message size %d can't hold a single entry", ErrBadConfig, cfg.MessageSize)
	case cfg.CommonKeys < 0 || cfg.TransferDelay < 0 || cfg.StallThreshold < 1:
		return fmt.Errorf("%w: negative counts", ErrBadConfig)
	case cfg.DropRate < 0 || cfg.DropRate >= 1:
		return fmt.Errorf("%w: drop rate must be in [0, 1)", ErrBadConfig)
	case cfg.MaxPackets < 1:
		return fmt.Errorf("%w: max packets must be positive", ErrBadConfig)
	case cfg.Trials < 1 || cfg.Parallel < 1:
		return fmt.Errorf("%w: trials and parallel must be positive", ErrBadConfig)
	}
	for _, n := range cfg.UniqueKeys {
		if n < 0 {
			return fmt.Errorf("%w: negative unique key count", ErrBadConfig)
		}
	}
	return nil
}

// uniqueKeys returns the number of unique keys for the peer.
func (cfg *Config) uniqueKeys(peer int) int {
	switch {
	case len(cfg.UniqueKeys) == 0:
		return 0
	case peer < len(cfg.UniqueKeys):
		return cfg.UniqueKeys[peer]
	default:
		return cfg.UniqueKeys[len(cfg.UniqueKeys)-1]
	}
}
