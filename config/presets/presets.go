// Package presets contains named keysync-sim configurations which are used
// instead of the defaults when selected with --preset.
package presets

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spacemeshos/go-keysync/config"
)

var presets = map[string]config.Config{}

func init() {
	register("small", small())
	register("lossy", lossy())
	register("large", large())
	register("paced", paced())
}

func register(name string, preset config.Config) {
	if _, exists := presets[name]; exists {
		panic(fmt.Sprintf("BUG: preset %s already registered", name))
	}
	presets[name] = preset
}

// Options returns the names of the registered presets.
func Options() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Get returns the preset with the given name.
func Get(name string) (config.Config, error) {
	preset, exists := presets[name]
	if !exists {
		return config.Config{}, fmt.Errorf("preset %s is not supported. select from: %v", name, Options())
	}
	preset.Sim.UniqueKeys = slices.Clone(preset.Sim.UniqueKeys)
	return preset, nil
}

// small is a quick sanity check with short keys.
func small() config.Config {
	conf := config.DefaultConfig()
	conf.Sim.CommonKeys = 10
	conf.Sim.UniqueKeys = []int{3}
	conf.Sim.KeyLen = 4
	conf.Sim.MessageSize = 64
	return conf
}

// lossy drops a fifth of the messages between three peers.
func lossy() config.Config {
	conf := config.DefaultConfig()
	conf.Sim.Peers = 3
	conf.Sim.DropRate = 0.2
	conf.Sim.StallThreshold = 500
	conf.Sim.Trials = 10
	return conf
}

// large reconciles big sets with a few differences across many peers.
func large() config.Config {
	conf := config.DefaultConfig()
	conf.Sim.Peers = 8
	conf.Sim.CommonKeys = 100000
	conf.Sim.UniqueKeys = []int{20}
	conf.Sim.MessageSize = 1400
	conf.Sim.StallThreshold = 200
	conf.Sim.MaxPackets = 1000000
	return conf
}

// paced sends a packet every 10ms, which makes it possible to watch the
// metrics change while the simulation runs.
func paced() config.Config {
	conf := config.DefaultConfig()
	conf.Sim.CommonKeys = 1000
	conf.Sim.UniqueKeys = []int{100}
	conf.Sim.RoundInterval = 10 * time.Millisecond
	return conf
}
