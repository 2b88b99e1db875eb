// Package config contains keysync-sim configuration definitions
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spacemeshos/go-keysync/sim"
)

const (
	// EnvPrefix is the prefix of the environment variables overriding the
	// configuration, e.g. KEYSYNC_SIM_PEERS.
	EnvPrefix = "KEYSYNC"
)

// ErrNoConfigFile is returned when the specified configuration file doesn't
// exist.
var ErrNoConfigFile = errors.New("config file not found")

// Config defines the top level configuration for keysync-sim.
type Config struct {
	ConfigFile string        `mapstructure:"config"`
	ReportFile string        `mapstructure:"report-file"`
	Logging    LoggerConfig  `mapstructure:"logging"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Sim        sim.Config    `mapstructure:"sim"`
}

// MetricsConfig specifies how the collected metrics are exposed.
type MetricsConfig struct {
	// Addr is the address of the /metrics endpoint. Empty disables it.
	Addr string `mapstructure:"addr"`
	// PushURL is the url of the prometheus pushgateway. Empty disables pushing.
	PushURL    string        `mapstructure:"push"`
	PushPeriod time.Duration `mapstructure:"push-period"`
	PushJob    string        `mapstructure:"push-job"`
}

// DefaultConfig returns the default configuration for keysync-sim.
func DefaultConfig() Config {
	return Config{
		Logging: DefaultLoggerConfig(),
		Metrics: MetricsConfig{
			PushPeriod: time.Minute,
			PushJob:    "keysync-sim",
		},
		Sim: sim.DefaultConfig(),
	}
}

// LoadConfig loads the config file into vip. An empty location means no
// config file, which is not an error.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		return nil
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoConfigFile, fileLocation)
		}
		return fmt.Errorf("failed to read config file %s: %w", fileLocation, err)
	}
	return nil
}

// Unmarshal decodes the configuration loaded into vip on top of conf.
func Unmarshal(vip *viper.Viper, conf *Config) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := vip.Unmarshal(conf, viper.DecodeHook(hook)); err != nil {
		return fmt.Errorf("unmarshal viper: %w", err)
	}
	return nil
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if err := cfg.Logging.Validate(); err != nil {
		return err
	}
	if cfg.Metrics.PushURL != "" && cfg.Metrics.PushPeriod <= 0 {
		return fmt.Errorf("bad metrics push period %v", cfg.Metrics.PushPeriod)
	}
	return cfg.Sim.Validate()
}
