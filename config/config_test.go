package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-keysync/log"
	"github.com/spacemeshos/go-keysync/sim"
)

func TestLoadConfig(t *testing.T) {
	vip := viper.New()
	require.NoError(t, LoadConfig("", vip))
	err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), vip)
	require.ErrorIs(t, err, ErrNoConfigFile)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sim: [\n"), 0o600))
	err = LoadConfig(path, vip)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoConfigFile)
}

func TestUnmarshal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keysync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
report-file: out.json
logging:
  log-encoder: json
  level: debug
metrics:
  addr: 127.0.0.1:9090
sim:
  peers: 3
  unique-keys: [1, 2, 3]
  drop-rate: 0.25
  round-interval: 10ms
`), 0o600))
	vip := viper.New()
	require.NoError(t, LoadConfig(path, vip))
	conf := DefaultConfig()
	require.NoError(t, Unmarshal(vip, &conf))
	require.NoError(t, conf.Validate())

	expected := DefaultConfig()
	expected.ReportFile = "out.json"
	expected.Logging = LoggerConfig{Encoder: log.JSONEncoder, Level: "debug"}
	expected.Metrics.Addr = "127.0.0.1:9090"
	expected.Sim.Peers = 3
	expected.Sim.UniqueKeys = []int{1, 2, 3}
	expected.Sim.DropRate = 0.25
	expected.Sim.RoundInterval = 10 * time.Millisecond
	require.Equal(t, expected, conf)
}

func TestUnmarshalStrings(t *testing.T) {
	vip := viper.New()
	vip.Set("sim.unique-keys", "4,5")
	vip.Set("sim.round-interval", "2s")
	vip.Set("metrics.push-period", "30s")
	conf := DefaultConfig()
	require.NoError(t, Unmarshal(vip, &conf))
	require.Equal(t, []int{4, 5}, conf.Sim.UniqueKeys)
	require.Equal(t, 2*time.Second, conf.Sim.RoundInterval)
	require.Equal(t, 30*time.Second, conf.Metrics.PushPeriod)
}

func TestValidate(t *testing.T) {
	conf := DefaultConfig()
	require.NoError(t, conf.Validate())

	conf.Logging.Encoder = "xml"
	require.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.Logging.Level = "loud"
	require.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.Metrics.PushURL = "http://localhost:9091"
	conf.Metrics.PushPeriod = 0
	require.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.Sim.Peers = 0
	require.ErrorIs(t, conf.Validate(), sim.ErrBadConfig)
}

func TestLogger(t *testing.T) {
	lc := DefaultLoggerConfig()
	logger, err := lc.Logger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	lc.Level = "nope"
	_, err = lc.Logger()
	require.Error(t, err)
}
