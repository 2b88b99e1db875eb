package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/spacemeshos/go-keysync/config"
	"github.com/spacemeshos/go-keysync/config/presets"
)

// flagKeys maps the flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"report-file":         "report-file",
	"log-level":           "logging.level",
	"log-encoder":         "logging.log-encoder",
	"metrics-addr":        "metrics.addr",
	"metrics-push":        "metrics.push",
	"metrics-push-period": "metrics.push-period",
	"peers":               "sim.peers",
	"common-keys":         "sim.common-keys",
	"unique-keys":         "sim.unique-keys",
	"key-len":             "sim.key-len",
	"message-size":        "sim.message-size",
	"transfer-delay":      "sim.transfer-delay",
	"stall-threshold":     "sim.stall-threshold",
	"drop-rate":           "sim.drop-rate",
	"seed":                "sim.seed",
	"max-packets":         "sim.max-packets",
	"round-interval":      "sim.round-interval",
	"trials":              "sim.trials",
	"parallel":            "sim.parallel",
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "keysync-sim",
		Short:        "simulate key set reconciliation between peers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags(), viper.New())
			if err != nil {
				return err
			}
			logger, err := conf.Logging.Logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				// restore the default handling so that a second signal
				// terminates the process right away
				<-ctx.Done()
				stop()
			}()
			return run(ctx, logger, afero.NewOsFs(), conf)
		},
	}

	def := config.DefaultConfig()
	flags := cmd.Flags()
	flags.StringP("preset", "p", "",
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))
	flags.StringP("config", "c", "", "load configuration from file")
	flags.String("report-file", def.ReportFile, "write the JSON reports of the trials to this file")

	flags.String("log-level", def.Logging.Level, "logging level")
	flags.String("log-encoder", def.Logging.Encoder, "log encoder: console or json")
	flags.String("metrics-addr", def.Metrics.Addr, "serve metrics on this address")
	flags.String("metrics-push", def.Metrics.PushURL, "push metrics to this url")
	flags.Duration("metrics-push-period", def.Metrics.PushPeriod, "metrics push period")

	flags.Int("peers", def.Sim.Peers, "number of simulated peers")
	flags.Int("common-keys", def.Sim.CommonKeys, "number of keys all peers start with")
	flags.IntSlice("unique-keys", def.Sim.UniqueKeys,
		"number of keys only a single peer starts with, per peer (the last value repeats)")
	flags.Int("key-len", def.Sim.KeyLen, "key length in bytes")
	flags.Int("message-size", def.Sim.MessageSize, "message size in bytes")
	flags.Int("transfer-delay", def.Sim.TransferDelay, "packets sent before a key transfer completes")
	flags.Int("stall-threshold", def.Sim.StallThreshold, "progress value treated as a stall")
	flags.Float64("drop-rate", def.Sim.DropRate, "probability of a message not reaching a peer")
	flags.Uint64("seed", def.Sim.Seed, "seed for reproducible runs, 0 for random")
	flags.Int("max-packets", def.Sim.MaxPackets, "packet limit per trial")
	flags.Duration("round-interval", def.Sim.RoundInterval, "delay between packets")
	flags.Int("trials", def.Sim.Trials, "number of independent trials")
	flags.Int("parallel", def.Sim.Parallel, "number of trials run concurrently")
	return cmd
}

// loadConfig builds the configuration from the preset, the config file, the
// environment and the flags, in the order of increasing precedence.
func loadConfig(flags *pflag.FlagSet, vip *viper.Viper) (*config.Config, error) {
	conf := config.DefaultConfig()
	if name, _ := flags.GetString("preset"); name != "" {
		preset, err := presets.Get(name)
		if err != nil {
			return nil, err
		}
		conf = preset
	}
	path, _ := flags.GetString("config")
	if err := config.LoadConfig(path, vip); err != nil {
		return nil, err
	}

	vip.SetEnvPrefix(config.EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range flagKeys {
		if err := vip.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	flags.Visit(func(f *pflag.Flag) {
		key, found := flagKeys[f.Name]
		if !found {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			vip.Set(key, strings.Join(sv.GetSlice(), ","))
		} else {
			vip.Set(key, f.Value.String())
		}
	})

	if err := config.Unmarshal(vip, &conf); err != nil {
		return nil, err
	}
	conf.ConfigFile = path
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
