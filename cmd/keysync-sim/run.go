package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-keysync/config"
	"github.com/spacemeshos/go-keysync/metrics"
	"github.com/spacemeshos/go-keysync/sim"
)

func run(ctx context.Context, logger *zap.Logger, fs afero.Fs, conf *config.Config) error {
	if conf.Metrics.Addr != "" {
		srv, err := metrics.NewServer(logger.Named("metrics"), conf.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		srv.Start()
		logger.Info("serving metrics", zap.String("addr", srv.Addr()))
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Warn("failed to stop metrics server", zap.Error(err))
			}
		}()
	}
	if conf.Metrics.PushURL != "" {
		pushCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			metrics.PushMetrics(pushCtx, logger.Named("push"),
				conf.Metrics.PushURL, conf.Metrics.PushJob, conf.Metrics.PushPeriod)
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	logger.Info("starting simulation",
		zap.Int("peers", conf.Sim.Peers),
		zap.Int("commonKeys", conf.Sim.CommonKeys),
		zap.Ints("uniqueKeys", conf.Sim.UniqueKeys),
		zap.Int("trials", conf.Sim.Trials),
		zap.Uint64("seed", conf.Sim.Seed))
	reports, err := sim.RunTrials(ctx, conf.Sim, sim.WithLogger(logger.Named("sim")))
	if err != nil && !errors.Is(err, sim.ErrTrialsFailed) {
		return err
	}
	summarize(logger, reports)
	if conf.ReportFile != "" {
		if werr := sim.WriteReports(fs, conf.ReportFile, reports); werr != nil {
			return werr
		}
		logger.Info("reports written", zap.String("path", conf.ReportFile))
	}
	return err
}

func summarize(logger *zap.Logger, reports []*sim.Report) {
	converged, packets, maxPackets := 0, 0, 0
	for _, r := range reports {
		if !r.Converged {
			continue
		}
		converged++
		packets += r.Packets
		maxPackets = max(maxPackets, r.Packets)
	}
	fields := []zap.Field{
		zap.Int("trials", len(reports)),
		zap.Int("converged", converged),
		zap.Int("maxPackets", maxPackets),
	}
	if converged != 0 {
		fields = append(fields, zap.Float64("avgPackets", float64(packets)/float64(converged)))
	}
	logger.Info("simulation summary", fields...)
}
