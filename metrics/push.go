package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// PushMetrics pushes metrics to a Prometheus pushgateway at the given url
// every period until the context is canceled, then pushes them one last time.
func PushMetrics(ctx context.Context, logger *zap.Logger, url, job string, period time.Duration) {
	pusher := push.New(url, job).Gatherer(prometheus.DefaultGatherer)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := pusher.Push(); err != nil {
				logger.Warn("failed to push metrics", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := pusher.Push(); err != nil {
				logger.Warn("failed to push metrics", zap.Error(err))
			}
		}
	}
}
