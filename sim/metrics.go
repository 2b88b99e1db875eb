package sim

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-keysync/metrics"
)

const subsystem = "sim"

var (
	simulationCount = metrics.NewCounter(
		"simulations",
		subsystem,
		"Number of finished simulations by outcome",
		[]string{"outcome"},
	)

	packetsToConverge = metrics.NewHistogramWithBuckets(
		"packets_to_converge",
		subsystem,
		"Number of packets sent before the peers converged",
		[]string{},
		prometheus.ExponentialBuckets(1, 2, 20),
	).WithLabelValues()

	transfersInFlight = metrics.NewGauge(
		"transfers_in_flight",
		subsystem,
		"Number of scheduled key transfers not completed yet",
		[]string{},
	).WithLabelValues()
)
