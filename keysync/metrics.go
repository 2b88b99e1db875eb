package keysync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-keysync/metrics"
)

const subsystem = "engine"

var (
	eventCount = metrics.NewCounter(
		"events",
		subsystem,
		"Number of key difference events by kind",
		[]string{"kind"},
	)
	peerHasCount         = eventCount.WithLabelValues(PeerHas.String())
	peerDoesNotHaveCount = eventCount.WithLabelValues(PeerDoesNotHave.String())
	peerNowHasCount      = eventCount.WithLabelValues(PeerNowHas.String())

	sentEntryCount = metrics.NewCounter(
		"sent_entries",
		subsystem,
		"Number of entries sent",
		[]string{},
	).WithLabelValues()

	receivedEntryCount = metrics.NewCounter(
		"received_entries",
		subsystem,
		"Number of entries received by comparison result",
		[]string{"result"},
	)
	receivedEqualCount = receivedEntryCount.WithLabelValues("equal")
	receivedDiffCount  = receivedEntryCount.WithLabelValues("differ")

	malformedCount = metrics.NewCounter(
		"malformed_messages",
		subsystem,
		"Number of rejected malformed messages",
		[]string{},
	).WithLabelValues()

	messageEntries = metrics.NewHistogramWithBuckets(
		"message_entries",
		subsystem,
		"Number of entries per sent message",
		[]string{},
		prometheus.ExponentialBuckets(1, 2, 10),
	).WithLabelValues()

	addedKeyCount = metrics.NewCounter(
		"added_keys",
		subsystem,
		"Number of keys added",
		[]string{},
	).WithLabelValues()
)

func countEvent(kind EventKind) {
	switch kind {
	case PeerHas:
		peerHasCount.Inc()
	case PeerDoesNotHave:
		peerDoesNotHaveCount.Inc()
	case PeerNowHas:
		peerNowHasCount.Inc()
	}
}
