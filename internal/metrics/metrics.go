// Package metrics exposes observational counters and gauges for the RDT
// engine: dropped datagrams, retransmissions, window occupancy, ACKs
// emitted, and active connections. Nothing in the engine reads these back
// to make decisions — congestion control is an explicit spec Non-goal, so
// these are for dashboards/alerting only.
//
// Grounded on nabbar-golib's prometheus/metrics package shape: named
// collectors registered once at package init and incremented from the hot
// path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DroppedBadMagic counts datagrams discarded for failing the magic-token
	// check (spec §3 invariant, §7 "malformed datagrams are discarded").
	DroppedBadMagic = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rostov",
		Name:      "datagrams_dropped_bad_magic_total",
		Help:      "Datagrams discarded for failing the ROSTOV magic-token check.",
	})

	// DroppedUnknownType counts datagrams discarded for carrying an
	// unrecognized packet type byte.
	DroppedUnknownType = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rostov",
		Name:      "datagrams_dropped_unknown_type_total",
		Help:      "Datagrams discarded for carrying an unrecognized packet type.",
	})

	// Retransmissions counts INFO retransmissions, labeled by reliability
	// variant. FIN resends are not counted.
	Retransmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rostov",
		Name:      "retransmissions_total",
		Help:      "Packet retransmissions by reliability variant.",
	}, []string{"variant"})

	// AcksEmitted counts ACKs sent by the receiver side of a connection.
	AcksEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rostov",
		Name:      "acks_emitted_total",
		Help:      "ACK packets emitted in response to accepted or duplicate INFO packets.",
	})

	// WindowOccupancy reports the current count of distinct unacknowledged
	// sequence numbers for Selective Repeat senders (spec §8 invariant 2:
	// |unacked| <= WINDOW_SIZE).
	WindowOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rostov",
		Name:      "sr_window_occupancy",
		Help:      "Current count of unacknowledged sequence numbers for Selective Repeat senders.",
	})

	// ActiveConnections reports the number of connections the listener
	// currently tracks (accepted but not yet Disconnected/joined).
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rostov",
		Name:      "active_connections",
		Help:      "Connections currently tracked by the listener.",
	})
)

func init() {
	prometheus.MustRegister(
		DroppedBadMagic,
		DroppedUnknownType,
		Retransmissions,
		AcksEmitted,
		WindowOccupancy,
		ActiveConnections,
	)
}
