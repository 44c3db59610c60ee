package manager

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eth2node/peerd/client"
	"github.com/eth2node/peerd/peerdb"
)

var (
	peersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "p2p_peers_connected",
		Help: "Number of connected libp2p peers.",
	})

	peerConnectEventCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2p_peer_connect_event_count",
		Help: "Total count of peer connection events.",
	})

	peersPerClient = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "p2p_peers_per_client",
		Help: "Number of connected peers by client implementation.",
	}, []string{"client"})

	totalRPCErrorsPerClient = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_rpc_errors_per_client_total",
		Help: "Total RPC errors observed, broken down by client implementation.",
	}, []string{"client"})

	peerScoreDistribution = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "p2p_peer_score_distribution",
		Help: "Peer score at fixed quartile positions among connected peers, best first.",
	}, []string{"bucket"})

	peerScorePerClient = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "p2p_peer_score_per_client",
		Help: "Average peer score by client implementation.",
	}, []string{"client"})
)

var metricsOnce sync.Once

// registerMetrics registers the package's prometheus collectors exactly
// once, regardless of how many PeerManagers a process constructs. Called
// from New only when Config.MetricsEnabled is set.
func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			peersConnected,
			peerConnectEventCount,
			peersPerClient,
			totalRPCErrorsPerClient,
			peerScoreDistribution,
			peerScorePerClient,
		)
	})
}

// updatePeerScoreMetrics resets and recomputes peerScoreDistribution and
// peerScorePerClient from the current set of Connected peers (grounded on
// original_source/.../peer_manager/mod.rs's update_peer_score_metrics,
// called once per heartbeat). A no-op when metrics are disabled.
func (m *PeerManager) updatePeerScoreMetrics(now time.Time) {
	if !m.cfg.MetricsEnabled {
		return
	}

	ids := m.globals.Peers().BestPeersByStatus(now, func(r *peerdb.Record) bool {
		return r.Status().IsConnected()
	})

	peerScoreDistribution.Reset()
	peerScorePerClient.Reset()

	total := len(ids)
	if total == 0 {
		return
	}

	clientTotals := make(map[string]float64)
	clientCounts := make(map[string]int)

	for i, id := range ids {
		rec, ok := m.globals.Peers().PeerInfo(id)
		if !ok {
			continue
		}
		s := rec.Score(now)

		switch i {
		case 0:
			peerScoreDistribution.WithLabelValues("1st").Set(s)
		case total - 1:
			peerScoreDistribution.WithLabelValues("last").Set(s)
		}
		if total/4 > 0 && i == total/4-1 {
			peerScoreDistribution.WithLabelValues("1/4").Set(s)
		}
		if total/2 > 0 && i == total/2-1 {
			peerScoreDistribution.WithLabelValues("1/2").Set(s)
		}
		if total*3/4 > 0 && i == total*3/4-1 {
			peerScoreDistribution.WithLabelValues("3/4").Set(s)
		}

		kind := rec.Client().Kind.String()
		clientTotals[kind] += s
		clientCounts[kind]++
	}

	for _, kind := range client.Kinds() {
		name := kind.String()
		if n := clientCounts[name]; n > 0 {
			peerScorePerClient.WithLabelValues(name).Set(clientTotals[name] / float64(n))
		}
	}
}
