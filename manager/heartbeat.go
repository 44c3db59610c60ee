package manager

import (
	"time"

	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/eth2node/peerd/capacity"
	"github.com/eth2node/peerd/peerdb"
)

// Heartbeat runs the periodic maintenance cycle (spec.md §4.5): check
// whether more discovery is wanted, reclaim dial attempts that never
// resolved, decay and re-evaluate every Connected peer's score, refresh
// score metrics, and prune back down to Target if more than Target peers
// are connected. The host's event loop calls this on its own
// Heartbeat-period ticker and drains Events() afterward.
func (m *PeerManager) Heartbeat(now time.Time) {
	m.maintainPeerCount(0)
	m.globals.Peers().CleanupDialingPeers(now)

	results := m.globals.Peers().UpdateScores(now)
	for id, res := range results {
		m.handleScoreResult(id, res, GoodbyeBadScore)
	}

	m.updatePeerScoreMetrics(now)

	m.pruneExcessPeers(now)
}

// pruneExcessPeers disconnects Connected peers, worst score first, until
// the peer count is back at Target (spec.md §4.5 prune_excess_peers,
// grounded on original_source/.../peer_manager/mod.rs:787-844). The
// budget and the outbound-only snapshot are both fixed at the start of
// the call, matching the original's connected_peer_count/
// connected_outbound_peer_count locals: outboundPruned only grows as
// candidates are actually selected, it is never recomputed from live
// state mid-pass. Two passes run over the same worst-first candidate
// list: the first only considers peers with a negative score, the second
// considers any remaining Connected peer if the budget is still short.
// Subnet-aware pruning (out of scope here, per spec.md §9, and commented
// out in the original too) would slot in as a third pass without
// otherwise touching this algorithm.
func (m *PeerManager) pruneExcessPeers(now time.Time) {
	connected := m.globals.Peers().ConnectedPeers()
	if connected <= m.cfg.Target {
		return
	}
	budget := connected - m.cfg.Target
	targetOutbound := capacity.TargetOutbound(m.cfg.Target)
	outboundSnapshot := m.globals.Peers().ConnectedOutboundOnlyPeers()
	outboundPruned := 0

	worst := m.globals.Peers().WorstConnectedPeers(now)
	toPrune := make(map[peer.ID]bool)

	runPass := func(eligible func(*peerdb.Record) bool) {
		for _, id := range worst {
			if len(toPrune) >= budget {
				return
			}
			if toPrune[id] {
				continue
			}
			rec, ok := m.globals.Peers().PeerInfo(id)
			if !ok || !eligible(rec) {
				continue
			}
			if rec.IsOutboundOnly() {
				if targetOutbound+outboundPruned < outboundSnapshot {
					outboundPruned++
				} else {
					continue
				}
			}
			toPrune[id] = true
		}
	}

	runPass(func(r *peerdb.Record) bool { return r.Score(now) < 0 })
	if len(toPrune) < budget {
		runPass(func(*peerdb.Record) bool { return true })
	}

	for id := range toPrune {
		m.NotifyDisconnecting(id, false, GoodbyeTooManyPeers)
	}
}
