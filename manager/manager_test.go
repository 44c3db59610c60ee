package manager_test

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth2node/peerd/manager"
	"github.com/eth2node/peerd/networkglobals"
	"github.com/eth2node/peerd/peerdb"
	"github.com/eth2node/peerd/score"
)

func newTestManager(t *testing.T, target int) (*manager.PeerManager, *networkglobals.NetworkGlobals) {
	t.Helper()
	globals := networkglobals.New(peerdb.New(nil))
	cfg := manager.DefaultConfig()
	cfg.Target = target
	m, err := manager.New(cfg, globals, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, globals
}

func mustAddr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	a, err := ma.NewMultiaddr(s)
	require.NoError(t, err)
	return a
}

func drain(ch <-chan manager.PeerManagerEvent) []manager.PeerManagerEvent {
	var out []manager.PeerManagerEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(evs []manager.PeerManagerEvent) map[manager.PeerManagerEventKind]int {
	n := make(map[manager.PeerManagerEventKind]int)
	for _, ev := range evs {
		n[ev.Kind]++
	}
	return n
}

// S1: basic admission — connecting an unbanned peer succeeds and is
// reflected in ConnectedPeers / IsConnected, and carries
// EventPeerConnectedIncoming.
func TestBasicAdmission(t *testing.T) {
	m, globals := newTestManager(t, 3)
	now := time.Unix(1000, 0)
	pid := peer.ID("s1-peer")

	ok := m.InjectConnectIngoing(pid, mustAddr(t, "/ip4/1.1.1.1/tcp/1"), nil, now)
	assert.True(t, ok)
	assert.True(t, m.IsConnected(pid))
	assert.Equal(t, 1, globals.Peers().ConnectedPeers())

	evs := drain(m.Events())
	assert.Equal(t, 1, kinds(evs)[manager.EventPeerConnectedIncoming])
}

// S2: when pruning is needed, the worst-scoring peers are chosen first,
// and outbound-only peers are never pruned below target_outbound. T=3
// with 3 inbound + 2 outbound-only connected (5 total, budget=2) prunes
// exactly down to T=3: the worse outbound-only peer (q2) plus one
// zero-score inbound peer, per original_source's prune_excess_peers
// (mod.rs:787-844) — its budget and outbound-only snapshot are fixed for
// the whole call, so only one outbound-only peer can ever be pruned here
// (target_outbound(3)=1, connected_outbound_peer_count snapshot=2).
func TestPruningPrefersWorstOutboundAboveTarget(t *testing.T) {
	m, globals := newTestManager(t, 3)
	now := time.Unix(1000, 0)

	p1 := peer.ID("p1")
	p2 := peer.ID("p2")
	p3 := peer.ID("p3")
	q1 := peer.ID("q1")
	q2 := peer.ID("q2")

	require.True(t, m.InjectConnectIngoing(p1, mustAddr(t, "/ip4/1.1.1.1/tcp/1"), nil, now))
	require.True(t, m.InjectConnectIngoing(p2, mustAddr(t, "/ip4/2.2.2.2/tcp/1"), nil, now))
	require.True(t, m.InjectConnectIngoing(p3, mustAddr(t, "/ip4/3.3.3.3/tcp/1"), nil, now))
	require.True(t, m.InjectConnectOutgoing(q1, mustAddr(t, "/ip4/4.4.4.4/tcp/1"), nil, now))
	require.True(t, m.InjectConnectOutgoing(q2, mustAddr(t, "/ip4/5.5.5.5/tcp/1"), nil, now))

	// q2 scores strictly worse than q1 (mirrors the scenario's
	// add_to_score(q1,-1)/add_to_score(q2,-2) relative ordering).
	globals.Peers().ReportPeer(q1, score.LowToleranceError, now)
	globals.Peers().ReportPeer(q2, score.LowToleranceError, now)
	globals.Peers().ReportPeer(q2, score.LowToleranceError, now)

	m.Heartbeat(now)

	assert.Equal(t, 3, globals.Peers().ConnectedPeers())
	assert.False(t, globals.Peers().IsConnected(q2), "worse-scoring outbound-only peer must be pruned first")
	assert.GreaterOrEqual(t, globals.Peers().ConnectedOutboundOnlyPeers(), 1, "target_outbound floor must hold")

	// A second heartbeat, now at target, disconnects nothing further.
	drain(m.Events())
	m.Heartbeat(now)
	evs := drain(m.Events())
	assert.Zero(t, kinds(evs)[manager.EventDisconnectPeer])
}

// S3: outbound protection — pruning never drives the sole outbound-only
// peer below target_outbound, even when it scores worst and the node is
// at exactly Target.
func TestOutboundProtection(t *testing.T) {
	m, globals := newTestManager(t, 20)
	now := time.Unix(1000, 0)

	o := peer.ID("o")
	require.True(t, m.InjectConnectOutgoing(o, mustAddr(t, "/ip4/9.9.9.9/tcp/1"), nil, now))
	globals.Peers().ReportPeer(o, score.MidToleranceError, now)

	for i := 0; i < 19; i++ {
		pid := peer.ID(rune('a' + i))
		require.True(t, m.InjectConnectIngoing(pid, mustAddr(t, "/ip4/1.2.3.4/tcp/1"), nil, now))
	}
	require.Equal(t, 20, globals.Peers().ConnectedPeers())

	m.Heartbeat(now)

	assert.Equal(t, 20, globals.Peers().ConnectedPeers())
	assert.True(t, globals.Peers().IsConnected(o), "sole outbound-only peer must be protected from pruning")
}

// S4: unhealthy removal — peers whose blended score crosses
// DisconnectThreshold are disconnected via UpdateScores, independent of
// any pruning pressure.
func TestUnhealthyPeerDisconnected(t *testing.T) {
	m, globals := newTestManager(t, 50)
	now := time.Unix(1000, 0)
	pid := peer.ID("flaky")
	require.True(t, m.InjectConnectIngoing(pid, mustAddr(t, "/ip4/1.1.1.1/tcp/1"), nil, now))

	for i := 0; i < 9; i++ {
		globals.Peers().ReportPeer(pid, score.MidToleranceError, now)
	}

	results := globals.Peers().UpdateScores(now)
	res, ok := results[pid]
	require.True(t, ok)
	assert.Equal(t, peerdb.Disconnect, res.Kind)
}

// S5: ban cascade — a Fatal report on a Connected peer asks the host to
// disconnect it, and completing that disconnect bans it and reports its
// IPs for the transport layer to reject going forward.
func TestBanCascade(t *testing.T) {
	m, globals := newTestManager(t, 50)
	now := time.Unix(1000, 0)
	pid := peer.ID("misbehaving")
	addr := mustAddr(t, "/ip4/6.6.6.6/tcp/1")
	require.True(t, m.InjectConnectIngoing(pid, addr, nil, now))

	m.ReportPeer(pid, score.Fatal, manager.SourceRPC, now)
	evs := drain(m.Events())
	require.NotEmpty(t, evs)
	assert.Equal(t, manager.EventDisconnectPeer, evs[len(evs)-1].Kind)
	assert.Equal(t, manager.GoodbyeBanned, evs[len(evs)-1].Reason)

	m.InjectDisconnect(pid, now.Add(time.Second))
	evs = drain(m.Events())
	var banned bool
	for _, ev := range evs {
		if ev.Kind == manager.EventBanPeer {
			banned = true
			assert.NotEmpty(t, ev.BanIPs)
		}
	}
	assert.True(t, banned)
	assert.Equal(t, peerdb.BannedPeer, m.BanStatus(pid).Kind)
}

// S6: discovery throttling — calling PeersDiscovered with no candidates
// still runs maintain_peer_count(0) and emits DiscoverPeers(wanted) when
// the node is below Target. T=10, 4 already connected: wanted =
// min(16, 10-4) = 6.
func TestDiscoveryEmitsWantedBelowTarget(t *testing.T) {
	m, _ := newTestManager(t, 10)
	now := time.Unix(1000, 0)

	for i := 0; i < 4; i++ {
		pid := peer.ID(rune('a' + i))
		require.True(t, m.InjectConnectIngoing(pid, mustAddr(t, "/ip4/1.2.3.4/tcp/1"), nil, now))
	}
	drain(m.Events())

	dialed := m.PeersDiscovered(nil, now)
	assert.Empty(t, dialed)

	evs := drain(m.Events())
	require.Len(t, evs, 1)
	assert.Equal(t, manager.EventDiscoverPeers, evs[0].Kind)
	assert.Equal(t, 6, evs[0].Count)
}

// PeersDiscovered never admits more candidates than MaxPeers allows once
// the node is already at or near capacity.
func TestDiscoveryAdmissionRespectsMaxPeers(t *testing.T) {
	m, _ := newTestManager(t, 3) // MaxPeers(3) = ceil(3.3) = 4
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		pid := peer.ID(rune('a' + i))
		require.True(t, m.InjectConnectIngoing(pid, mustAddr(t, "/ip4/1.2.3.4/tcp/1"), nil, now))
	}
	drain(m.Events())

	var candidates []manager.DiscoveredPeer
	for i := 0; i < 5; i++ {
		candidates = append(candidates, manager.DiscoveredPeer{
			ID:   peer.ID(rune('x' + i)),
			Addr: mustAddr(t, "/ip4/2.3.4.5/tcp/1"),
		})
	}

	dialed := m.PeersDiscovered(candidates, now)
	assert.Len(t, dialed, 1, "only one more candidate fits under MaxPeers(3)=4")
}

// A min_ttl (priority) candidate is admitted against MaxPriorityPeers
// even when the ordinary MaxPeers budget is already exhausted.
func TestDiscoveryPriorityAdmission(t *testing.T) {
	m, _ := newTestManager(t, 10) // MaxPeers(10)=11, MaxPriorityPeers(10)=13
	now := time.Unix(1000, 0)

	for i := 0; i < 11; i++ {
		pid := peer.ID(rune('a' + i))
		require.True(t, m.InjectConnectIngoing(pid, mustAddr(t, "/ip4/1.2.3.4/tcp/1"), nil, now))
	}
	drain(m.Events())

	until := now.Add(time.Hour)
	ordinary := manager.DiscoveredPeer{ID: peer.ID("ordinary"), Addr: mustAddr(t, "/ip4/9.8.7.6/tcp/1")}
	priority := manager.DiscoveredPeer{ID: peer.ID("priority"), Addr: mustAddr(t, "/ip4/9.8.7.5/tcp/1"), MinTTL: &until}

	dialed := m.PeersDiscovered([]manager.DiscoveredPeer{ordinary, priority}, now)
	require.Len(t, dialed, 1)
	assert.Equal(t, peer.ID("priority"), dialed[0])
}
