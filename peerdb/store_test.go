package peerdb_test

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth2node/peerd/peerdb"
	"github.com/eth2node/peerd/score"
)

func mustAddr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	a, err := ma.NewMultiaddr(s)
	require.NoError(t, err)
	return a
}

func TestConnectIngoingThenDisconnect(t *testing.T) {
	db := peerdb.New(nil)
	now := time.Unix(1000, 0)
	pid := peer.ID("peer-a")
	addr := mustAddr(t, "/ip4/1.2.3.4/tcp/9000")

	db.ConnectIngoing(pid, addr, nil, now)
	assert.True(t, db.IsConnected(pid))
	assert.Equal(t, 1, db.ConnectedPeers())

	db.NotifyDisconnecting(pid, false)
	op, unbans := db.InjectDisconnect(pid, now.Add(time.Second))
	assert.Nil(t, op)
	assert.Empty(t, unbans)
	assert.False(t, db.IsConnected(pid))
}

func TestShouldDial(t *testing.T) {
	db := peerdb.New(nil)
	now := time.Unix(1000, 0)
	pid := peer.ID("peer-b")

	assert.True(t, db.ShouldDial(pid)) // never seen => dialable

	db.DialingPeer(pid, nil, now)
	assert.False(t, db.ShouldDial(pid))

	addr := mustAddr(t, "/ip4/5.6.7.8/tcp/9000")
	db.ConnectOutgoing(pid, addr, nil, now)
	assert.False(t, db.ShouldDial(pid))

	db.NotifyDisconnecting(pid, false)
	db.InjectDisconnect(pid, now.Add(time.Second))
	assert.True(t, db.ShouldDial(pid))
}

func TestReportPeerFatalLeadsToBanOperation(t *testing.T) {
	db := peerdb.New(nil)
	now := time.Unix(1000, 0)
	pid := peer.ID("peer-c")
	addr := mustAddr(t, "/ip4/9.9.9.9/tcp/9000")
	db.ConnectIngoing(pid, addr, nil, now)

	res := db.ReportPeer(pid, score.Fatal, now)
	require.Equal(t, peerdb.Ban, res.Kind)
	require.Equal(t, peerdb.DisconnectThePeer, res.Ban.Kind)

	db.NotifyDisconnecting(pid, true)
	op, _ := db.InjectDisconnect(pid, now.Add(time.Second))
	require.NotNil(t, op)
	assert.Equal(t, peerdb.ReadyToBan, op.Kind)
	assert.Contains(t, op.IPs[0].String(), "9.9.9.9")

	status := db.BanStatus(pid)
	assert.Equal(t, peerdb.BannedPeer, status.Kind)
}

func TestBanStatusByIPThreshold(t *testing.T) {
	db := peerdb.New(nil)
	now := time.Unix(1000, 0)
	sameIP := "/ip4/4.4.4.4/tcp/9000"

	for i := 0; i < peerdb.BannedPeersPerIPThreshold+1; i++ {
		pid := peer.ID("shared-ip-peer-" + string(rune('a'+i)))
		addr := mustAddr(t, sameIP)
		db.ConnectIngoing(pid, addr, nil, now)
		db.ReportPeer(pid, score.Fatal, now)
		db.NotifyDisconnecting(pid, true)
		db.InjectDisconnect(pid, now.Add(time.Second))
	}

	fresh := peer.ID("newcomer")
	addr := mustAddr(t, sameIP)
	db.ConnectIngoing(fresh, addr, nil, now)
	assert.Equal(t, peerdb.BannedIP, db.BanStatus(fresh).Kind)
}

func TestPurgeDisconnectedRespectsMax(t *testing.T) {
	cfg := &peerdb.Config{MaxBannedPeers: 10, MaxDisconnectedPeers: 1}
	db := peerdb.New(cfg)
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		pid := peer.ID("disc-peer-" + string(rune('a'+i)))
		addr := mustAddr(t, "/ip4/1.1.1.1/tcp/9000")
		db.ConnectIngoing(pid, addr, nil, now)
		db.NotifyDisconnecting(pid, false)
		db.InjectDisconnect(pid, now.Add(time.Duration(i)*time.Second))
	}

	count := 0
	for _, id := range db.Peers() {
		if r, ok := db.PeerInfo(id); ok && r.Status().IsDisconnected() {
			count++
		}
	}
	assert.LessOrEqual(t, count, 1)
}

func TestWorstConnectedPeersOrdering(t *testing.T) {
	db := peerdb.New(nil)
	now := time.Unix(1000, 0)

	good := peer.ID("good")
	bad := peer.ID("bad")
	db.ConnectIngoing(good, mustAddr(t, "/ip4/1.1.1.1/tcp/1"), nil, now)
	db.ConnectIngoing(bad, mustAddr(t, "/ip4/2.2.2.2/tcp/2"), nil, now)
	db.ReportPeer(bad, score.MidToleranceError, now)

	worst := db.WorstConnectedPeers(now)
	require.Len(t, worst, 2)
	assert.Equal(t, bad, worst[0])
	assert.Equal(t, good, worst[1])
}
