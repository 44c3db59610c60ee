// Package manager implements PeerManager, the component described by
// spec.md as a whole: it owns no sockets itself, instead consuming
// lifecycle notifications from a libp2p host and emitting
// PeerManagerEvents the host acts on, while keeping a peerdb.PeerDB,
// three timerset.TimerSets, and a score model in sync underneath.
package manager

import (
	"time"

	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/eth2node/peerd/capacity"
	"github.com/eth2node/peerd/client"
	"github.com/eth2node/peerd/networkglobals"
	"github.com/eth2node/peerd/peerdb"
	"github.com/eth2node/peerd/score"
	"github.com/eth2node/peerd/syncstatus"
	"github.com/eth2node/peerd/timerset"
)

var log = logrus.WithField("prefix", "manager")

// eventBufferSize bounds PeerManager's outgoing event channel. A host
// that stalls draining it sees emit() log and drop rather than block
// the manager's own goroutine.
const eventBufferSize = 256

// PeerManager is the coordinating object of spec.md §4. It has no
// public fields; all interaction happens through its methods and the
// Events() channel.
type PeerManager struct {
	cfg       *Config
	globals   *networkglobals.NetworkGlobals
	gossipsub GossipsubScoreSource

	events chan PeerManagerEvent
	done   chan struct{}

	statusTimers       *timerset.TimerSet
	pingInboundTimers  *timerset.TimerSet
	pingOutboundTimers *timerset.TimerSet
}

// New constructs a PeerManager. gossipsub may be nil if the host has no
// pubsub router to blend scores from. New starts the manager's internal
// timer-draining goroutines; call Close to stop them.
func New(cfg *Config, globals *networkglobals.NetworkGlobals, gossipsub GossipsubScoreSource) (*PeerManager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if gossipsub == nil {
		gossipsub = noGossipsub{}
	}
	if cfg.MetricsEnabled {
		registerMetrics()
	}

	m := &PeerManager{
		cfg:                cfg,
		globals:            globals,
		gossipsub:          gossipsub,
		events:             make(chan PeerManagerEvent, eventBufferSize),
		done:               make(chan struct{}),
		statusTimers:       timerset.New(cfg.StatusInterval),
		pingInboundTimers:  timerset.New(cfg.PingIntervalInbound),
		pingOutboundTimers: timerset.New(cfg.PingIntervalOutbound),
	}

	go m.drainTimerSet(m.statusTimers, EventStatus)
	go m.drainTimerSet(m.pingInboundTimers, EventPing)
	go m.drainTimerSet(m.pingOutboundTimers, EventPing)

	return m, nil
}

// Close stops the manager's internal timer-draining goroutines. It does
// not close Events(); any host still reading from it simply stops
// receiving Ping/Status events.
func (m *PeerManager) Close() {
	close(m.done)
}

// drainTimerSet reads ts.Expired() for as long as the manager is alive,
// emitting kind for every expired peer and immediately re-arming its
// timer (spec.md §4.5: "emit the corresponding Ping(id) or Status(id)
// event and immediately re-arm").
func (m *PeerManager) drainTimerSet(ts *timerset.TimerSet, kind PeerManagerEventKind) {
	for {
		select {
		case <-m.done:
			return
		case id := <-ts.Expired():
			m.emit(PeerManagerEvent{Kind: kind, Peer: id})
			ts.Insert(id)
		}
	}
}

// Events returns the channel the host must drain: dial/disconnect/ban/
// unban requests, ping/status/discovery prompts, and connection notices.
func (m *PeerManager) Events() <-chan PeerManagerEvent { return m.events }

func (m *PeerManager) emit(ev PeerManagerEvent) {
	select {
	case m.events <- ev:
	default:
		log.WithField("kind", ev.Kind).Warn("dropping PeerManagerEvent, host is not draining Events()")
	}
}

// InjectDialing records that a dial to id is in flight. Returns false
// without mutating anything if id is currently banned.
func (m *PeerManager) InjectDialing(id peer.ID, rec *enr.Record, now time.Time) bool {
	if m.globals.Peers().BanStatus(id).Kind != peerdb.NotBanned {
		return false
	}
	m.globals.Peers().DialingPeer(id, rec, now)
	return true
}

// InjectConnectIngoing records a new inbound connection from id. Per
// spec.md §9's resolved Open Question, an already-banned peer is
// rejected outright: no state mutation occurs and the host must close
// the connection itself.
func (m *PeerManager) InjectConnectIngoing(id peer.ID, addr ma.Multiaddr, rec *enr.Record, now time.Time) bool {
	if m.globals.Peers().BanStatus(id).Kind != peerdb.NotBanned {
		return false
	}
	m.globals.Peers().ConnectIngoing(id, addr, rec, now)
	m.pingInboundTimers.Insert(id)
	m.statusTimers.Insert(id)
	peersConnected.Set(float64(m.globals.Peers().ConnectedPeers()))
	peerConnectEventCount.Inc()
	m.emit(PeerManagerEvent{Kind: EventPeerConnectedIncoming, Peer: id})
	return true
}

// InjectConnectOutgoing records a new outbound connection to id, with
// the same ban rejection as InjectConnectIngoing.
func (m *PeerManager) InjectConnectOutgoing(id peer.ID, addr ma.Multiaddr, rec *enr.Record, now time.Time) bool {
	if m.globals.Peers().BanStatus(id).Kind != peerdb.NotBanned {
		return false
	}
	m.globals.Peers().ConnectOutgoing(id, addr, rec, now)
	m.pingOutboundTimers.Insert(id)
	m.statusTimers.Insert(id)
	peersConnected.Set(float64(m.globals.Peers().ConnectedPeers()))
	peerConnectEventCount.Inc()
	m.emit(PeerManagerEvent{Kind: EventPeerConnectedOutgoing, Peer: id})
	return true
}

// InjectDisconnect finalizes id's disconnection, propagating any ban or
// unban consequences as events.
func (m *PeerManager) InjectDisconnect(id peer.ID, now time.Time) {
	m.pingInboundTimers.Remove(id)
	m.pingOutboundTimers.Remove(id)
	m.statusTimers.Remove(id)

	op, unbans := m.globals.Peers().InjectDisconnect(id, now)
	peersConnected.Set(float64(m.globals.Peers().ConnectedPeers()))
	m.emit(PeerManagerEvent{Kind: EventPeerDisconnected, Peer: id})
	for _, u := range unbans {
		m.emit(PeerManagerEvent{Kind: EventUnbanAddresses, Peer: u.Peer, BanIPs: u.IPs})
	}
	if op != nil {
		m.handleBanOperation(id, *op)
	}
}

// NotifyDisconnecting marks id as about to disconnect, optionally en
// route to a ban, and asks the host to actually close the connection.
func (m *PeerManager) NotifyDisconnecting(id peer.ID, willBan bool, reason GoodbyeReason) {
	m.globals.Peers().NotifyDisconnecting(id, willBan)
	m.emit(PeerManagerEvent{Kind: EventDisconnectPeer, Peer: id, Reason: reason})
}

// GoodbyePeer disconnects id for an application-level reason (not a ban).
func (m *PeerManager) GoodbyePeer(id peer.ID, reason GoodbyeReason) {
	m.NotifyDisconnecting(id, false, reason)
}

// BanStatus reports id's current ban state.
func (m *PeerManager) BanStatus(id peer.ID) peerdb.BanResult {
	return m.globals.Peers().BanStatus(id)
}

// IsConnected reports whether id is currently Connected.
func (m *PeerManager) IsConnected(id peer.ID) bool {
	return m.globals.Peers().IsConnected(id)
}

// PeerLimitReached reports whether the connected-or-dialing peer count
// has reached this manager's MaxPeers budget (spec.md §4.4).
func (m *PeerManager) PeerLimitReached() bool {
	return m.globals.Peers().ConnectedOrDialingPeers() >= capacity.MaxPeers(m.cfg.Target)
}

// ReportPeer applies action to id's score and propagates any resulting
// disconnect/ban. source does not affect the result and is not currently
// logged or counted.
func (m *PeerManager) ReportPeer(id peer.ID, action score.PeerAction, source ReportSource, now time.Time) {
	res := m.globals.Peers().ReportPeer(id, action, now)
	m.handleScoreResult(id, res, GoodbyeBadScore)
}

// UpdateGossipsubScores blends gossipsub's last-reported scores into the
// store, propagating any resulting disconnect/ban decisions. Only the
// Target Connected peers with the lowest gossipsub score are updated.
func (m *PeerManager) UpdateGossipsubScores(now time.Time) {
	scores := make(map[peer.ID]float64)
	for _, id := range m.globals.Peers().Peers() {
		if s, ok := m.gossipsub.PeerScore(id); ok {
			scores[id] = s
		}
	}
	results := m.globals.Peers().UpdateGossipsubScores(scores, m.cfg.Target, now)
	for id, res := range results {
		m.handleScoreResult(id, res, GoodbyeBadScore)
	}
}

// HandleRPCError reports an RPC-layer failure observed for id on proto,
// over a connection running in direction, translating it to a PeerAction
// per the exact table in rpc_errors.go (spec.md §4.5). Many entries
// report nothing at all ("no report" in the table), in which case no
// score is touched.
func (m *PeerManager) HandleRPCError(id peer.ID, proto Protocol, err RPCError, direction network.Direction, now time.Time) {
	action, ok := actionForRPCError(err, proto, direction)
	if !ok {
		return
	}
	if rec, found := m.globals.Peers().PeerInfo(id); found {
		totalRPCErrorsPerClient.WithLabelValues(rec.Client().Kind.String()).Inc()
	}
	res := m.globals.Peers().ReportPeer(id, action, now)
	m.handleScoreResult(id, res, GoodbyeBadScore)
}

func (m *PeerManager) handleScoreResult(id peer.ID, res peerdb.ScoreUpdateResult, disconnectReason GoodbyeReason) {
	switch res.Kind {
	case peerdb.Disconnect:
		m.NotifyDisconnecting(id, false, disconnectReason)
	case peerdb.Ban:
		m.handleBanOperation(id, res.Ban)
	}
}

func (m *PeerManager) handleBanOperation(id peer.ID, op peerdb.BanOperation) {
	switch op.Kind {
	case peerdb.DisconnectThePeer:
		m.NotifyDisconnecting(id, true, GoodbyeBanned)
	case peerdb.PeerDisconnecting:
		// already on its way out; InjectDisconnect will complete the ban.
	case peerdb.ReadyToBan:
		m.emit(PeerManagerEvent{Kind: EventBanPeer, Peer: id, BanIPs: op.IPs})
	}
}

// PingRequest records that a ping was just sent to id, (re)arming the
// appropriate ping TimerSet so the next one is scheduled correctly.
func (m *PeerManager) PingRequest(id peer.ID) { m.refreshPing(id) }

// PongResponse records that id answered a ping. Per the original
// peer_manager's pong_response, this only confirms the peer is known; it
// does not rearm any timer (only sending a ping does that).
func (m *PeerManager) PongResponse(id peer.ID) {
	if _, ok := m.globals.Peers().PeerInfo(id); !ok {
		log.WithField("peer", id.Pretty()).Warn("received a pong from an unknown peer")
	}
}

func (m *PeerManager) refreshPing(id peer.ID) {
	rec, ok := m.globals.Peers().PeerInfo(id)
	if !ok {
		return
	}
	if rec.IsOutboundOnly() {
		m.pingOutboundTimers.Insert(id)
	} else {
		m.pingInboundTimers.Insert(id)
	}
}

// PeerStatusd records that id's status round-trip just completed,
// rearming its status timer.
func (m *PeerManager) PeerStatusd(id peer.ID) {
	m.statusTimers.Insert(id)
}

// Identify records client identification and listening addresses
// learned from id, returning whether the addresses changed.
func (m *PeerManager) Identify(id peer.ID, agentVersion, protocolVersion string, addrs []ma.Multiaddr, now time.Time) bool {
	c := client.FromAgentVersion(agentVersion, protocolVersion)
	changed := m.globals.Peers().SetIdentity(id, c, addrs, now)
	peersPerClient.WithLabelValues(c.Kind.String()).Inc()
	return changed
}

// SetSyncStatus records id's last reported chain-sync posture.
func (m *PeerManager) SetSyncStatus(id peer.ID, s syncstatus.Status, now time.Time) {
	m.globals.Peers().SetSyncStatus(id, s, now)
}

// SetMinTTL marks id as needed for a duty until until, exempting it from
// pruning until then.
func (m *PeerManager) SetMinTTL(id peer.ID, until time.Time, now time.Time) {
	m.globals.Peers().SetMinTTL(id, until, now)
}

