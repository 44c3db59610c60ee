// Package timerset implements the three delay-keyed peer sets described in
// spec.md §4.3 (inbound-ping, outbound-ping, status) on top of
// github.com/patrickmn/go-cache's TTL cache, which already gives us
// reset-on-insert expiration and an eviction callback — exactly the
// "insert resets timer, remove cancels, stream yields expired IDs"
// contract the spec asks for, without hand-rolling a delay queue.
package timerset

import (
	"time"

	"github.com/libp2p/go-libp2p-core/peer"
	cache "github.com/patrickmn/go-cache"
)

// cleanupInterval controls how often go-cache scans for expired entries.
// It must be smaller than any realistic period so expirations are
// observed promptly; periods used by the manager (15s-5m) are all well
// above this.
const cleanupInterval = 1 * time.Second

// TimerSet is a set of PeerIDs, each associated with an independent
// expiry. Re-inserting a peer resets its timer (spec.md §4.3: "insert
// while expired replaces timestamp").
type TimerSet struct {
	period  time.Duration
	c       *cache.Cache
	expired chan peer.ID
}

// New returns a TimerSet whose entries expire `period` after insertion
// (or re-insertion).
func New(period time.Duration) *TimerSet {
	ts := &TimerSet{
		period:  period,
		c:       cache.New(period, cleanupInterval),
		expired: make(chan peer.ID, 64),
	}
	ts.c.OnEvicted(func(key string, v interface{}) {
		if _, ok := v.(removed); ok {
			return
		}
		ts.expired <- peer.ID(key)
	})
	return ts
}

// removed marks an entry that Remove is deleting, so the eviction
// callback does not report it as expired.
type removed struct{}

// Insert arms (or re-arms) the timer for id, resetting it to the set's
// period from now.
func (ts *TimerSet) Insert(id peer.ID) {
	ts.c.Set(string(id), struct{}{}, cache.DefaultExpiration)
}

// Remove cancels id's timer, if any. No expiration event is emitted.
func (ts *TimerSet) Remove(id peer.ID) {
	// go-cache runs OnEvicted on Delete as well, so the entry is first
	// overwritten with the removed marker, which the callback skips.
	ts.c.Set(string(id), removed{}, cache.DefaultExpiration)
	ts.c.Delete(string(id))
}

// Contains reports whether id currently has an armed timer in this set.
func (ts *TimerSet) Contains(id peer.ID) bool {
	_, ok := ts.c.Get(string(id))
	return ok
}

// Expired returns the channel that yields peer IDs as their timers fire,
// in arrival order. PeerManager drains each of its three sets from a
// goroutine of its own.
func (ts *TimerSet) Expired() <-chan peer.ID {
	return ts.expired
}

// Len reports the number of currently-armed timers.
func (ts *TimerSet) Len() int {
	return ts.c.ItemCount()
}
