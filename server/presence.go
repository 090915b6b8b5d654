/******************************************************************************
 *
 *  Description :
 *
 *    Presence registry: which identities are online and through which
 *    connections. One identity may hold many simultaneous connections
 *    (multiple tabs, multiple devices).
 *
 *****************************************************************************/

package main

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/zentrio/fabric/server/logs"
)

const presenceShards = 32

type presenceShard struct {
	sync.RWMutex
	// identity ID -> session ID -> session. An identity has an entry iff it
	// has at least one live connection; empty sets are deleted, never kept.
	online map[string]map[string]*Session
}

// PresenceRegistry tracks live connections per identity. Identity keys are
// sharded so that churn on one identity does not block lookups or mutations
// on unrelated identities; all connections of a single identity are
// serialized by that identity's shard.
type PresenceRegistry struct {
	shards [presenceShards]presenceShard

	// Reverse index: session ID -> identity ID. Needed because deregistration
	// is keyed by connection, not by identity.
	conns sync.Map
}

// NewPresenceRegistry creates an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	pr := &PresenceRegistry{}
	for i := range pr.shards {
		pr.shards[i].online = make(map[string]map[string]*Session)
	}
	return pr
}

func (pr *PresenceRegistry) shard(identityID string) *presenceShard {
	h := fnv.New32a()
	h.Write([]byte(identityID))
	return &pr.shards[h.Sum32()%presenceShards]
}

// Register records a live connection of the given identity. The reverse
// index is written first: by the time the identity set is visible the
// session is deregisterable.
func (pr *PresenceRegistry) Register(identityID string, s *Session) {
	pr.conns.Store(s.sid, identityID)

	sh := pr.shard(identityID)
	sh.Lock()
	set := sh.online[identityID]
	if set == nil {
		set = make(map[string]*Session)
		sh.online[identityID] = set
	}
	set[s.sid] = s
	sh.Unlock()
}

// Deregister removes a connection. Calling it for an unknown or
// already-removed session ID is a no-op: disconnect can race with explicit
// logout and cleanup runs from both paths.
func (pr *PresenceRegistry) Deregister(sid string) {
	v, ok := pr.conns.LoadAndDelete(sid)
	if !ok {
		return
	}
	identityID := v.(string)

	sh := pr.shard(identityID)
	sh.Lock()
	defer sh.Unlock()

	set := sh.online[identityID]
	if set == nil {
		// Index said the session was registered but the identity has no
		// entry. Recoverable inconsistency, log and move on.
		logs.Warn.Println("presence: no entry for identity", identityID, "sid", sid)
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(sh.online, identityID)
	}
}

// IsOnline reports whether the identity has at least one live connection.
func (pr *PresenceRegistry) IsOnline(identityID string) bool {
	sh := pr.shard(identityID)
	sh.RLock()
	defer sh.RUnlock()
	return len(sh.online[identityID]) > 0
}

// OnlineConnections returns the session IDs of all live connections of the
// identity, sorted for deterministic output.
func (pr *PresenceRegistry) OnlineConnections(identityID string) []string {
	sh := pr.shard(identityID)
	sh.RLock()
	set := sh.online[identityID]
	sids := make([]string, 0, len(set))
	for sid := range set {
		sids = append(sids, sid)
	}
	sh.RUnlock()

	sort.Strings(sids)
	return sids
}

// SessionsFor returns a snapshot of the identity's live sessions.
func (pr *PresenceRegistry) SessionsFor(identityID string) []*Session {
	sh := pr.shard(identityID)
	sh.RLock()
	defer sh.RUnlock()

	set := sh.online[identityID]
	if len(set) == 0 {
		return nil
	}
	sessions := make([]*Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	return sessions
}

// OnlineCount returns the number of identities with at least one live
// connection.
func (pr *PresenceRegistry) OnlineCount() int {
	var count int
	for i := range pr.shards {
		sh := &pr.shards[i]
		sh.RLock()
		count += len(sh.online)
		sh.RUnlock()
	}
	return count
}
