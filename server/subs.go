/******************************************************************************
 *
 *  Description :
 *
 *    Topic subscription manager: which sessions receive events published to
 *    which topics. The authoritative topic -> sessions mapping lives here;
 *    each session additionally keeps its own topic set (session.go) so that
 *    disconnect can drop all memberships without scanning every topic.
 *
 *****************************************************************************/

package main

import (
	"hash/fnv"
	"sync"
)

const subShards = 32

type subShard struct {
	sync.RWMutex
	topics map[Topic]map[string]*Session
}

// SubscriptionManager maps topics to subscribed sessions. Topic keys are
// sharded: mutations of one topic do not block unrelated topics.
type SubscriptionManager struct {
	shards [subShards]subShard
}

// NewSubscriptionManager creates an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	sm := &SubscriptionManager{}
	for i := range sm.shards {
		sm.shards[i].topics = make(map[Topic]map[string]*Session)
	}
	return sm
}

func (sm *SubscriptionManager) shard(t Topic) *subShard {
	h := fnv.New32a()
	h.Write([]byte(t.String()))
	return &sm.shards[h.Sum32()%subShards]
}

// Subscribe adds the session to the topic. Returns false if the session was
// already subscribed; subscribing twice is not an error.
func (sm *SubscriptionManager) Subscribe(s *Session, t Topic) bool {
	if !s.addSub(t) {
		return false
	}

	sh := sm.shard(t)
	sh.Lock()
	set := sh.topics[t]
	if set == nil {
		set = make(map[string]*Session)
		sh.topics[t] = set
	}
	set[s.sid] = s
	sh.Unlock()
	return true
}

// Unsubscribe removes the session from the topic. Returns false if the
// session was not subscribed; leaving a topic never joined is a no-op.
func (sm *SubscriptionManager) Unsubscribe(s *Session, t Topic) bool {
	if !s.delSub(t) {
		return false
	}
	sm.discard(t, s.sid)
	return true
}

// SubscribersOf returns a snapshot of the sessions currently subscribed to
// the topic. Mutations after the snapshot do not affect an in-flight
// delivery pass.
func (sm *SubscriptionManager) SubscribersOf(t Topic) []*Session {
	sh := sm.shard(t)
	sh.RLock()
	defer sh.RUnlock()

	set := sh.topics[t]
	if len(set) == 0 {
		return nil
	}
	sessions := make([]*Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	return sessions
}

// DropSession removes all topic memberships of the session. Used on
// disconnect; safe to call for a session with no subscriptions and safe to
// call twice.
func (sm *SubscriptionManager) DropSession(s *Session) {
	for _, t := range s.clearSubs() {
		sm.discard(t, s.sid)
	}
}

// discard removes one session ID from one topic, deleting the topic's entry
// when it empties. Also used by the hub to garbage-collect subscriptions of
// dead sessions discovered during fan-out.
func (sm *SubscriptionManager) discard(t Topic, sid string) {
	sh := sm.shard(t)
	sh.Lock()
	defer sh.Unlock()

	set := sh.topics[t]
	if set == nil {
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(sh.topics, t)
	}
}

// TopicCount returns the number of topics with at least one subscriber.
func (sm *SubscriptionManager) TopicCount() int {
	var count int
	for i := range sm.shards {
		sh := &sm.shards[i]
		sh.RLock()
		count += len(sh.topics)
		sh.RUnlock()
	}
	return count
}
