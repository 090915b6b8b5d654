/******************************************************************************
 *
 *  Description :
 *
 *    Handling of client connections. One identity may have multiple
 *    simultaneous sessions (tabs, devices). Each session may subscribe to
 *    multiple topics.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zentrio/fabric/server/auth"
	"github.com/zentrio/fabric/server/logs"
)

// Wire transport.
const (
	NONE = iota
	WEBSOCK
)

// Maximum number of queued outbound messages per session. A session which
// cannot drain its queue is considered dead and events to it are dropped.
const sendQueueLimit = 128

// Session represents a single live connection of an authenticated identity.
type Session struct {
	// Transport type - NONE (unset, test sessions) or WEBSOCK.
	proto int

	// Websocket connection. Set only for websocket sessions.
	ws *websocket.Conn

	// IP address of the client.
	remoteAddr string

	// User agent, a string provided by the client in a {hi} packet.
	userAgent string

	// Protocol version of the client: ((major & 0xff) << 8) | (minor & 0xff).
	ver int

	// Identity verified during the handshake. Immutable; a session is never
	// created for an unverified connection.
	identity *auth.Identity

	// Session ID, unique for the process lifetime.
	sid string

	// Time when the session received the last packet from the client.
	lastAction time.Time

	// Outbound messages, buffered. Content is serialized and ready to write.
	send chan any

	// Channel for shutting down the session, buffer 1.
	// Content in the same format as for 'send'.
	stop chan any

	// Set once full cleanup has run. Checked during fan-out so events are
	// not queued to a connection which is already going away.
	gone atomic.Bool

	// Topics this session is subscribed to. Guarded by subsLock: the hub
	// goroutine and the session's own reader access it concurrently.
	subs     map[Topic]bool
	subsLock sync.RWMutex

	// Owning fabric. Presence, subscriptions and the session store are
	// reached through it.
	fab *Fabric
}

// addSub records a topic membership. Returns false if already subscribed.
func (s *Session) addSub(t Topic) bool {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	if s.subs[t] {
		return false
	}
	s.subs[t] = true
	return true
}

// delSub removes a topic membership. Returns false if not subscribed.
func (s *Session) delSub(t Topic) bool {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	if !s.subs[t] {
		return false
	}
	delete(s.subs, t)
	return true
}

// clearSubs empties the session's topic set and returns what was in it.
func (s *Session) clearSubs() []Topic {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	topics := make([]Topic, 0, len(s.subs))
	for t := range s.subs {
		topics = append(topics, t)
	}
	s.subs = make(map[Topic]bool)
	return topics
}

// queueOut serializes a ServerComMessage and attempts to send it to the
// session; if the send buffer is full, the message is dropped after a 50
// usec timeout rather than blocking the caller.
func (s *Session) queueOut(msg *ServerComMessage) bool {
	if s == nil {
		return true
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logs.Err.Println("s.queueOut: failed to serialize", s.sid, err)
		return false
	}
	return s.queueOutBytes(data)
}

// queueOutBytes attempts to send an already serialized message.
func (s *Session) queueOutBytes(data []byte) bool {
	if s == nil || s.gone.Load() {
		return false
	}

	select {
	case s.send <- data:
	case <-time.After(time.Microsecond * 50):
		logs.Err.Println("s.queueOutBytes: timeout", s.sid)
		return false
	}
	return true
}

// cleanUp unconditionally deregisters the session from the presence
// registry and drops all its topic memberships. It runs exactly once no
// matter how many paths reach it: transport close, explicit {bye}, and
// server shutdown all funnel here.
func (s *Session) cleanUp() {
	if !s.gone.CompareAndSwap(false, true) {
		return
	}

	count := s.fab.sessions.Delete(s)
	s.fab.presence.Deregister(s.sid)
	s.fab.subs.DropSession(s)
	statsInc("LiveSessions", -1)

	logs.Info.Println("session ended", s.sid, s.identity.ID, count)
}

// Message received, convert bytes to ClientComMessage and dispatch.
func (s *Session) dispatchRaw(raw []byte) {
	now := time.Now().UTC().Round(time.Millisecond)

	toLog := raw
	truncated := ""
	if len(raw) > 512 {
		toLog = raw[:512]
		truncated = "<...>"
	}
	logs.Info.Printf("in: '%s%s' sid='%s' uid='%s'", toLog, truncated, s.sid, s.identity.ID)

	var msg ClientComMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logs.Warn.Println("s.dispatch: malformed message", s.sid, err)
		s.queueOut(ErrMalformed("", "", now))
		return
	}

	s.dispatch(&msg)
}

func (s *Session) dispatch(msg *ClientComMessage) {
	s.lastAction = time.Now().UTC().Round(time.Millisecond)
	msg.timestamp = s.lastAction

	var handler func(*ClientComMessage)

	switch {
	case msg.Sub != nil:
		handler = s.subscribe
		msg.id = msg.Sub.Id
		msg.topic = msg.Sub.Topic

	case msg.Leave != nil:
		handler = s.leave
		msg.id = msg.Leave.Id
		msg.topic = msg.Leave.Topic

	case msg.Hi != nil:
		handler = s.hello
		msg.id = msg.Hi.Id

	case msg.Bye != nil:
		handler = s.bye
		msg.id = msg.Bye.Id

	default:
		// Unknown message.
		s.queueOut(ErrMalformed("", "", msg.timestamp))
		logs.Warn.Println("s.dispatch: unknown message", s.sid)
		return
	}

	handler(msg)
}

// Request to subscribe to a topic.
func (s *Session) subscribe(msg *ClientComMessage) {
	t, err := ParseTopic(msg.topic)
	if err != nil {
		statsInc("InvalidTopicRequestsTotal", 1)
		s.queueOut(ErrInvalidTopicReply(msg.id, msg.topic, msg.timestamp))
		return
	}

	if s.fab.subs.Subscribe(s, t) {
		statsInc("TopicSubscriptionsTotal", 1)
		s.queueOut(NoErr(msg.id, msg.topic, msg.timestamp))
	} else {
		s.queueOut(InfoAlreadySubscribed(msg.id, msg.topic, msg.timestamp))
	}
}

// Request to leave a topic. Idempotent: leaving a topic never joined is
// acknowledged, not failed. The personal topic is bound to the connection's
// lifetime and leave requests for it are ignored.
func (s *Session) leave(msg *ClientComMessage) {
	t, err := ParseTopic(msg.topic)
	if err != nil {
		statsInc("InvalidTopicRequestsTotal", 1)
		s.queueOut(ErrInvalidTopicReply(msg.id, msg.topic, msg.timestamp))
		return
	}

	if t == UserTopic(s.identity.ID) {
		s.queueOut(InfoNoAction(msg.id, msg.topic, msg.timestamp))
		return
	}

	if s.fab.subs.Unsubscribe(s, t) {
		s.queueOut(NoErr(msg.id, msg.topic, msg.timestamp))
	} else {
		s.queueOut(InfoNotJoined(msg.id, msg.topic, msg.timestamp))
	}
}

// Client metadata.
func (s *Session) hello(msg *ClientComMessage) {
	if msg.Hi.Version != "" {
		ver := parseVersion(msg.Hi.Version)
		if ver == 0 {
			s.queueOut(ErrMalformed(msg.id, "", msg.timestamp))
			return
		}
		if ver < parseVersion(minSupportedVersion) {
			s.queueOut(ErrVersionNotSupported(msg.id, msg.timestamp))
			return
		}
		s.ver = ver
	}
	s.userAgent = msg.Hi.UserAgent

	s.queueOut(NoErrParams(msg.id, "", msg.timestamp,
		map[string]any{"ver": currentVersion, "build": buildstamp}))
}

// Explicit logout. Acknowledged, then the connection is torn down.
func (s *Session) bye(msg *ClientComMessage) {
	s.queueOut(NoErr(msg.id, "", msg.timestamp))
	s.cleanUp()
	s.closeWS()
}
