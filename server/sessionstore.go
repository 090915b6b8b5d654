/******************************************************************************
 *
 *  Description :
 *
 *    Management of the collection of live sessions.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zentrio/fabric/server/auth"
	"github.com/zentrio/fabric/server/logs"
)

// SessionStore holds live sessions keyed by session ID.
type SessionStore struct {
	lock sync.Mutex

	idgen *sidGenerator

	// All sessions indexed by session ID.
	sessCache map[string]*Session
}

// NewSessionStore initializes a session store.
func NewSessionStore(idgen *sidGenerator) *SessionStore {
	return &SessionStore{
		idgen:     idgen,
		sessCache: make(map[string]*Session),
	}
}

// NewSession creates a new session and saves it to the session store.
func (ss *SessionStore) NewSession(conn any, fab *Fabric, ident *auth.Identity) (*Session, int) {
	s := &Session{
		fab:        fab,
		identity:   ident,
		sid:        ss.idgen.Get(),
		subs:       make(map[Topic]bool),
		lastAction: time.Now().UTC().Round(time.Millisecond),
	}

	switch c := conn.(type) {
	case *websocket.Conn:
		s.proto = WEBSOCK
		s.ws = c
		s.remoteAddr = c.RemoteAddr().String()
	default:
		// Test sessions have no transport attached.
		s.proto = NONE
	}

	s.send = make(chan any, sendQueueLimit+32)
	s.stop = make(chan any, 1)

	ss.lock.Lock()
	if _, found := ss.sessCache[s.sid]; found {
		logs.Err.Fatalln("ss.NewSession: duplicate session ID", s.sid)
	}
	ss.sessCache[s.sid] = s
	count := len(ss.sessCache)
	ss.lock.Unlock()

	return s, count
}

// Get fetches a session from the store by session ID.
func (ss *SessionStore) Get(sid string) *Session {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	return ss.sessCache[sid]
}

// Delete removes a session from the store and returns the number of sessions
// remaining.
func (ss *SessionStore) Delete(s *Session) int {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	delete(ss.sessCache, s.sid)
	return len(ss.sessCache)
}

// Count returns the number of live sessions.
func (ss *SessionStore) Count() int {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	return len(ss.sessCache)
}

// snapshot returns the current sessions as a slice. Used for broadcast
// fan-out: iteration happens outside the store lock.
func (ss *SessionStore) snapshot() []*Session {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	out := make([]*Session, 0, len(ss.sessCache))
	for _, s := range ss.sessCache {
		out = append(out, s)
	}
	return out
}

// Shutdown terminates sessionStore. No need to clean up.
// Don't use the object after Shutdown is called.
func (ss *SessionStore) Shutdown() {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	shutdown, _ := json.Marshal(NoErrShutdown(time.Now().UTC().Round(time.Millisecond)))
	for _, s := range ss.sessCache {
		if s.stop != nil {
			s.stop <- shutdown
		}
	}

	logs.Info.Println("ss.Shutdown: terminated", len(ss.sessCache), "sessions")
	ss.sessCache = make(map[string]*Session)
}
