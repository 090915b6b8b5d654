/******************************************************************************
 *
 *  Description :
 *
 *    Handler of websocket connections. Credentials are verified during the
 *    HTTP upgrade; a session exists only for a verified identity.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zentrio/fabric/server/auth"
	"github.com/zentrio/fabric/server/logs"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = idleSessionTimeout

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

func (s *Session) closeWS() {
	if s.proto == WEBSOCK {
		s.ws.Close()
	}
}

func (s *Session) readLoop() {
	defer func() {
		s.closeWS()
		s.cleanUp()
	}()

	s.ws.SetReadLimit(globals.maxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Read a ClientComMessage.
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logs.Err.Println("ws: readLoop", s.sid, err)
			}
			return
		}
		statsInc("IncomingMessagesWebsockTotal", 1)
		s.dispatchRaw(raw)
	}
}

func (s *Session) sendMessage(msg any) bool {
	if len(s.send) > sendQueueLimit {
		logs.Err.Println("ws: outbound queue limit exceeded", s.sid)
		return false
	}

	statsInc("OutgoingMessagesWebsockTotal", 1)
	if err := wsWrite(s.ws, websocket.TextMessage, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			logs.Err.Println("ws: writeLoop", s.sid, err)
		}
		return false
	}
	return true
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		// Break readLoop.
		s.closeWS()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				// Channel closed.
				return
			}
			if !s.sendMessage(msg) {
				return
			}

		case msg := <-s.stop:
			// Shutdown requested, don't care if the message is delivered.
			if msg != nil {
				wsWrite(s.ws, websocket.TextMessage, msg)
			}
			return

		case <-ticker.C:
			if err := wsWrite(s.ws, websocket.PingMessage, nil); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure) {
					logs.Err.Println("ws: writeLoop ping", s.sid, err)
				}
				return
			}
		}
	}
}

// Writes a message with the given message type (mt) and payload.
func wsWrite(ws *websocket.Conn, mt int, msg any) error {
	var bits []byte
	if msg != nil {
		bits = msg.([]byte)
	} else {
		bits = []byte{}
	}
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(mt, bits)
}

// extractCredential pulls the bearer credential from the upgrade request:
// either the Authorization header or, for browser clients which cannot set
// headers on a websocket handshake, the 'token' query parameter.
func extractCredential(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		if cred, found := strings.CutPrefix(h, "Bearer "); found {
			return cred
		}
		return ""
	}
	return req.URL.Query().Get("token")
}

// Handles websocket requests from peers.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow connections from any Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (f *Fabric) serveWebSocket(wrt http.ResponseWriter, req *http.Request) {
	now := time.Now().UTC().Round(time.Millisecond)

	if req.Method != http.MethodGet {
		wrt.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(wrt).Encode(ErrOperationNotAllowed(now))
		logs.Err.Println("ws: invalid HTTP method", req.Method)
		return
	}

	ident, err := f.verifier.Verify(extractCredential(req))
	if err != nil {
		category := auth.FailureCategory(err)
		logs.Warn.Println("ws: rejected connection,", category, "credential;", req.RemoteAddr)
		statsInc("AuthFailuresTotal", 1)
		statsIncAuthFailure(category)
		wrt.Header().Set("Content-Type", "application/json")
		wrt.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(wrt).Encode(ErrAuthFailed(now))
		return
	}

	ws, err := upgrader.Upgrade(wrt, req, nil)
	if _, ok := err.(websocket.HandshakeError); ok {
		logs.Err.Println("ws: not a websocket handshake")
		return
	} else if err != nil {
		logs.Err.Println("ws: failed to Upgrade ", err)
		return
	}

	sess, count := f.sessions.NewSession(ws, f, ident)
	if globals.useXForwardedFor {
		sess.remoteAddr = req.Header.Get("X-Forwarded-For")
		if !isRoutableIP(sess.remoteAddr) {
			sess.remoteAddr = ""
		}
	}
	if sess.remoteAddr == "" {
		sess.remoteAddr = req.RemoteAddr
	}

	// Presence and the personal topic are bound to the connection lifetime,
	// not to a client request.
	f.presence.Register(ident.ID, sess)
	f.subs.Subscribe(sess, UserTopic(ident.ID))

	statsInc("LiveSessions", 1)
	statsInc("TotalSessions", 1)

	logs.Info.Println("ws: session started", sess.sid, ident.ID, sess.remoteAddr, count)

	sess.queueOut(NoErrCreated("", now, map[string]any{
		"user":  ident.ID,
		"ver":   currentVersion,
		"build": buildstamp,
	}))

	// Do work in goroutines to return from serveWebSocket() to release file pointers.
	// Otherwise "too many open files" will happen.
	go sess.writeLoop()
	go sess.readLoop()
}
