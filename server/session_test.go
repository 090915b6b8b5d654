package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/zentrio/fabric/server/auth"
)

type Responses struct {
	messages []*ServerComMessage
}

// testWriteLoop drains the session's send queue into the Responses
// collector. Frames arrive serialized, same as on the wire.
func (s *Session) testWriteLoop(results *Responses, wg *sync.WaitGroup) {
	for msg := range s.send {
		var sm ServerComMessage
		if err := json.Unmarshal(msg.([]byte), &sm); err != nil {
			panic("testWriteLoop: bad frame: " + err.Error())
		}
		results.messages = append(results.messages, &sm)
	}
	wg.Done()
}

// stubVerifier accepts any credential as a fixed identity.
type stubVerifier struct {
	ident *auth.Identity
	err   error
}

func (v stubVerifier) Verify(string) (*auth.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.ident, nil
}

func newTestFabric(t *testing.T) *Fabric {
	t.Helper()
	f, err := NewFabric(stubVerifier{ident: &auth.Identity{ID: "test"}}, FabricConfig{})
	if err != nil {
		t.Fatal("NewFabric:", err)
	}
	return f
}

// addTestSession wires up a session the way the websocket handler does:
// stored, registered as present, subscribed to its personal topic.
func addTestSession(f *Fabric, identityID string) (*Session, *Responses, *sync.WaitGroup) {
	s, _ := f.sessions.NewSession(nil, f, &auth.Identity{ID: identityID, Email: identityID + "@example.com"})
	f.presence.Register(identityID, s)
	f.subs.Subscribe(s, UserTopic(identityID))

	r := &Responses{}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go s.testWriteLoop(r, wg)
	return s, r, wg
}

func verifyResponseCodes(r *Responses, codes []int, t *testing.T) {
	t.Helper()
	if len(r.messages) != len(codes) {
		t.Fatalf("responses: expected %d, received %d.", len(codes), len(r.messages))
	}
	for i := 0; i < len(codes); i++ {
		resp := r.messages[i]
		if resp.Ctrl == nil {
			t.Fatalf("Response %d must contain a ctrl message.", i)
		}
		if resp.Ctrl.Code != codes[i] {
			t.Errorf("Response %d code: expected %d, got %d", i, codes[i], resp.Ctrl.Code)
		}
	}
}

func TestDispatchHello(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{
		Hi: &MsgClientHi{Id: "123", Version: "1.4", UserAgent: "test-ua"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusOK}, t)
	if r.messages[0].Ctrl.Params == nil {
		t.Error("Response is expected to contain params dict.")
	}
	if s.userAgent != "test-ua" {
		t.Errorf("Session UA expected to be 'test-ua' vs '%s'", s.userAgent)
	}
	if s.ver == 0 {
		t.Error("s.ver expected to be set")
	}
}

func TestDispatchInvalidVersion(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{
		Hi: &MsgClientHi{Id: "123", Version: "INVALID VERSION STRING"},
	})
	close(s.send)
	wg.Wait()
	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestDispatchUnsupportedVersion(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{
		Hi: &MsgClientHi{Id: "123", Version: "0.1"},
	})
	close(s.send)
	wg.Wait()
	verifyResponseCodes(r, []int{http.StatusHTTPVersionNotSupported}, t)
}

func TestDispatchSubscribe(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "1", Topic: "wf:exports"}})
	// Second subscribe to the same topic is a no-op.
	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "2", Topic: "wf:exports"}})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusOK, http.StatusNotModified}, t)
	if got := len(f.subs.SubscribersOf(WorkflowTopic("exports"))); got != 1 {
		t.Errorf("subscribers: expected 1, got %d", got)
	}
}

func TestDispatchSubscribeInvalidTopic(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "1", Topic: "grp:nope"}})
	close(s.send)
	wg.Wait()
	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestDispatchLeave(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "1", Topic: "ana:alice"}})
	s.dispatch(&ClientComMessage{Leave: &MsgClientLeave{Id: "2", Topic: "ana:alice"}})
	// Leaving a never-joined topic is acknowledged, not failed.
	s.dispatch(&ClientComMessage{Leave: &MsgClientLeave{Id: "3", Topic: "wf:other"}})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusOK, http.StatusOK, http.StatusNotModified}, t)
	if got := len(f.subs.SubscribersOf(AnalyticsTopic("alice"))); got != 0 {
		t.Errorf("subscribers after leave: expected 0, got %d", got)
	}
}

func TestDispatchLeavePersonalTopic(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatch(&ClientComMessage{Leave: &MsgClientLeave{Id: "1", Topic: "usr:alice"}})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusNotModified}, t)
	// Still subscribed: the personal topic is bound to the connection.
	if got := len(f.subs.SubscribersOf(UserTopic("alice"))); got != 1 {
		t.Errorf("personal topic subscribers: expected 1, got %d", got)
	}
}

func TestDispatchMalformed(t *testing.T) {
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")

	s.dispatchRaw([]byte("this is not json"))
	s.dispatch(&ClientComMessage{})
	close(s.send)
	wg.Wait()
	verifyResponseCodes(r, []int{http.StatusBadRequest, http.StatusBadRequest}, t)
}

func TestCleanUpClearsEverything(t *testing.T) {
	f := newTestFabric(t)
	s, _, wg := addTestSession(f, "alice")
	f.subs.Subscribe(s, WorkflowTopic("exports"))

	s.cleanUp()
	close(s.send)
	wg.Wait()

	if f.presence.IsOnline("alice") {
		t.Error("identity still online after cleanUp")
	}
	if f.sessions.Get(s.sid) != nil {
		t.Error("session still in store after cleanUp")
	}
	if got := len(f.subs.SubscribersOf(WorkflowTopic("exports"))); got != 0 {
		t.Errorf("subscribers after cleanUp: expected 0, got %d", got)
	}
	if got := len(f.subs.SubscribersOf(UserTopic("alice"))); got != 0 {
		t.Errorf("personal topic subscribers after cleanUp: expected 0, got %d", got)
	}

	// Second cleanUp is a no-op.
	s.cleanUp()
}

// A session which never subscribed to anything still leaves no presence
// record behind.
func TestCleanUpNeverSubscribed(t *testing.T) {
	f := newTestFabric(t)
	s, _ := f.sessions.NewSession(nil, f, &auth.Identity{ID: "bob"})
	f.presence.Register("bob", s)

	s.cleanUp()

	if f.presence.IsOnline("bob") {
		t.Error("identity still online after cleanUp")
	}
	if got := f.sessions.Count(); got != 0 {
		t.Errorf("session count: expected 0, got %d", got)
	}
}

func TestQueueOutAfterCleanUp(t *testing.T) {
	f := newTestFabric(t)
	s, _ := f.sessions.NewSession(nil, f, &auth.Identity{ID: "carol"})
	f.presence.Register("carol", s)
	s.cleanUp()

	if s.queueOutBytes([]byte("{}")) {
		t.Error("queueOutBytes must fail for a gone session")
	}
}
