package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func setTestAPIKeySalt(t *testing.T) string {
	t.Helper()
	salt := []byte("publish-test-salt")
	globals.apiKeySalt = salt
	t.Cleanup(func() { globals.apiKeySalt = nil })
	return mintAPIKey(salt, false)
}

func postPublish(f *Fabric, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v0/publish", strings.NewReader(body))
	if key != "" {
		req.Header.Set("X-Fabric-APIKey", key)
	}
	rec := httptest.NewRecorder()
	f.servePublish(rec, req)
	return rec
}

func TestServePublishToTopic(t *testing.T) {
	key := setTestAPIKeySalt(t)
	f := newTestFabric(t)
	s, r, wg := addTestSession(f, "alice")
	f.subs.Subscribe(s, WorkflowTopic("exports"))

	rec := postPublish(f, key,
		`{"topic":"wf:exports","kind":"workflow.updated","workflow":{"id":"exports","status":"running"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: expected 202, got %d, body %s", rec.Code, rec.Body.String())
	}

	// Delivery is asynchronous through the routing queue.
	deadline := time.Now().Add(2 * time.Second)
	for len(s.send) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(s.send)
	wg.Wait()

	names := eventNames(r)
	if len(names) != 2 || names[0] != "workflowUpdate" || names[1] != "workflow.updated" {
		t.Errorf("wrong frames delivered: %v", names)
	}
}

func TestServePublishRejectsWithoutKey(t *testing.T) {
	setTestAPIKeySalt(t)
	f := newTestFabric(t)

	rec := postPublish(f, "",
		`{"topic":"wf:exports","kind":"workflow.updated","workflow":{"id":"exports","status":"running"}}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: expected 403, got %d", rec.Code)
	}
}

func TestServePublishRejectsBadRequests(t *testing.T) {
	key := setTestAPIKeySalt(t)
	f := newTestFabric(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{{{`, http.StatusBadRequest},
		{"unknown kind", `{"topic":"wf:a","kind":"bogus.kind"}`, http.StatusBadRequest},
		{"bad topic", `{"topic":"grp:a","kind":"workflow.updated","workflow":{"id":"a","status":"x"}}`, http.StatusBadRequest},
		{"missing payload", `{"topic":"wf:a","kind":"workflow.updated"}`, http.StatusBadRequest},
		{"no target", `{"kind":"workflow.updated","workflow":{"id":"a","status":"x"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := postPublish(f, key, tc.body); rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestServePublishMethodNotAllowed(t *testing.T) {
	key := setTestAPIKeySalt(t)
	f := newTestFabric(t)

	req := httptest.NewRequest(http.MethodGet, "/v0/publish", nil)
	req.Header.Set("X-Fabric-APIKey", key)
	rec := httptest.NewRecorder()
	f.servePublish(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: expected 405, got %d", rec.Code)
	}
}

func TestServePresence(t *testing.T) {
	key := setTestAPIKeySalt(t)
	f := newTestFabric(t)
	s, _, _ := addTestSession(f, "alice")

	req := httptest.NewRequest(http.MethodGet, "/v0/presence/alice", nil)
	req.Header.Set("X-Fabric-APIKey", key)
	rec := httptest.NewRecorder()
	f.servePresence(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var resp ServerComMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal("bad response body:", err)
	}
	params, ok := resp.Ctrl.Params.(map[string]any)
	if !ok {
		t.Fatalf("params: expected a dict, got %T", resp.Ctrl.Params)
	}
	if params["online"] != true {
		t.Error("alice must be reported online")
	}
	conns, _ := params["connections"].([]any)
	if len(conns) != 1 || conns[0] != s.sid {
		t.Errorf("connections: expected [%s], got %v", s.sid, conns)
	}

	// Unknown identity is reported offline, not failed.
	req = httptest.NewRequest(http.MethodGet, "/v0/presence/nobody", nil)
	req.Header.Set("X-Fabric-APIKey", key)
	rec = httptest.NewRecorder()
	f.servePresence(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status for unknown identity: expected 200, got %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	params, _ = resp.Ctrl.Params.(map[string]any)
	if params["online"] != false {
		t.Error("unknown identity must be reported offline")
	}
}
