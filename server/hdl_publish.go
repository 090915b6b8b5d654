/******************************************************************************
 *
 *  Description :
 *
 *    REST ingress for backend services: event publishing and presence
 *    probes. Guarded by an API key, not by end-user credentials.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/zentrio/fabric/server/logs"
)

// Maximum size of an accepted publish request body.
const maxPublishBodySize = 1 << 18

// publishReq is the body of a POST /v0/publish request. Exactly one
// addressing field must be set: Topic, User, or Broadcast.
type publishReq struct {
	// Target topic in wire form, e.g. "wf:batch-exports".
	Topic string `json:"topic,omitempty"`
	// Target identity: deliver to all of the identity's connections.
	User string `json:"user,omitempty"`
	// Deliver to every live session.
	Broadcast bool `json:"broadcast,omitempty"`

	// Event kind, e.g. "workflow.updated".
	Kind string `json:"kind"`

	// Kind-specific payloads. The one matching the kind's category must
	// be present.
	Workflow     *WorkflowEventData     `json:"workflow,omitempty"`
	Analytics    *AnalyticsEventData    `json:"analytics,omitempty"`
	Integration  *IntegrationEventData  `json:"integration,omitempty"`
	Notification *NotificationEventData `json:"notification,omitempty"`
}

// eventFromRequest validates the request and assembles the Event.
func eventFromRequest(preq *publishReq) (*Event, string) {
	switch kind := EventKind(preq.Kind); kind {
	case EventWorkflowStarted, EventWorkflowCompleted, EventWorkflowFailed, EventWorkflowUpdated:
		if preq.Workflow == nil || preq.Workflow.WorkflowID == "" {
			return nil, "workflow payload is required"
		}
		ev := newEvent(kind)
		wf := *preq.Workflow
		ev.Workflow = &wf
		return ev, ""

	case EventAnalyticsUpdated:
		if preq.Analytics == nil || preq.Analytics.Metric == "" {
			return nil, "analytics payload is required"
		}
		return NewAnalyticsUpdated(preq.Analytics.Metric, preq.Analytics.Value, preq.Analytics.Window), ""

	case EventIntegrationUpdated:
		if preq.Integration == nil || preq.Integration.Provider == "" {
			return nil, "integration payload is required"
		}
		return NewIntegrationUpdated(preq.Integration.Provider, preq.Integration.Status, preq.Integration.Error), ""

	case EventNotification:
		if preq.Notification == nil || preq.Notification.Title == "" {
			return nil, "notification payload is required"
		}
		n := preq.Notification
		return NewNotification(n.ID, n.Kind, n.Title, n.Message), ""

	case EventSystemBroadcast:
		if preq.Notification == nil || preq.Notification.Title == "" {
			return nil, "notification payload is required"
		}
		return NewSystemBroadcast(preq.Notification.Title, preq.Notification.Message), ""

	default:
		return nil, "unknown event kind"
	}
}

func writeJSON(wrt http.ResponseWriter, code int, msg *ServerComMessage) {
	wrt.Header().Set("Content-Type", "application/json")
	wrt.WriteHeader(code)
	json.NewEncoder(wrt).Encode(msg)
}

// servePublish handles POST /v0/publish.
func (f *Fabric) servePublish(wrt http.ResponseWriter, req *http.Request) {
	now := time.Now().UTC().Round(time.Millisecond)

	if isValid, _ := checkAPIKey(getAPIKey(req)); !isValid {
		logs.Warn.Println("publish: missing or invalid API key;", req.RemoteAddr)
		writeJSON(wrt, http.StatusForbidden, ErrAPIKeyRequired(now))
		return
	}

	if req.Method != http.MethodPost {
		writeJSON(wrt, http.StatusMethodNotAllowed, ErrOperationNotAllowed(now))
		return
	}

	var preq publishReq
	decoder := json.NewDecoder(http.MaxBytesReader(wrt, req.Body, maxPublishBodySize))
	if err := decoder.Decode(&preq); err != nil {
		logs.Warn.Println("publish: malformed request", err)
		writeJSON(wrt, http.StatusBadRequest, ErrMalformed("", "", now))
		return
	}

	ev, problem := eventFromRequest(&preq)
	if problem != "" {
		logs.Warn.Println("publish: rejected,", problem)
		writeJSON(wrt, http.StatusBadRequest, ErrMalformed("", "", now))
		return
	}

	switch {
	case preq.Broadcast:
		f.Broadcast(ev)

	case preq.User != "":
		f.PublishToUser(preq.User, ev)

	case preq.Topic != "":
		t, err := ParseTopic(preq.Topic)
		if err != nil {
			statsInc("InvalidTopicRequestsTotal", 1)
			writeJSON(wrt, http.StatusBadRequest, ErrInvalidTopicReply("", preq.Topic, now))
			return
		}
		f.Publish(t, ev)

	default:
		logs.Warn.Println("publish: rejected, no target")
		writeJSON(wrt, http.StatusBadRequest, ErrMalformed("", "", now))
		return
	}

	writeJSON(wrt, http.StatusAccepted, NoErrParams("", "", now, map[string]any{"event": ev.ID}))
}

// servePresence handles GET /v0/presence/{identity}: an online probe for
// backend services deciding between live delivery and fallback channels.
func (f *Fabric) servePresence(wrt http.ResponseWriter, req *http.Request) {
	now := time.Now().UTC().Round(time.Millisecond)

	if isValid, _ := checkAPIKey(getAPIKey(req)); !isValid {
		logs.Warn.Println("presence: missing or invalid API key;", req.RemoteAddr)
		writeJSON(wrt, http.StatusForbidden, ErrAPIKeyRequired(now))
		return
	}

	if req.Method != http.MethodGet {
		writeJSON(wrt, http.StatusMethodNotAllowed, ErrOperationNotAllowed(now))
		return
	}

	identity := strings.TrimPrefix(req.URL.Path, "/v0/presence/")
	if identity == "" || strings.Contains(identity, "/") {
		writeJSON(wrt, http.StatusBadRequest, ErrMalformed("", "", now))
		return
	}

	conns := f.OnlineConnections(identity)
	writeJSON(wrt, http.StatusOK, NoErrParams("", "", now, map[string]any{
		"user":        identity,
		"online":      len(conns) > 0,
		"connections": conns,
	}))
}
