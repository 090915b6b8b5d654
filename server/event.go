/******************************************************************************
 *
 *  Description :
 *
 *    Events pushed to clients. Each logical event is a single immutable
 *    value rendered into two wire shapes: the legacy flat shape kept for
 *    older dashboard builds and the current structured shape. Both are
 *    produced from the same Event by the renderers below and emitted
 *    together by the hub, so the shapes cannot drift apart per call site.
 *
 *****************************************************************************/

package main

import (
	"time"

	"github.com/google/uuid"
)

// EventKind doubles as the current-shape wire name of the event.
type EventKind string

// Event categories.
const (
	EventWorkflowStarted    EventKind = "workflow.started"
	EventWorkflowCompleted  EventKind = "workflow.completed"
	EventWorkflowFailed     EventKind = "workflow.failed"
	EventWorkflowUpdated    EventKind = "workflow.updated"
	EventAnalyticsUpdated   EventKind = "analytics.updated"
	EventIntegrationUpdated EventKind = "integration.updated"
	EventNotification       EventKind = "notification.created"
	EventSystemBroadcast    EventKind = "system.broadcast"
)

// WorkflowEventData describes an execution state change of one workflow.
type WorkflowEventData struct {
	WorkflowID  string `json:"id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// AnalyticsEventData describes a refreshed analytics metric.
type AnalyticsEventData struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	// Aggregation window the value was computed over, e.g. "24h".
	Window string `json:"window,omitempty"`
}

// IntegrationEventData describes a status change of a third-party connector.
type IntegrationEventData struct {
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// NotificationEventData is an arbitrary user-facing notification.
type NotificationEventData struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Event is one logical occurrence to be fanned out. Exactly one of the
// payload pointers is set, matching Kind. Events are immutable once
// constructed.
type Event struct {
	// ID is unique per event, shared by both wire shapes.
	ID   string
	Kind EventKind

	Workflow     *WorkflowEventData
	Analytics    *AnalyticsEventData
	Integration  *IntegrationEventData
	Notification *NotificationEventData

	Timestamp time.Time
}

func newEvent(kind EventKind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC().Round(time.Millisecond),
	}
}

// NewWorkflowStarted announces the start of a workflow execution.
func NewWorkflowStarted(workflowID, executionID string) *Event {
	ev := newEvent(EventWorkflowStarted)
	ev.Workflow = &WorkflowEventData{WorkflowID: workflowID, ExecutionID: executionID, Status: "started"}
	return ev
}

// NewWorkflowCompleted announces successful completion of a workflow execution.
func NewWorkflowCompleted(workflowID, executionID string) *Event {
	ev := newEvent(EventWorkflowCompleted)
	ev.Workflow = &WorkflowEventData{WorkflowID: workflowID, ExecutionID: executionID, Status: "completed"}
	return ev
}

// NewWorkflowFailed announces a failed workflow execution.
func NewWorkflowFailed(workflowID, executionID, errText string) *Event {
	ev := newEvent(EventWorkflowFailed)
	ev.Workflow = &WorkflowEventData{WorkflowID: workflowID, ExecutionID: executionID, Status: "failed", Error: errText}
	return ev
}

// NewWorkflowUpdated announces a generic workflow state change.
func NewWorkflowUpdated(workflowID, status string) *Event {
	ev := newEvent(EventWorkflowUpdated)
	ev.Workflow = &WorkflowEventData{WorkflowID: workflowID, Status: status}
	return ev
}

// NewAnalyticsUpdated announces a refreshed analytics metric.
func NewAnalyticsUpdated(metric string, value float64, window string) *Event {
	ev := newEvent(EventAnalyticsUpdated)
	ev.Analytics = &AnalyticsEventData{Metric: metric, Value: value, Window: window}
	return ev
}

// NewIntegrationUpdated announces a connector status change.
func NewIntegrationUpdated(provider, status, errText string) *Event {
	ev := newEvent(EventIntegrationUpdated)
	ev.Integration = &IntegrationEventData{Provider: provider, Status: status, Error: errText}
	return ev
}

// NewNotification builds a user-facing notification. If id is empty, one is
// generated.
func NewNotification(id, kind, title, message string) *Event {
	ev := newEvent(EventNotification)
	if id == "" {
		id = uuid.NewString()
	}
	ev.Notification = &NotificationEventData{ID: id, Kind: kind, Title: title, Message: message}
	return ev
}

// NewSystemBroadcast builds a system-wide announcement, delivered to every
// open connection.
func NewSystemBroadcast(title, message string) *Event {
	ev := newEvent(EventSystemBroadcast)
	ev.Notification = &NotificationEventData{ID: uuid.NewString(), Kind: "system", Title: title, Message: message}
	return ev
}

// legacyEventName maps an event kind to the flat-shape wire name the older
// dashboard builds listen for.
func legacyEventName(kind EventKind) string {
	switch kind {
	case EventWorkflowStarted:
		return "workflowStarted"
	case EventWorkflowCompleted:
		return "workflowCompleted"
	case EventWorkflowFailed:
		return "workflowFailed"
	case EventWorkflowUpdated:
		return "workflowUpdate"
	case EventAnalyticsUpdated:
		return "analyticsUpdate"
	case EventIntegrationUpdated:
		return "integrationUpdate"
	case EventNotification:
		return "notification"
	case EventSystemBroadcast:
		return "broadcast"
	default:
		return string(kind)
	}
}

// toCurrentShape renders the event in the current structured wire shape:
// the payload is nested under a key named after its category.
func (ev *Event) toCurrentShape() *MsgServerEvent {
	data := map[string]any{"id": ev.ID}
	switch {
	case ev.Workflow != nil:
		data["workflow"] = ev.Workflow
	case ev.Analytics != nil:
		data["analytics"] = ev.Analytics
	case ev.Integration != nil:
		data["integration"] = ev.Integration
	case ev.Notification != nil:
		data["notification"] = ev.Notification
	}

	return &MsgServerEvent{
		Name:      string(ev.Kind),
		Data:      data,
		Timestamp: ev.Timestamp,
	}
}

// toLegacyShape renders the event in the legacy flat wire shape: all payload
// fields are hoisted into a single camelCase object with an inline timestamp.
func (ev *Event) toLegacyShape() *MsgServerEvent {
	data := map[string]any{
		"eventId":   ev.ID,
		"timestamp": ev.Timestamp,
	}

	switch {
	case ev.Workflow != nil:
		data["workflowId"] = ev.Workflow.WorkflowID
		data["status"] = ev.Workflow.Status
		if ev.Workflow.ExecutionID != "" {
			data["executionId"] = ev.Workflow.ExecutionID
		}
		if ev.Workflow.Error != "" {
			data["error"] = ev.Workflow.Error
		}
	case ev.Analytics != nil:
		data["metric"] = ev.Analytics.Metric
		data["value"] = ev.Analytics.Value
		if ev.Analytics.Window != "" {
			data["window"] = ev.Analytics.Window
		}
	case ev.Integration != nil:
		data["provider"] = ev.Integration.Provider
		data["status"] = ev.Integration.Status
		if ev.Integration.Error != "" {
			data["error"] = ev.Integration.Error
		}
	case ev.Notification != nil:
		data["id"] = ev.Notification.ID
		data["kind"] = ev.Notification.Kind
		data["title"] = ev.Notification.Title
		if ev.Notification.Message != "" {
			data["message"] = ev.Notification.Message
		}
	}

	return &MsgServerEvent{
		Name:      legacyEventName(ev.Kind),
		Data:      data,
		Timestamp: ev.Timestamp,
	}
}
