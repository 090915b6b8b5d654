package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWorkflowEventShapes(t *testing.T) {
	ev := NewWorkflowFailed("wf-1", "exec-9", "timeout")

	legacy := ev.toLegacyShape()
	if legacy.Name != "workflowFailed" {
		t.Errorf("legacy name: expected 'workflowFailed', got %q", legacy.Name)
	}
	wantFlat := map[string]any{
		"eventId":     ev.ID,
		"timestamp":   ev.Timestamp,
		"workflowId":  "wf-1",
		"executionId": "exec-9",
		"status":      "failed",
		"error":       "timeout",
	}
	if diff := cmp.Diff(wantFlat, legacy.Data); diff != "" {
		t.Errorf("legacy data mismatch (-want +got):\n%s", diff)
	}

	current := ev.toCurrentShape()
	if current.Name != "workflow.failed" {
		t.Errorf("current name: expected 'workflow.failed', got %q", current.Name)
	}
	wantStructured := map[string]any{
		"id":       ev.ID,
		"workflow": ev.Workflow,
	}
	if diff := cmp.Diff(wantStructured, current.Data); diff != "" {
		t.Errorf("current data mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyticsEventShapes(t *testing.T) {
	ev := NewAnalyticsUpdated("active_runs", 42.5, "24h")

	legacy := ev.toLegacyShape()
	if legacy.Name != "analyticsUpdate" {
		t.Errorf("legacy name: expected 'analyticsUpdate', got %q", legacy.Name)
	}
	want := map[string]any{
		"eventId":   ev.ID,
		"timestamp": ev.Timestamp,
		"metric":    "active_runs",
		"value":     42.5,
		"window":    "24h",
	}
	if diff := cmp.Diff(want, legacy.Data); diff != "" {
		t.Errorf("legacy data mismatch (-want +got):\n%s", diff)
	}

	current := ev.toCurrentShape()
	if current.Name != "analytics.updated" {
		t.Errorf("current name: expected 'analytics.updated', got %q", current.Name)
	}
}

func TestNotificationEventShapes(t *testing.T) {
	ev := NewNotification("", "mention", "You were mentioned", "in workflow exports")

	if ev.Notification.ID == "" {
		t.Error("notification id must be generated when empty")
	}

	legacy := ev.toLegacyShape()
	if legacy.Name != "notification" {
		t.Errorf("legacy name: expected 'notification', got %q", legacy.Name)
	}
	current := ev.toCurrentShape()
	if current.Name != "notification.created" {
		t.Errorf("current name: expected 'notification.created', got %q", current.Name)
	}
}

// Both shapes of one event must agree on identity and payload values even
// though the field layout differs.
func TestShapeParity(t *testing.T) {
	cases := []*Event{
		NewWorkflowStarted("wf-1", "exec-1"),
		NewWorkflowCompleted("wf-1", "exec-1"),
		NewWorkflowUpdated("wf-1", "paused"),
		NewAnalyticsUpdated("errors", 3, ""),
		NewIntegrationUpdated("slack", "disconnected", "token revoked"),
		NewNotification("n-1", "info", "title", "msg"),
		NewSystemBroadcast("maintenance", "migrating shards"),
	}

	for _, ev := range cases {
		legacy := ev.toLegacyShape()
		current := ev.toCurrentShape()

		if legacy.Data["eventId"] != ev.ID {
			t.Errorf("%s: legacy eventId mismatch", ev.Kind)
		}
		if current.Data["id"] != ev.ID {
			t.Errorf("%s: current id mismatch", ev.Kind)
		}
		if !legacy.Timestamp.Equal(current.Timestamp) {
			t.Errorf("%s: shape timestamps diverge", ev.Kind)
		}
		if legacy.Name == "" || current.Name == "" {
			t.Errorf("%s: missing wire name", ev.Kind)
		}
		if legacy.Name == current.Name {
			t.Errorf("%s: shapes must use distinct wire names, both %q", ev.Kind, legacy.Name)
		}
	}
}

func TestLegacyNameMapping(t *testing.T) {
	cases := map[EventKind]string{
		EventWorkflowStarted:    "workflowStarted",
		EventWorkflowCompleted:  "workflowCompleted",
		EventWorkflowFailed:     "workflowFailed",
		EventWorkflowUpdated:    "workflowUpdate",
		EventAnalyticsUpdated:   "analyticsUpdate",
		EventIntegrationUpdated: "integrationUpdate",
		EventNotification:       "notification",
		EventSystemBroadcast:    "broadcast",
	}
	for kind, want := range cases {
		if got := legacyEventName(kind); got != want {
			t.Errorf("legacyEventName(%s) = %q, want %q", kind, got, want)
		}
	}
}
