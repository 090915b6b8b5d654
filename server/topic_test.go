package main

import (
	"strings"
	"testing"
)

func TestParseTopic(t *testing.T) {
	cases := []struct {
		name string
		want Topic
	}{
		{"usr:alice", Topic{Kind: TopicUser, ID: "alice"}},
		{"usr:u-123_456", Topic{Kind: TopicUser, ID: "u-123_456"}},
		{"wf:batch-exports", Topic{Kind: TopicWorkflow, ID: "batch-exports"}},
		{"ana:rev_7", Topic{Kind: TopicAnalytics, ID: "rev_7"}},
		{"intg:slack", Topic{Kind: TopicIntegrations, ID: "slack"}},
	}
	for _, tc := range cases {
		got, err := ParseTopic(tc.name)
		if err != nil {
			t.Errorf("ParseTopic(%q): unexpected error %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTopic(%q) = %+v, want %+v", tc.name, got, tc.want)
		}
		if got.String() != tc.name {
			t.Errorf("Topic.String() = %q, want %q", got.String(), tc.name)
		}
	}
}

func TestParseTopicRejects(t *testing.T) {
	invalid := []string{
		"",
		"alice",
		"usr:",
		"wf:",
		"grp:alice",
		"usralice",
		"wfexports",
		"USR:alice",
		"usr:ali ce",
		"usr:ali/ce",
		"wf:" + strings.Repeat("a", 65),
		":alice",
		"usr",
	}
	for _, name := range invalid {
		if got, err := ParseTopic(name); err != ErrInvalidTopic {
			t.Errorf("ParseTopic(%q) = (%+v, %v), want ErrInvalidTopic", name, got, err)
		}
	}
}

func TestParseTopicMaxLengthID(t *testing.T) {
	name := "wf:" + strings.Repeat("a", 64)
	if _, err := ParseTopic(name); err != nil {
		t.Errorf("ParseTopic(%q): unexpected error %v", name, err)
	}
}

func TestTopicConstructors(t *testing.T) {
	if got := UserTopic("alice").String(); got != "usr:alice" {
		t.Errorf("UserTopic: got %q", got)
	}
	if got := WorkflowTopic("exports").String(); got != "wf:exports" {
		t.Errorf("WorkflowTopic: got %q", got)
	}
	if got := AnalyticsTopic("alice").String(); got != "ana:alice" {
		t.Errorf("AnalyticsTopic: got %q", got)
	}
	if got := IntegrationsTopic("alice").String(); got != "intg:alice" {
		t.Errorf("IntegrationsTopic: got %q", got)
	}
	if !(Topic{}).IsZero() {
		t.Error("zero Topic must report IsZero")
	}
	if UserTopic("alice").IsZero() {
		t.Error("non-zero Topic must not report IsZero")
	}
}
