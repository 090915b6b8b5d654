/******************************************************************************
 *
 *  Description :
 *
 *    Topic names: typed logical channels the clients subscribe to.
 *
 *****************************************************************************/

package main

import (
	"errors"
	"strings"
)

// TopicKind is the tag of the topic union.
type TopicKind int

// Topic categories.
const (
	// TopicInvalid is the zero, unusable kind.
	TopicInvalid TopicKind = iota
	// TopicUser carries events addressed to all live connections of one
	// identity. Joined automatically at handshake, cannot be left.
	TopicUser
	// TopicWorkflow carries execution updates of one workflow.
	TopicWorkflow
	// TopicAnalytics carries dashboard analytics refreshes for one identity.
	TopicAnalytics
	// TopicIntegrations carries third-party connector status changes for one
	// identity.
	TopicIntegrations
)

// Wire prefixes of topic names.
const (
	prefixUser         = "usr:"
	prefixWorkflow     = "wf:"
	prefixAnalytics    = "ana:"
	prefixIntegrations = "intg:"
)

// ErrInvalidTopic is returned for topic strings which do not parse into one
// of the known kinds with a well-formed id.
var ErrInvalidTopic = errors.New("invalid topic")

const maxTopicIDLength = 64

// Topic is a typed channel name: a kind and an opaque id. Two topics are
// equal iff both kind and id are equal, which makes Topic usable as a map
// key.
type Topic struct {
	Kind TopicKind
	ID   string
}

// UserTopic is the personal topic of one identity.
func UserTopic(identityID string) Topic {
	return Topic{Kind: TopicUser, ID: identityID}
}

// WorkflowTopic is the execution-updates topic of one workflow.
func WorkflowTopic(workflowID string) Topic {
	return Topic{Kind: TopicWorkflow, ID: workflowID}
}

// AnalyticsTopic is the analytics topic of one identity.
func AnalyticsTopic(identityID string) Topic {
	return Topic{Kind: TopicAnalytics, ID: identityID}
}

// IntegrationsTopic is the connector-status topic of one identity.
func IntegrationsTopic(identityID string) Topic {
	return Topic{Kind: TopicIntegrations, ID: identityID}
}

// IsZero reports whether the topic is unset.
func (t Topic) IsZero() bool {
	return t.Kind == TopicInvalid && t.ID == ""
}

// String formats the topic as its wire name, e.g. "wf:1739".
func (t Topic) String() string {
	switch t.Kind {
	case TopicUser:
		return prefixUser + t.ID
	case TopicWorkflow:
		return prefixWorkflow + t.ID
	case TopicAnalytics:
		return prefixAnalytics + t.ID
	case TopicIntegrations:
		return prefixIntegrations + t.ID
	default:
		return ""
	}
}

// ParseTopic parses a wire topic name into a Topic value. Unknown prefixes,
// empty ids and ids with characters outside of [A-Za-z0-9_-] are rejected.
func ParseTopic(name string) (Topic, error) {
	var kind TopicKind
	var id string

	switch {
	case strings.HasPrefix(name, prefixUser):
		kind, id = TopicUser, name[len(prefixUser):]
	case strings.HasPrefix(name, prefixIntegrations):
		kind, id = TopicIntegrations, name[len(prefixIntegrations):]
	case strings.HasPrefix(name, prefixAnalytics):
		kind, id = TopicAnalytics, name[len(prefixAnalytics):]
	case strings.HasPrefix(name, prefixWorkflow):
		kind, id = TopicWorkflow, name[len(prefixWorkflow):]
	default:
		return Topic{}, ErrInvalidTopic
	}

	if !isValidTopicID(id) {
		return Topic{}, ErrInvalidTopic
	}

	return Topic{Kind: kind, ID: id}, nil
}

func isValidTopicID(id string) bool {
	if id == "" || len(id) > maxTopicIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '_' || c == '-') {
			return false
		}
	}
	return true
}
