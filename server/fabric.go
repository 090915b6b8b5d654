/******************************************************************************
 *
 *  Description :
 *
 *    Top-level assembly of the event fabric: identity verifier, session
 *    store, presence registry, subscription manager and routing hub wired
 *    together behind one publishing facade.
 *
 *****************************************************************************/

package main

import (
	"crypto/rand"
	"errors"

	"github.com/zentrio/fabric/server/auth"
)

// FabricConfig is runtime configuration of the fabric core.
type FabricConfig struct {
	// Snowflake worker ID for session ID generation, 0-1023.
	WorkerID uint

	// 16-byte key used to obfuscate session IDs. Random if empty.
	SidKey []byte
}

// Fabric is the event fabric: everything needed to accept connections and
// route events to them.
type Fabric struct {
	verifier auth.Verifier

	idgen    *sidGenerator
	sessions *SessionStore
	presence *PresenceRegistry
	subs     *SubscriptionManager
	hub      *Hub
}

// NewFabric assembles a fabric around the given credential verifier.
func NewFabric(verifier auth.Verifier, config FabricConfig) (*Fabric, error) {
	if verifier == nil {
		return nil, errors.New("fabric: verifier is required")
	}

	key := config.SidKey
	if len(key) == 0 {
		key = make([]byte, 16)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	idgen := &sidGenerator{}
	if err := idgen.Init(config.WorkerID, key); err != nil {
		return nil, err
	}

	f := &Fabric{
		verifier: verifier,
		idgen:    idgen,
		sessions: NewSessionStore(idgen),
		presence: NewPresenceRegistry(),
		subs:     NewSubscriptionManager(),
	}
	f.hub = newHub(f.subs, f.sessions)

	return f, nil
}

// Publish routes an event to the subscribers of a topic.
func (f *Fabric) Publish(t Topic, ev *Event) {
	f.hub.publish(t, ev)
}

// PublishToUser routes an event to every live connection of one identity.
func (f *Fabric) PublishToUser(identityID string, ev *Event) {
	f.hub.publish(UserTopic(identityID), ev)
}

// Broadcast routes an event to every live session regardless of topic
// membership.
func (f *Fabric) Broadcast(ev *Event) {
	f.hub.broadcast(ev)
}

// IsOnline reports whether an identity has at least one live connection.
func (f *Fabric) IsOnline(identityID string) bool {
	return f.presence.IsOnline(identityID)
}

// OnlineConnections lists session IDs of an identity's live connections.
func (f *Fabric) OnlineConnections(identityID string) []string {
	return f.presence.OnlineConnections(identityID)
}

// Shutdown stops the hub after draining queued events, then terminates all
// live sessions.
func (f *Fabric) Shutdown() {
	f.hub.stop()
	f.sessions.Shutdown()
}
