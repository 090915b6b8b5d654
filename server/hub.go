/******************************************************************************
 *
 *  Description :
 *
 *    Event fan-out engine. A single dispatch goroutine drains the routing
 *    queue so deliveries to the same topic keep their submission order.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"

	"github.com/zentrio/fabric/server/logs"
)

// fanoutReq is a unit of work for the hub: one event aimed at one topic, or
// at every live session when broadcast is set.
type fanoutReq struct {
	topic     Topic
	broadcast bool
	ev        *Event
}

// Hub is the routing hub for events.
type Hub struct {
	// Incoming events to deliver, buffered.
	route chan *fanoutReq

	// Request to shut the hub down.
	shutdown chan chan<- bool

	subs     *SubscriptionManager
	sessions *SessionStore
}

func newHub(subs *SubscriptionManager, sessions *SessionStore) *Hub {
	h := &Hub{
		route:    make(chan *fanoutReq, 4096),
		shutdown: make(chan chan<- bool),
		subs:     subs,
		sessions: sessions,
	}

	go h.run()

	return h
}

// publish queues an event for delivery to one topic. Producers are never
// blocked: if the routing queue is full the event is dropped and counted.
func (h *Hub) publish(t Topic, ev *Event) {
	select {
	case h.route <- &fanoutReq{topic: t, ev: ev}:
	default:
		logs.Err.Println("hub: route queue full, dropping", ev.Kind, t.String())
		statsInc("EventsDroppedTotal", 1)
	}
}

// broadcast queues an event for delivery to every live session.
func (h *Hub) broadcast(ev *Event) {
	select {
	case h.route <- &fanoutReq{broadcast: true, ev: ev}:
	default:
		logs.Err.Println("hub: route queue full, dropping broadcast", ev.Kind)
		statsInc("EventsDroppedTotal", 1)
	}
}

func (h *Hub) run() {
	for {
		select {
		case req := <-h.route:
			h.deliver(req)

		case done := <-h.shutdown:
			// Drain whatever is already queued, then stop.
			for {
				select {
				case req := <-h.route:
					h.deliver(req)
					continue
				default:
				}
				break
			}
			done <- true
			return
		}
	}
}

// deliver renders both wire shapes of the event once, then writes the
// serialized frames to each target session. A slow or dead subscriber never
// affects the others: its frame is dropped and counted.
func (h *Hub) deliver(req *fanoutReq) {
	ev := req.ev

	legacy, err := json.Marshal(&ServerComMessage{Evt: ev.toLegacyShape()})
	if err != nil {
		logs.Err.Println("hub: failed to serialize legacy shape", ev.ID, err)
		return
	}
	current, err := json.Marshal(&ServerComMessage{Evt: ev.toCurrentShape()})
	if err != nil {
		logs.Err.Println("hub: failed to serialize current shape", ev.ID, err)
		return
	}

	var targets []*Session
	if req.broadcast {
		targets = h.sessions.snapshot()
	} else {
		targets = h.subs.SubscribersOf(req.topic)
	}

	statsInc("EventsPublishedTotal", 1)

	delivered := 0
	for _, s := range targets {
		if s.gone.Load() {
			// The session died between snapshot and write. Drop the
			// stale subscription record while we are here.
			if !req.broadcast {
				h.subs.discard(req.topic, s.sid)
			}
			continue
		}
		ok := s.queueOutBytes(legacy)
		ok = s.queueOutBytes(current) && ok
		if ok {
			delivered++
		} else {
			statsInc("EventsUndeliveredTotal", 1)
		}
	}
	statsInc("EventsDeliveredTotal", delivered)
}

// stop shuts the hub down after draining queued events.
func (h *Hub) stop() {
	done := make(chan bool)
	h.shutdown <- done
	<-done
}
