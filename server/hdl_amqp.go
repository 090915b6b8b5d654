/******************************************************************************
 *
 *  Description :
 *
 *    Broker ingress: event publish requests consumed from RabbitMQ. The
 *    message body is the same JSON document the REST publish endpoint
 *    accepts; no API key is needed, broker access is the credential.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"

	"github.com/zentrio/fabric/server/logs"
	"github.com/zentrio/fabric/server/queue"
)

// serveAMQP consumes publish requests from the broker until the connection
// or the delivery channel closes.
func (f *Fabric) serveAMQP(q *queue.AMQP) {
	deliveries, err := q.Consume()
	if err != nil {
		logs.Err.Println("amqp: failed to start consuming:", err)
		return
	}

	logs.Info.Println("amqp: consuming broker events")

	for d := range deliveries {
		statsInc("IncomingMessagesAmqpTotal", 1)

		var preq publishReq
		if err := json.Unmarshal(d.Body, &preq); err != nil {
			logs.Warn.Println("amqp: malformed message:", err)
			d.Nack(false, false)
			continue
		}

		ev, problem := eventFromRequest(&preq)
		if problem != "" {
			logs.Warn.Println("amqp: rejected,", problem)
			d.Nack(false, false)
			continue
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
				logs.Warn.Println("amqp: invalid topic", preq.Topic)
				d.Nack(false, false)
				continue
			}
			f.Publish(t, ev)
		default:
			logs.Warn.Println("amqp: rejected, no target")
			d.Nack(false, false)
			continue
		}

		d.Ack(false)
	}

	logs.Info.Println("amqp: delivery channel closed")
}
