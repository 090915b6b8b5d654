package main

/******************************************************************************
 *
 *  Description :
 *
 *    Wire protocol structures
 *
 *****************************************************************************/

import (
	"net/http"
	"time"
)

// Client to Server (C2S) messages.

// MsgClientHi is a client metadata {hi} message.
type MsgClientHi struct {
	// Message Id
	Id string `json:"id,omitempty"`
	// User agent
	UserAgent string `json:"ua,omitempty"`
	// Protocol version, i.e. "1.0"
	Version string `json:"ver,omitempty"`
}

// MsgClientSub is a subscription request {sub} message.
type MsgClientSub struct {
	Id string `json:"id,omitempty"`
	// Wire name of the topic to join, e.g. "wf:batch-exports".
	Topic string `json:"topic"`
}

// MsgClientLeave is an unsubscribe request {leave} message.
type MsgClientLeave struct {
	Id string `json:"id,omitempty"`
	// Wire name of the topic to leave.
	Topic string `json:"topic"`
}

// MsgClientBye is an explicit logout {bye} message. The server acknowledges
// it, then tears the connection down.
type MsgClientBye struct {
	Id string `json:"id,omitempty"`
}

// ClientComMessage is a wrapper for client messages.
type ClientComMessage struct {
	Hi    *MsgClientHi    `json:"hi,omitempty"`
	Sub   *MsgClientSub   `json:"sub,omitempty"`
	Leave *MsgClientLeave `json:"leave,omitempty"`
	Bye   *MsgClientBye   `json:"bye,omitempty"`

	// Internal fields, not exposed to the wire.

	// Message ID denormalized.
	id string
	// Topic name denormalized from the payload.
	topic string
	// Timestamp when this message was received by the server.
	timestamp time.Time
}

// Server to Client (S2C) messages.

// MsgServerCtrl is a server control message {ctrl}: acknowledgements,
// errors, session lifecycle notices.
type MsgServerCtrl struct {
	Id     string `json:"id,omitempty"`
	Topic  string `json:"topic,omitempty"`
	Params any    `json:"params,omitempty"`

	Code      int       `json:"code"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// MsgServerEvent is a pushed event {evt}. Every logical event is emitted
// twice: once under its legacy flat name and shape, once under its current
// structured name and shape. Data layouts are produced in event.go.
type MsgServerEvent struct {
	// Wire name of the event, e.g. "workflowUpdate" (legacy) or
	// "workflow.updated" (current).
	Name string `json:"name"`
	// Shape-specific payload.
	Data map[string]any `json:"data"`

	Timestamp time.Time `json:"ts"`
}

// ServerComMessage is a wrapper for server-side messages.
type ServerComMessage struct {
	Ctrl *MsgServerCtrl  `json:"ctrl,omitempty"`
	Evt  *MsgServerEvent `json:"evt,omitempty"`
}

// Generators of server-side control messages {ctrl}.

// NoErr indicates successful completion (200).
func NoErr(id, topic string, ts time.Time) *ServerComMessage {
	return NoErrParams(id, topic, ts, nil)
}

// NoErrParams indicates successful completion with additional parameters (200).
func NoErrParams(id, topic string, ts time.Time, params any) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusOK, // 200
		Text:      "ok",
		Topic:     topic,
		Params:    params,
		Timestamp: ts}}
}

// NoErrCreated indicates successful session creation (201).
func NoErrCreated(id string, ts time.Time, params any) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusCreated, // 201
		Text:      "created",
		Params:    params,
		Timestamp: ts}}
}

// NoErrShutdown means the connection is closed because the server is
// shutting down (205).
func NoErrShutdown(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      http.StatusResetContent, // 205
		Text:      "server shutdown",
		Timestamp: ts}}
}

// InfoAlreadySubscribed means the request to subscribe was ignored because
// the session is already subscribed (304).
func InfoAlreadySubscribed(id, topic string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotModified, // 304
		Text:      "already subscribed",
		Topic:     topic,
		Timestamp: ts}}
}

// InfoNotJoined means the request to leave was ignored because the session
// was not subscribed in the first place (304).
func InfoNotJoined(id, topic string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotModified, // 304
		Text:      "not joined",
		Topic:     topic,
		Timestamp: ts}}
}

// InfoNoAction means the request was valid but the server took no action
// (304). Sent for attempts to leave the personal topic, which is bound to
// the connection's lifetime.
func InfoNoAction(id, topic string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotModified, // 304
		Text:      "no action",
		Topic:     topic,
		Timestamp: ts}}
}

// ErrMalformed means the message could not be parsed (400).
func ErrMalformed(id, topic string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusBadRequest, // 400
		Text:      "malformed",
		Topic:     topic,
		Timestamp: ts}}
}

// ErrInvalidTopicReply means the topic in a subscribe or leave request did
// not parse into a known topic kind (400).
func ErrInvalidTopicReply(id, topic string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusBadRequest, // 400
		Text:      "invalid topic",
		Topic:     topic,
		Timestamp: ts}}
}

// ErrAuthFailed means the handshake credential was rejected (401).
func ErrAuthFailed(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      http.StatusUnauthorized, // 401
		Text:      "authentication failed",
		Timestamp: ts}}
}

// ErrAPIKeyRequired means the publish request was missing a valid API key (403).
func ErrAPIKeyRequired(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      http.StatusForbidden, // 403
		Text:      "valid API key required",
		Timestamp: ts}}
}

// ErrOperationNotAllowed means the HTTP method or message is not supported (405).
func ErrOperationNotAllowed(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      http.StatusMethodNotAllowed, // 405
		Text:      "operation not allowed",
		Timestamp: ts}}
}

// ErrVersionNotSupported means the client protocol version is too old (505).
func ErrVersionNotSupported(id string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusHTTPVersionNotSupported, // 505
		Text:      "version not supported",
		Timestamp: ts}}
}

// ErrUnknown means an internal failure while handling a request (500).
func ErrUnknown(id, topic string, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusInternalServerError, // 500
		Text:      "internal error",
		Topic:     topic,
		Timestamp: ts}}
}
