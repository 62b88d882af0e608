package websocket

import (
	"context"

	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
)

type handlerFunc[Req any] func(context.Context, handlers.Deps, handlers.AuthContext, Req) handlers.EventResult

// apply performs a handler result for the calling socket: room changes
// first, then bindings, emissions and finally a requested disconnect.
func (s *SocketIOServer) apply(socketID string, sd *SocketData, result handlers.EventResult) {
	for _, room := range result.Leaves() {
		s.rooms.Leave(socketID, room)
	}
	for _, room := range result.Joins() {
		s.rooms.Join(socketID, room)
	}
	sd.bind(result.Binding())
	s.Deliver(result.Emits())
	if result.Disconnect() {
		sd.disconnect()
	}
}

// decodeEvent extracts the payload and optional ack callback. Payloads that
// do not decode are dropped.
func decodeEvent[Req any](event, socketID string, data []any) (Req, func(...any), bool) {
	var req Req
	raw, ack := getFirstAnyWithAck(data)
	if raw == nil {
		return req, ack, true
	}
	if err := decodeAny(raw, &req); err != nil {
		logger.Debugf("Dropping malformed %s from socket %s: %v", event, socketID, err)
		return req, ack, false
	}
	return req, ack, true
}

// runEvent runs the handler with the socket's current identity, answers the
// ack and then applies the result.
func runEvent[Req any](s *SocketIOServer, socketID string, sd *SocketData, handler handlerFunc[Req], req Req, ack func(...any)) {
	result := handler(context.Background(), s.deps, sd.authContext(socketID), req)
	if ack != nil {
		ack(result.Ack())
	}
	s.apply(socketID, sd, result)
}

// queueSessionEvent runs the handler on the session's ordered queue, so
// events for one session are sequenced and fanned out in arrival order. An
// empty sessionID falls back to the socket's bound session. after, when
// set, runs on the queue once the handler's result is applied.
func queueSessionEvent[Req any](
	s *SocketIOServer,
	socketID string,
	sd *SocketData,
	event string,
	sessionID string,
	handler handlerFunc[Req],
	after func(sessionID string),
	req Req,
	ack func(...any),
) bool {
	if sessionID == "" {
		sessionID = sd.sessionID()
	}
	if sessionID == "" {
		logger.Debugf("Dropping %s without session from socket %s", event, socketID)
		return false
	}
	return s.queues.Enqueue(sessionID, func() {
		runEvent(s, socketID, sd, handler, req, ack)
		if after != nil {
			after(sessionID)
		}
	})
}

// onTypedAck decodes, runs the handler, answers the ack and then applies the
// result.
func onTypedAck[Req any](
	s *SocketIOServer,
	client *socket.Socket,
	sd *SocketData,
	event string,
	handler handlerFunc[Req],
) {
	socketID := string(client.Id())
	client.On(event, func(data ...any) {
		req, ack, ok := decodeEvent[Req](event, socketID, data)
		if !ok {
			return
		}
		runEvent(s, socketID, sd, handler, req, ack)
	})
}

// onTypedEvent is onTypedAck without an acknowledgement.
func onTypedEvent[Req any](
	s *SocketIOServer,
	client *socket.Socket,
	sd *SocketData,
	event string,
	handler handlerFunc[Req],
) {
	socketID := string(client.Id())
	client.On(event, func(data ...any) {
		req, _, ok := decodeEvent[Req](event, socketID, data)
		if !ok {
			return
		}
		runEvent(s, socketID, sd, handler, req, nil)
	})
}

// onSessionEvent registers an event that runs on the target session's queue.
// sessionOf names the session an event targets.
func onSessionEvent[Req any](
	s *SocketIOServer,
	client *socket.Socket,
	sd *SocketData,
	event string,
	sessionOf func(Req) string,
	handler handlerFunc[Req],
	after func(sessionID string),
) {
	socketID := string(client.Id())
	client.On(event, func(data ...any) {
		req, ack, ok := decodeEvent[Req](event, socketID, data)
		if !ok {
			return
		}
		queueSessionEvent(s, socketID, sd, event, sessionOf(req), handler, after, req, ack)
	})
}
