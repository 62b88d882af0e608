package websocket

import (
	"context"

	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
)

// handshakeError is a handshake rejection reported to the peer.
type handshakeError struct {
	code    string
	message string
}

func (e *handshakeError) Error() string { return e.message }

func unauthorized(message string) *handshakeError {
	return &handshakeError{code: wire.ErrCodeUnauthorized, message: message}
}

func (s *SocketIOServer) handleConnection(client *socket.Socket) {
	socketID := string(client.Id())

	logger.Infof("Socket.IO connection attempt (socket ID: %s)", socketID)

	authMap := client.Handshake().Auth
	if len(authMap) == 0 {
		logger.Warnf("Socket.IO missing auth data (socket %s)", socketID)
		rejectHandshake(client, wire.ErrCodeUnauthorized, "missing authentication data")
		return
	}

	sd, herr := s.admit(socketID, authMap)
	if herr != nil {
		rejectHandshake(client, herr.code, herr.message)
		return
	}
	sd.attach(client)
	s.socketData.Store(socketID, sd)

	// Disconnect is registered before the connect handshake runs so a peer
	// that drops mid-handshake still releases what it joined.
	client.On("disconnect", func(data ...any) {
		reason := ""
		if len(data) > 0 {
			if r, ok := data[0].(string); ok {
				reason = r
			}
		}
		s.handleDisconnect(socketID, sd, reason)
	})

	if !s.connect(socketID, sd) {
		return
	}
	s.registerClientHandlers(client, sd)
}

// admit validates and authenticates a handshake auth payload. Nothing is
// stored or joined until it succeeds.
func (s *SocketIOServer) admit(socketID string, authMap any) (*SocketData, *handshakeError) {
	var authPayload wire.SocketAuthPayload
	if err := decodeAny(authMap, &authPayload); err != nil {
		logger.Warnf("Socket.IO invalid auth data (socket %s): %v", socketID, err)
		return nil, unauthorized("invalid authentication data")
	}

	// The auth payload carries credentials; log identifiers only.
	logger.Tracef(
		"Socket.IO handshake: clientType=%s sessionId=%s terminalId=%s socketId=%s",
		authPayload.ClientType,
		authPayload.SessionID,
		authPayload.TerminalID,
		socketID,
	)

	handshake, err := handlers.ValidateSocketAuthPayload(authPayload)
	if err != nil {
		logger.Warnf("Socket.IO handshake auth rejected (socket %s): %v", socketID, err)
		return nil, unauthorized(err.Error())
	}

	principal, err := s.authn.Authenticate(handshake.Token, handshake.APIKey)
	if err != nil {
		logger.Warnf("Socket.IO invalid credential (socket %s): %v", socketID, err)
		return nil, unauthorized("invalid credentials")
	}

	logger.Infof("Socket.IO client ready (user: %s, channel: %s)", principal.UserID, handshake.Channel)
	return &SocketData{
		UserID:     principal.UserID,
		UserName:   principal.UserName,
		Channel:    handshake.Channel,
		SessionID:  handshake.SessionID,
		TerminalID: handshake.TerminalID,
	}, nil
}

// connect runs the channel's connect handshake and reports whether the
// socket stays connected.
func (s *SocketIOServer) connect(socketID string, sd *SocketData) bool {
	result := handlers.ChannelConnect(context.Background(), s.deps, sd.authContext(socketID))
	s.apply(socketID, sd, result)
	if result.Disconnect() {
		return false
	}
	sd.markReady()
	return true
}

func (s *SocketIOServer) handleDisconnect(socketID string, sd *SocketData, reason string) {
	a := sd.authContext(socketID)
	logger.Infof(
		"User disconnected: %s (socket %s, channel: %s, reason: %s)",
		a.UserID(),
		socketID,
		a.Channel(),
		reason,
	)

	s.rooms.LeaveAll(socketID)
	s.execs.DropSocket(socketID)
	s.socketData.Delete(socketID)
	if !sd.isReady() {
		return
	}

	ctx := context.Background()
	var result handlers.EventResult
	switch a.Channel() {
	case types.ChannelRelay:
		if a.SessionID() == "" {
			return
		}
		// Run behind any in-flight events so viewers see the final seq
		// before the disconnect notice.
		s.queues.Enqueue(a.SessionID(), func() {
			s.Deliver(handlers.RelayDisconnect(ctx, s.deps, a).Emits())
			s.queues.Release(a.SessionID())
		})
		return
	case types.ChannelViewer:
		result = handlers.ViewerDisconnect(ctx, s.deps, a)
	case types.ChannelRunner:
		result = handlers.RunnerDisconnect(ctx, s.deps, a)
	}
	s.Deliver(result.Emits())
}
