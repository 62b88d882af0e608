package websocket

import (
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
)

func (s *SocketIOServer) registerClientHandlers(client *socket.Socket, sd *SocketData) {
	switch sd.channel() {
	case types.ChannelRelay:
		s.registerRelayHandlers(client, sd)
	case types.ChannelViewer:
		s.registerViewerHandlers(client, sd)
	case types.ChannelRunner:
		s.registerRunnerHandlers(client, sd)
	case types.ChannelTerminal:
		s.registerTerminalHandlers(client, sd)
	case types.ChannelHub:
		// Read-only channel.
	}
}

func (s *SocketIOServer) registerRelayHandlers(client *socket.Socket, sd *SocketData) {
	socketID := string(client.Id())
	client.On("register", func(data ...any) {
		req, ack, ok := decodeEvent[wire.RegisterPayload]("register", socketID, data)
		if !ok {
			return
		}
		s.relayRegister(socketID, sd, req, ack)
	})

	onSessionEvent[wire.RelayEventPayload](s, client, sd, "event",
		func(req wire.RelayEventPayload) string { return req.SessionID },
		handlers.RelayEvent, nil)

	// The session's worker retires once session_end has run and nothing
	// else is queued behind it.
	onSessionEvent[wire.SessionEndPayload](s, client, sd, "session_end",
		func(req wire.SessionEndPayload) string { return req.SessionID },
		handlers.RelaySessionEnd, s.queues.Release)

	onTypedEvent[wire.ExecResultPayload](s, client, sd, "exec_result", handlers.RelayExecResult)
	onTypedEvent[wire.SessionMessagePayload](s, client, sd, "session_message", handlers.RelaySessionMessage)
}

func (s *SocketIOServer) registerViewerHandlers(client *socket.Socket, sd *SocketData) {
	onTypedEvent[wire.InputPayload](s, client, sd, "input", handlers.ViewerInput)
	onTypedEvent[wire.ModelSetPayload](s, client, sd, "model_set", handlers.ViewerModelSet)
	onTypedEvent[wire.ExecPayload](s, client, sd, "exec", handlers.ViewerExec)
	onTypedAck[struct{}](s, client, sd, "resync", handlers.ViewerResync)
}

func (s *SocketIOServer) registerRunnerHandlers(client *socket.Socket, sd *SocketData) {
	onTypedAck[wire.RegisterRunnerPayload](s, client, sd, "register_runner", handlers.RunnerRegister)
	onTypedEvent[wire.RunnerUpdatePayload](s, client, sd, "runner_update", handlers.RunnerUpdate)
	onTypedEvent[wire.SessionReadyPayload](s, client, sd, "session_ready", handlers.RunnerSessionReady)
	onTypedEvent[wire.SessionErrorPayload](s, client, sd, "session_error", handlers.RunnerSessionError)
	onTypedEvent[wire.TerminalReadyPayload](s, client, sd, "terminal_ready", handlers.RunnerTerminalReady)
	onTypedEvent[wire.TerminalDataPayload](s, client, sd, "terminal_data", handlers.RunnerTerminalData)
	onTypedEvent[wire.TerminalExitPayload](s, client, sd, "terminal_exit", handlers.RunnerTerminalExit)
	onTypedEvent[wire.TerminalErrorPayload](s, client, sd, "terminal_error", handlers.RunnerTerminalError)
}

func (s *SocketIOServer) registerTerminalHandlers(client *socket.Socket, sd *SocketData) {
	onTypedEvent[wire.TerminalInputPayload](s, client, sd, "terminal_input", handlers.TerminalInput)
	onTypedEvent[wire.TerminalResizePayload](s, client, sd, "terminal_resize", handlers.TerminalResize)
	onTypedEvent[wire.KillTerminalPayload](s, client, sd, "kill_terminal", handlers.TerminalKill)
}

// relayRegister runs a register that names an existing session on that
// session's queue, behind its in-flight events. A fresh register has no
// session to contend with and runs inline.
func (s *SocketIOServer) relayRegister(socketID string, sd *SocketData, req wire.RegisterPayload, ack func(...any)) {
	if req.SessionID == "" {
		runEvent(s, socketID, sd, handlers.RelayRegister, req, ack)
		return
	}
	queueSessionEvent(s, socketID, sd, "register", req.SessionID, handlers.RelayRegister, nil, req, ack)
}
