package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/internal/spawnack"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/gin-gonic/gin"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
	sockettypes "github.com/zishang520/socket.io/v3/pkg/types"
)

// Options tunes the Socket.IO server.
type Options struct {
	// Path is the engine.io mount path.
	Path string
	// PingInterval controls how often clients are pinged. It bounds how
	// quickly an abruptly closed agent is marked inactive.
	PingInterval time.Duration
	// PingTimeout is how long to wait for a pong before dropping a socket.
	PingTimeout time.Duration
	// SpawnTimeout bounds how long Spawn waits for the runner's ack.
	SpawnTimeout time.Duration
	// PublicURL is the base of share URLs.
	PublicURL string
}

func (o Options) withDefaults() Options {
	if o.Path == "" {
		o.Path = "/socket.io"
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 5 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 15 * time.Second
	}
	if o.SpawnTimeout <= 0 {
		o.SpawnTimeout = 30 * time.Second
	}
	return o
}

// SocketIOServer carries the five relay channels over one Socket.IO
// endpoint.
type SocketIOServer struct {
	server  *socket.Server
	authn   *auth.Authenticator
	origins *auth.OriginPolicy
	spawns  *spawnack.Coordinator
	deps    handlers.Deps
	opts    Options

	socketData sync.Map // socket id -> *SocketData
	rooms      *Rooms
	execs      *ExecRegistry
	queues     *SessionQueues
}

// NewSocketIOServer creates the relay's Socket.IO server.
func NewSocketIOServer(
	dir *directory.Directory,
	authn *auth.Authenticator,
	origins *auth.OriginPolicy,
	spawns *spawnack.Coordinator,
	opts Options,
) *SocketIOServer {
	opts = opts.withDefaults()

	sopts := socket.DefaultServerOptions()
	// Origins are enforced by HandleSocketIO before the request reaches the
	// engine, so the engine itself answers any origin.
	sopts.SetCors(&sockettypes.Cors{
		Origin:      "*",
		Credentials: false,
	})
	sopts.SetPingTimeout(opts.PingTimeout)
	sopts.SetPingInterval(opts.PingInterval)
	sopts.SetPath(opts.Path)

	s := &SocketIOServer{
		server:  socket.NewServer(nil, sopts),
		authn:   authn,
		origins: origins,
		spawns:  spawns,
		opts:    opts,
		rooms:   NewRooms(),
		execs:   NewExecRegistry(),
		queues:  NewSessionQueues(),
	}
	s.deps = handlers.NewDeps(dir, dir, spawns, s.execs, opts.PublicURL, time.Now, types.NewID, types.NewToken)

	s.server.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		s.handleConnection(client)
	})
	return s
}

// SocketData stores connection metadata for each socket.
type SocketData struct {
	mu         sync.RWMutex
	UserID     string
	UserName   string
	Channel    types.ChannelType
	SessionID  string
	RunnerID   string
	TerminalID string

	// send and drop reach the underlying socket.
	send func(event string, payload any)
	drop func()

	// ready is set once the channel's connect handshake succeeded.
	ready bool
}

// attach points the socket data at a live Socket.IO socket.
func (sd *SocketData) attach(client *socket.Socket) {
	sd.send = func(event string, payload any) { client.Emit(event, payload) }
	sd.drop = func() { client.Disconnect(true) }
}

func (sd *SocketData) disconnect() {
	if sd.drop != nil {
		sd.drop()
	}
}

// authContext snapshots the socket's identity for one handler call.
func (sd *SocketData) authContext(socketID string) handlers.AuthContext {
	sd.mu.RLock()
	defer sd.mu.RUnlock()
	return handlers.NewAuthContext(sd.UserID, sd.Channel, socketID).
		WithUserName(sd.UserName).
		WithSession(sd.SessionID).
		WithRunner(sd.RunnerID).
		WithTerminal(sd.TerminalID)
}

func (sd *SocketData) bind(b handlers.Binding) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if b.SessionID != "" {
		sd.SessionID = b.SessionID
	}
	if b.RunnerID != "" {
		sd.RunnerID = b.RunnerID
	}
}

func (sd *SocketData) markReady() {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.ready = true
}

func (sd *SocketData) isReady() bool {
	sd.mu.RLock()
	defer sd.mu.RUnlock()
	return sd.ready
}

func (sd *SocketData) channel() types.ChannelType {
	sd.mu.RLock()
	defer sd.mu.RUnlock()
	return sd.Channel
}

func (sd *SocketData) sessionID() string {
	sd.mu.RLock()
	defer sd.mu.RUnlock()
	return sd.SessionID
}

func decodeAny(input any, out any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func getFirstAnyWithAck(data []any) (any, func(...any)) {
	var ack func(...any)
	if len(data) == 0 {
		return nil, nil
	}
	if cb, ok := data[len(data)-1].(func(...any)); ok {
		ack = cb
		data = data[:len(data)-1]
	} else if cb, ok := data[len(data)-1].(socket.Ack); ok {
		ack = func(args ...any) {
			cb(args, nil)
		}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, ack
	}
	return data[0], ack
}

// getSocketData retrieves socket metadata by socket ID.
func (s *SocketIOServer) getSocketData(socketID string) (*SocketData, bool) {
	if data, ok := s.socketData.Load(socketID); ok {
		if sd, ok := data.(*SocketData); ok {
			return sd, true
		}
	}
	return nil, false
}

// emitToSocket sends one event to a connected socket. Unknown ids are
// ignored; the peer has already gone.
func (s *SocketIOServer) emitToSocket(socketID, event string, payload any) {
	sd, ok := s.getSocketData(socketID)
	if !ok || sd.send == nil {
		logger.Tracef("Drop %s for departed socket %s", event, socketID)
		return
	}
	sd.send(event, payload)
}

// Deliver performs handler emissions in order.
func (s *SocketIOServer) Deliver(emits []handlers.EmitInstruction) {
	for _, e := range emits {
		if e.SocketID() != "" {
			s.emitToSocket(e.SocketID(), e.Event(), e.Payload())
			continue
		}
		members := s.rooms.Members(e.Room())
		logger.Tracef("Emit %s to room %s (%d sockets)", e.Event(), e.Room(), len(members))
		for _, id := range members {
			s.emitToSocket(id, e.Event(), e.Payload())
		}
	}
}

// HandleSocketIO creates a Gin handler for Socket.IO. Requests from origins
// outside the allowlist are refused before the engine sees them.
func (s *SocketIOServer) HandleSocketIO() gin.HandlerFunc {
	httpHandler := s.server.ServeHandler(nil)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if err := s.origins.Check(origin); err != nil {
			logger.Warnf("Socket.IO request rejected: %v", err)
			c.AbortWithStatusJSON(http.StatusForbidden, types.ErrorResponse{Error: "origin not allowed"})
			return
		}

		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "false")

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}

		logger.Tracef("Socket.IO request: %s %s", c.Request.Method, c.Request.URL.Path)
		httpHandler.ServeHTTP(c.Writer, c.Request)
	}
}

// ConnectionCount returns the number of authenticated sockets.
func (s *SocketIOServer) ConnectionCount() int {
	n := 0
	s.socketData.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close shuts down the Socket.IO server. Pending spawn waits settle as
// timed out.
func (s *SocketIOServer) Close() error {
	s.spawns.Close()
	s.queues.Close()
	s.server.Close(nil)
	return nil
}

// rejectHandshake reports a handshake failure and drops the socket.
func rejectHandshake(client *socket.Socket, code, message string) {
	client.Emit("error", wire.ErrorPayload{Code: code, Message: message})
	client.Disconnect(true)
}
