package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/spawnack"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/stretchr/testify/require"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
)

func TestGetFirstAnyWithAck_FuncAck(t *testing.T) {
	var got []any
	payload, ack := getFirstAnyWithAck([]any{
		map[string]any{"k": "v"},
		func(args ...any) { got = args },
	})

	require.Equal(t, map[string]any{"k": "v"}, payload)
	require.NotNil(t, ack)

	ack("a", 1)
	require.Equal(t, []any{"a", 1}, got)
}

func TestGetFirstAnyWithAck_SocketAck(t *testing.T) {
	var gotArgs []any
	var gotErr error

	payload, ack := getFirstAnyWithAck([]any{
		"payload",
		socket.Ack(func(args []any, err error) {
			gotArgs = args
			gotErr = err
		}),
	})

	require.Equal(t, "payload", payload)
	require.NotNil(t, ack)

	ack("x", 2)
	require.Equal(t, []any{"x", 2}, gotArgs)
	require.NoError(t, gotErr)
}

func TestGetFirstAnyWithAck_NoPayload(t *testing.T) {
	payload, ack := getFirstAnyWithAck(nil)
	require.Nil(t, payload)
	require.Nil(t, ack)
}

func TestDecodeEvent(t *testing.T) {
	req, _, ok := decodeEvent[wire.RegisterPayload]("register", "s1", []any{
		map[string]any{"cwd": "/w", "ephemeral": true},
	})
	require.True(t, ok)
	require.Equal(t, "/w", req.Cwd)
	require.True(t, req.Ephemeral)

	_, _, ok = decodeEvent[wire.RegisterPayload]("register", "s1", []any{"not an object"})
	require.False(t, ok)

	_, _, ok = decodeEvent[struct{}]("resync", "s1", nil)
	require.True(t, ok)
}

// newTestServer builds a server without an engine so the HTTP-facing
// operations can be exercised directly.
func newTestServer(t *testing.T, spawnTimeout time.Duration) (*SocketIOServer, *directory.Directory, *spawnack.Coordinator) {
	t.Helper()
	dir := directory.New(store.NewMemoryStore(time.Now), directory.Options{})
	coord := spawnack.NewCoordinator()
	jwtManager, err := auth.NewJWTManager("test-secret")
	require.NoError(t, err)
	s := &SocketIOServer{
		authn:  auth.NewAuthenticator(jwtManager, nil),
		spawns: coord,
		opts:   Options{SpawnTimeout: spawnTimeout}.withDefaults(),
		rooms:  NewRooms(),
		execs:  NewExecRegistry(),
		queues: NewSessionQueues(),
	}
	s.deps = handlers.NewDeps(dir, dir, coord, s.execs, "https://relay.test", time.Now,
		func() string { return "spawned-1" },
		func() string { return "token-1" },
	)
	t.Cleanup(s.queues.Close)

	_, err = dir.PutRunner(context.Background(), directory.Runner{ID: "box"})
	require.NoError(t, err)
	return s, dir, coord
}

func resolveWhenPending(coord *spawnack.Coordinator, resolve func()) {
	go func() {
		for coord.Len() == 0 {
			time.Sleep(time.Millisecond)
		}
		resolve()
	}()
}

func TestSpawn_Ready(t *testing.T) {
	s, dir, coord := newTestServer(t, time.Second)
	resolveWhenPending(coord, func() { coord.ResolveSpawnReady("spawned-1") })

	sess, outcome, err := s.Spawn(context.Background(), "u1", "box", wire.SpawnRequest{Cwd: "/w"})
	require.NoError(t, err)
	require.Equal(t, spawnack.StatusReady, outcome.Status)
	require.Equal(t, "https://relay.test/session/spawned-1", sess.ShareURL)

	_, err = dir.GetSession(context.Background(), "spawned-1")
	require.NoError(t, err)
}

func TestSpawn_FailureRemovesPlaceholder(t *testing.T) {
	s, dir, coord := newTestServer(t, time.Second)
	resolveWhenPending(coord, func() { coord.ResolveSpawnError("spawned-1", "no such model") })

	_, outcome, err := s.Spawn(context.Background(), "u1", "box", wire.SpawnRequest{Cwd: "/w"})
	require.NoError(t, err)
	require.Equal(t, spawnack.StatusFailed, outcome.Status)
	require.Equal(t, "no such model", outcome.Message)

	_, err = dir.GetSession(context.Background(), "spawned-1")
	require.ErrorIs(t, err, directory.ErrNotFound)
}

func TestSpawn_Timeout(t *testing.T) {
	s, dir, _ := newTestServer(t, 20*time.Millisecond)

	_, outcome, err := s.Spawn(context.Background(), "u1", "box", wire.SpawnRequest{Cwd: "/w"})
	require.NoError(t, err)
	require.Equal(t, spawnack.StatusTimedOut, outcome.Status)

	_, err = dir.GetSession(context.Background(), "spawned-1")
	require.ErrorIs(t, err, directory.ErrNotFound)
}

func TestSpawn_UnknownRunner(t *testing.T) {
	s, _, coord := newTestServer(t, time.Second)

	_, _, err := s.Spawn(context.Background(), "u1", "ghost", wire.SpawnRequest{Cwd: "/w"})
	require.ErrorIs(t, err, directory.ErrNotFound)
	require.Zero(t, coord.Len())
}

func TestEndSession_RemovesRecord(t *testing.T) {
	s, dir, _ := newTestServer(t, time.Second)
	ctx := context.Background()
	_, err := dir.PutSession(ctx, directory.Session{ID: "s1", UserID: "u1"})
	require.NoError(t, err)

	require.ErrorIs(t, s.EndSession(ctx, "u2", "s1"), directory.ErrNotFound)
	require.NoError(t, s.EndSession(ctx, "u1", "s1"))
	_, err = dir.GetSession(ctx, "s1")
	require.ErrorIs(t, err, directory.ErrNotFound)
}

func TestCreateTerminal(t *testing.T) {
	s, dir, _ := newTestServer(t, time.Second)
	ctx := context.Background()

	term, err := s.CreateTerminal(ctx, "u1", "box", wire.CreateTerminalRequest{Cwd: "/w"})
	require.NoError(t, err)
	stored, err := dir.GetTerminal(ctx, term.ID)
	require.NoError(t, err)
	require.Equal(t, "box", stored.RunnerID)
}
