package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, env *testEnv, a AuthContext, req wire.RegisterPayload) wire.RegisteredPayload {
	t.Helper()
	res := RelayRegister(context.Background(), env.deps, a, req)
	ack, ok := res.Ack().(wire.RegisteredPayload)
	require.True(t, ok, "register failed: %+v", res.Emits())
	return ack
}

func TestRelayRegister_NewSession(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")

	res := RelayRegister(context.Background(), env.deps, a, wire.RegisterPayload{
		Cwd:         "/work",
		Ephemeral:   true,
		SessionName: strPtr("fix bug"),
	})

	ack, ok := res.Ack().(wire.RegisteredPayload)
	require.True(t, ok)
	require.Equal(t, "id-1", ack.SessionID)
	require.Equal(t, "tok-1", ack.Token)
	require.Equal(t, "https://relay.test/session/id-1", ack.ShareURL)

	require.Equal(t, []string{RelayRoom("id-1")}, res.Joins())
	require.Equal(t, "id-1", res.Binding().SessionID)

	added, ok := findEmit(res, "session_added")
	require.True(t, ok)
	require.Equal(t, HubRoom("u1"), added.Room())
	info := added.Payload().(wire.SessionAddedPayload).Session
	require.True(t, info.IsActive)
	require.NotNil(t, info.ExpiresAt)

	s, err := env.dir.GetSession(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", s.Token)
	require.Equal(t, "fix bug", *s.SessionName)
}

func TestRelayRegister_ReconnectIssuesFreshToken(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	first := register(t, env, a, wire.RegisterPayload{Cwd: "/w"})

	res := RelayRegister(context.Background(), env.deps, relayAuth("u1", "sock2"), wire.RegisterPayload{SessionID: first.SessionID})
	second := res.Ack().(wire.RegisteredPayload)
	require.Equal(t, first.SessionID, second.SessionID)
	require.NotEqual(t, first.Token, second.Token)

	_, ok := findEmit(res, "session_status")
	require.True(t, ok)
	_, ok = findEmit(res, "session_added")
	require.False(t, ok)

	s, err := env.dir.GetSession(context.Background(), first.SessionID)
	require.NoError(t, err)
	require.Equal(t, "/w", s.Cwd)
}

func TestRelayRegister_RejectsForeignSession(t *testing.T) {
	env := newTestEnv(t)
	reg := register(t, env, relayAuth("u1", "sock1"), wire.RegisterPayload{})

	res := RelayRegister(context.Background(), env.deps, relayAuth("u2", "sock2"), wire.RegisterPayload{SessionID: reg.SessionID})
	require.Nil(t, res.Ack())
	e, ok := findEmit(res, "error")
	require.True(t, ok)
	require.Equal(t, "sock2", e.SocketID())
	require.Equal(t, wire.ErrCodeUnauthorized, e.Payload().(wire.ErrorPayload).Code)
	require.Empty(t, res.Joins())
}

func TestRelayRegister_ResolvesSpawnAndNotifiesParent(t *testing.T) {
	env := newTestEnv(t, "child")
	ctx := context.Background()
	require.NoError(t, env.dir.PutLink(ctx, "child", "parent"))

	res := RelayRegister(ctx, env.deps, relayAuth("u1", "sock1"), wire.RegisterPayload{SessionID: "child"})
	require.Equal(t, []string{"child"}, env.spawns.ready)

	msg, ok := findEmit(res, "session_message")
	require.True(t, ok)
	require.Equal(t, RelayRoom("parent"), msg.Room())
	payload := msg.Payload().(wire.SessionMessagePayload)
	require.Equal(t, "child", payload.FromSessionID)
	require.JSONEq(t, `{"type":"child_session_ready","sessionId":"child"}`, string(payload.Message))

	// The link is consumed exactly once.
	res = RelayRegister(ctx, env.deps, relayAuth("u1", "sock1"), wire.RegisterPayload{SessionID: "child"})
	_, ok = findEmit(res, "session_message")
	require.False(t, ok)
}

func TestRelayEvent_SequencesAndFansOut(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})
	a = a.WithSession(reg.SessionID)

	for want := int64(1); want <= 3; want++ {
		res := RelayEvent(context.Background(), env.deps, a, wire.RelayEventPayload{
			SessionID: reg.SessionID,
			Token:     reg.Token,
			Event:     json.RawMessage(`{"type":"message","text":"hi"}`),
		})
		ev, ok := findEmit(res, "event")
		require.True(t, ok)
		require.Equal(t, ViewersRoom(reg.SessionID), ev.Room())
		require.Equal(t, want, ev.Payload().(wire.ViewerEventPayload).Seq)

		ack, ok := findEmit(res, "event_ack")
		require.True(t, ok)
		require.Equal(t, "sock1", ack.SocketID())
		require.Equal(t, want, ack.Payload().(wire.EventAckPayload).Seq)
	}
}

func TestRelayEvent_TokenMismatch(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})

	res := RelayEvent(context.Background(), env.deps, a, wire.RelayEventPayload{
		SessionID: reg.SessionID,
		Token:     "wrong",
		Event:     json.RawMessage(`{"type":"message"}`),
	})
	e, ok := findEmit(res, "error")
	require.True(t, ok)
	require.Equal(t, wire.ErrCodeTokenMismatch, e.Payload().(wire.ErrorPayload).Code)

	seq, err := env.dir.CurrentSeq(context.Background(), reg.SessionID)
	require.NoError(t, err)
	require.Zero(t, seq)
}

func TestRelayEvent_MalformedIsDropped(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})

	for _, raw := range []json.RawMessage{nil, json.RawMessage(`not json`), json.RawMessage(`[1,2]`)} {
		res := RelayEvent(context.Background(), env.deps, a, wire.RelayEventPayload{
			SessionID: reg.SessionID,
			Token:     reg.Token,
			Event:     raw,
		})
		require.Empty(t, res.Emits())
	}
}

func TestRelayEvent_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	res := RelayEvent(context.Background(), env.deps, relayAuth("u1", "sock1"), wire.RelayEventPayload{
		SessionID: "ghost",
		Token:     "t",
		Event:     json.RawMessage(`{"type":"message"}`),
	})
	e, ok := findEmit(res, "error")
	require.True(t, ok)
	require.Equal(t, wire.ErrCodeNotFound, e.Payload().(wire.ErrorPayload).Code)
}

func TestRelayEvent_HeartbeatAppliesMetadata(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{Ephemeral: true})
	before, err := env.dir.GetSession(context.Background(), reg.SessionID)
	require.NoError(t, err)

	env.now = env.now.Add(time.Minute)
	res := RelayEvent(context.Background(), env.deps, a, wire.RelayEventPayload{
		SessionID: reg.SessionID,
		Token:     reg.Token,
		Event:     json.RawMessage(`{"type":"heartbeat","sessionName":"renamed","model":{"provider":"anthropic","id":"m2"}}`),
	})
	status, ok := findEmit(res, "session_status")
	require.True(t, ok)
	info := status.Payload().(wire.SessionStatusPayload).Session
	require.Equal(t, "renamed", *info.SessionName)
	require.Equal(t, "m2", info.Model.ID)

	after, err := env.dir.GetSession(context.Background(), reg.SessionID)
	require.NoError(t, err)
	require.Greater(t, *after.ExpiresAt, *before.ExpiresAt)
	require.Equal(t, env.now.UnixMilli(), after.LastHeartbeatAt)

	// A plain heartbeat with unchanged metadata is not announced.
	res = RelayEvent(context.Background(), env.deps, a, wire.RelayEventPayload{
		SessionID: reg.SessionID,
		Token:     reg.Token,
		Event:     json.RawMessage(`{"type":"heartbeat","sessionName":"renamed"}`),
	})
	_, ok = findEmit(res, "session_status")
	require.False(t, ok)
}

func TestRelayEvent_SessionActiveStoresSnapshot(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})

	raw := json.RawMessage(`{"type":"session_active","state":{"messages":["a"]}}`)
	RelayEvent(context.Background(), env.deps, a, wire.RelayEventPayload{SessionID: reg.SessionID, Token: reg.Token, Event: raw})

	snap, err := env.dir.GetSnapshot(context.Background(), reg.SessionID)
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(snap))
}

func TestRelaySessionEnd(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})

	res := RelaySessionEnd(context.Background(), env.deps, a, wire.SessionEndPayload{SessionID: reg.SessionID, Token: "bad"})
	_, ok := findEmit(res, "error")
	require.True(t, ok)

	res = RelaySessionEnd(context.Background(), env.deps, a, wire.SessionEndPayload{SessionID: reg.SessionID, Token: reg.Token})
	removed, ok := findEmit(res, "session_removed")
	require.True(t, ok)
	require.Equal(t, HubRoom("u1"), removed.Room())
	_, ok = findEmit(res, "disconnected")
	require.True(t, ok)
	require.Equal(t, []string{RelayRoom(reg.SessionID)}, res.Leaves())

	_, err := env.dir.GetSession(context.Background(), reg.SessionID)
	require.ErrorIs(t, err, directory.ErrNotFound)
}

func TestRelayExecResult_RoutesToViewer(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})
	env.execs.Track("x1", "viewer-sock")

	res := RelayExecResult(context.Background(), env.deps, a.WithSession(reg.SessionID), wire.ExecResultPayload{
		ID:     "x1",
		Token:  reg.Token,
		OK:     true,
		Result: json.RawMessage(`{"out":"ok"}`),
	})
	e, ok := findEmit(res, "exec_result")
	require.True(t, ok)
	require.Equal(t, "viewer-sock", e.SocketID())
	payload := e.Payload().(wire.ExecResultPayload)
	require.Empty(t, payload.Token)
	require.Equal(t, reg.SessionID, payload.SessionID)

	// Answered once.
	res = RelayExecResult(context.Background(), env.deps, a.WithSession(reg.SessionID), wire.ExecResultPayload{ID: "x1", Token: reg.Token})
	require.Empty(t, res.Emits())
}

func TestRelaySessionMessage(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	from := register(t, env, a, wire.RegisterPayload{})
	to := register(t, env, relayAuth("u1", "sock2"), wire.RegisterPayload{})
	other := register(t, env, relayAuth("u2", "sock3"), wire.RegisterPayload{})

	res := RelaySessionMessage(context.Background(), env.deps, a, wire.SessionMessagePayload{
		SessionID:       from.SessionID,
		Token:           from.Token,
		TargetSessionID: to.SessionID,
		Message:         json.RawMessage(`{"text":"hello"}`),
	})
	msg, ok := findEmit(res, "session_message")
	require.True(t, ok)
	require.Equal(t, RelayRoom(to.SessionID), msg.Room())
	require.Equal(t, from.SessionID, msg.Payload().(wire.SessionMessagePayload).FromSessionID)

	for _, target := range []string{"ghost", other.SessionID} {
		res = RelaySessionMessage(context.Background(), env.deps, a, wire.SessionMessagePayload{
			SessionID:       from.SessionID,
			Token:           from.Token,
			TargetSessionID: target,
			Message:         json.RawMessage(`{}`),
		})
		e, ok := findEmit(res, "session_message_error")
		require.True(t, ok)
		require.Equal(t, "sock1", e.SocketID())
		require.Equal(t, target, e.Payload().(wire.SessionMessageErrorPayload).TargetSessionID)
	}
}

func TestRelayDisconnect_MarksInactive(t *testing.T) {
	env := newTestEnv(t)
	a := relayAuth("u1", "sock1")
	reg := register(t, env, a, wire.RegisterPayload{})

	res := RelayDisconnect(context.Background(), env.deps, a.WithSession(reg.SessionID))
	status, ok := findEmit(res, "session_status")
	require.True(t, ok)
	require.False(t, status.Payload().(wire.SessionStatusPayload).Session.IsActive)
	d, ok := findEmit(res, "disconnected")
	require.True(t, ok)
	require.Equal(t, ReasonAgentDisconnected, d.Payload().(wire.DisconnectedPayload).Reason)

	s, err := env.dir.GetSession(context.Background(), reg.SessionID)
	require.NoError(t, err)
	require.False(t, s.IsActive)

	require.Empty(t, RelayDisconnect(context.Background(), env.deps, a).Emits())
}

func TestRelayDisconnect_LeavesForeignSessionAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := register(t, env, relayAuth("u1", "sock1"), wire.RegisterPayload{})

	res := RelayDisconnect(ctx, env.deps, relayAuth("u2", "evil").WithSession(reg.SessionID))
	require.Empty(t, res.Emits())
	require.Empty(t, res.Leaves())

	s, err := env.dir.GetSession(ctx, reg.SessionID)
	require.NoError(t, err)
	require.True(t, s.IsActive)
}
