package handlers

import (
	"context"
	"testing"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestWithinRoots(t *testing.T) {
	roots := []string{"/home/u1/src", "/tmp/"}
	require.True(t, withinRoots(roots, "/home/u1/src"))
	require.True(t, withinRoots(roots, "/home/u1/src/app/"))
	require.True(t, withinRoots(roots, "/tmp/x"))
	require.False(t, withinRoots(roots, "/home/u1/srcfoo"))
	require.False(t, withinRoots(roots, "/home/u1/src/../../u2"))
	require.True(t, withinRoots(nil, "/anything"))
	require.True(t, withinRoots([]string{"/"}, "/etc"))
}

func seedRunner(t *testing.T, env *testEnv, id string, owner *string, roots ...string) {
	t.Helper()
	_, err := env.dir.PutRunner(context.Background(), directory.Runner{ID: id, UserID: owner, Roots: roots})
	require.NoError(t, err)
}

func TestPrepareSpawn_WritesPlaceholderAndCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedRunner(t, env, "box", strPtr("u1"), "/src")
	parent := register(t, env, relayAuth("u1", "agent"), wire.RegisterPayload{})

	plan, err := PrepareSpawn(ctx, env.deps, "u1", "box", wire.SpawnRequest{
		Cwd:             "/src/app",
		Prompt:          "write docs",
		Model:           &wire.ModelInfo{Provider: "anthropic", ID: "m1"},
		ParentSessionID: parent.SessionID,
	})
	require.NoError(t, err)
	require.Equal(t, RunnerRoom("box"), plan.Command.Room())
	require.Equal(t, "new_session", plan.Command.Event())
	cmd := plan.Command.Payload().(wire.NewSessionPayload)
	require.Equal(t, plan.Session.ID, cmd.SessionID)
	require.Equal(t, "write docs", cmd.Prompt)

	s, err := env.dir.GetSession(ctx, plan.Session.ID)
	require.NoError(t, err)
	require.True(t, s.IsEphemeral)
	require.False(t, s.IsActive)
	require.Equal(t, "box", *s.RunnerID)
	require.Zero(t, s.LastHeartbeatAt)

	got, ok, err := env.dir.TakeLink(ctx, plan.Session.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, parent.SessionID, got)
}

func TestPrepareSpawn_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedRunner(t, env, "mine", strPtr("u1"), "/src")
	seedRunner(t, env, "theirs", strPtr("u2"))

	_, err := PrepareSpawn(ctx, env.deps, "u1", "ghost", wire.SpawnRequest{Cwd: "/src"})
	require.ErrorIs(t, err, directory.ErrNotFound)

	_, err = PrepareSpawn(ctx, env.deps, "u1", "theirs", wire.SpawnRequest{Cwd: "/src"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = PrepareSpawn(ctx, env.deps, "u1", "mine", wire.SpawnRequest{Cwd: "/etc"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = PrepareSpawn(ctx, env.deps, "u1", "mine", wire.SpawnRequest{})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = PrepareSpawn(ctx, env.deps, "u1", "mine", wire.SpawnRequest{Cwd: "/src", ParentSessionID: "ghost"})
	require.ErrorIs(t, err, directory.ErrNotFound)

	sessions, err := env.dir.ListSessions(ctx, "")
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestAbandonSpawn_OnlyRemovesPlaceholders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedRunner(t, env, "box", nil)

	plan, err := PrepareSpawn(ctx, env.deps, "u1", "box", wire.SpawnRequest{Cwd: "/w"})
	require.NoError(t, err)
	require.True(t, AbandonSpawn(ctx, env.deps, plan.Session.ID))
	require.False(t, AbandonSpawn(ctx, env.deps, plan.Session.ID))

	plan, err = PrepareSpawn(ctx, env.deps, "u1", "box", wire.SpawnRequest{Cwd: "/w"})
	require.NoError(t, err)
	register(t, env, relayAuth("u1", "agent"), wire.RegisterPayload{SessionID: plan.Session.ID})
	require.False(t, AbandonSpawn(ctx, env.deps, plan.Session.ID))
}

func TestPrepareTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedRunner(t, env, "box", strPtr("u1"), "/src")

	plan, err := PrepareTerminal(ctx, env.deps, "u1", "box", wire.CreateTerminalRequest{Cwd: "/src"})
	require.NoError(t, err)
	require.Equal(t, "new_terminal", plan.Command.Event())
	cmd := plan.Command.Payload().(wire.NewTerminalPayload)
	require.Equal(t, 80, cmd.Cols)
	require.Equal(t, 24, cmd.Rows)

	term, err := env.dir.GetTerminal(ctx, plan.Terminal.ID)
	require.NoError(t, err)
	require.Equal(t, "u1", term.UserID)

	_, err = PrepareTerminal(ctx, env.deps, "u2", "box", wire.CreateTerminalRequest{Cwd: "/src"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := register(t, env, relayAuth("u1", "agent"), wire.RegisterPayload{})

	_, err := EndSession(ctx, env.deps, "u2", reg.SessionID)
	require.ErrorIs(t, err, directory.ErrNotFound)

	emits, err := EndSession(ctx, env.deps, "u1", reg.SessionID)
	require.NoError(t, err)
	events := make([]string, 0, len(emits))
	for _, e := range emits {
		events = append(events, e.Event())
	}
	require.Equal(t, []string{"session_removed", "session_end", "disconnected"}, events)

	_, err = EndSession(ctx, env.deps, "u1", reg.SessionID)
	require.ErrorIs(t, err, directory.ErrNotFound)
}
