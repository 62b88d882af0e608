package handlers

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
)

type fakeSpawns struct {
	mu      sync.Mutex
	pending map[string]bool
	ready   []string
	failed  map[string]string
}

func newFakeSpawns(pending ...string) *fakeSpawns {
	f := &fakeSpawns{pending: make(map[string]bool), failed: make(map[string]string)}
	for _, id := range pending {
		f.pending[id] = true
	}
	return f
}

func (f *fakeSpawns) ResolveSpawnReady(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending[sessionID] {
		return false
	}
	delete(f.pending, sessionID)
	f.ready = append(f.ready, sessionID)
	return true
}

func (f *fakeSpawns) ResolveSpawnError(sessionID, message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending[sessionID] {
		return false
	}
	delete(f.pending, sessionID)
	f.failed[sessionID] = message
	return true
}

type fakeExecs struct {
	routes map[string]string
}

func (f *fakeExecs) Track(execID, socketID string) { f.routes[execID] = socketID }

func (f *fakeExecs) Take(execID string) (string, bool) {
	socketID, ok := f.routes[execID]
	delete(f.routes, execID)
	return socketID, ok
}

type testEnv struct {
	deps   Deps
	dir    *directory.Directory
	spawns *fakeSpawns
	execs  *fakeExecs
	now    time.Time
}

func newTestEnv(t *testing.T, pendingSpawns ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		spawns: newFakeSpawns(pendingSpawns...),
		execs:  &fakeExecs{routes: make(map[string]string)},
		now:    time.UnixMilli(1_700_000_000_000),
	}
	clock := func() time.Time { return env.now }
	env.dir = directory.New(store.NewMemoryStore(clock), directory.Options{Now: clock})

	var ids, tokens int
	env.deps = NewDeps(env.dir, env.dir, env.spawns, env.execs, "https://relay.test", clock,
		func() string { ids++; return fmt.Sprintf("id-%d", ids) },
		func() string { tokens++; return fmt.Sprintf("tok-%d", tokens) },
	)
	return env
}

func relayAuth(userID, socketID string) AuthContext {
	return NewAuthContext(userID, types.ChannelRelay, socketID)
}

func findEmit(res EventResult, event string) (EmitInstruction, bool) {
	for _, e := range res.Emits() {
		if e.Event() == event {
			return e, true
		}
	}
	return EmitInstruction{}, false
}

func strPtr(s string) *string { return &s }
