package spawnack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveReady_SettlesOnce(t *testing.T) {
	c := NewCoordinator()
	p := c.WaitForSpawnAck("x", time.Second)

	require.True(t, c.ResolveSpawnReady("x"))
	require.False(t, c.ResolveSpawnError("x", "late"))

	out := p.Outcome()
	require.Equal(t, StatusReady, out.Status)
	require.Empty(t, out.Message)
	require.Zero(t, c.Len())
}

func TestResolveError_CarriesMessage(t *testing.T) {
	c := NewCoordinator()
	p := c.WaitForSpawnAck("x", time.Second)

	require.True(t, c.ResolveSpawnError("x", "cwd does not exist"))
	out, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusFailed, out.Status)
	require.Equal(t, "cwd does not exist", out.Message)
}

func TestTimeout_RemovesPendingEntry(t *testing.T) {
	c := NewCoordinator()
	start := time.Now()
	p := c.WaitForSpawnAck("x", 50*time.Millisecond)

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not settle")
	}
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Equal(t, StatusTimedOut, p.Outcome().Status)

	require.False(t, c.ResolveSpawnReady("x"))
	require.Zero(t, c.Len())
}

func TestResolveUnknown_IsNoop(t *testing.T) {
	c := NewCoordinator()
	require.False(t, c.ResolveSpawnReady("nobody"))
	require.False(t, c.ResolveSpawnError("nobody", "boom"))
}

func TestLastRegistrantWins(t *testing.T) {
	c := NewCoordinator()
	first := c.WaitForSpawnAck("x", 50*time.Millisecond)
	second := c.WaitForSpawnAck("x", time.Second)
	require.Equal(t, 1, c.Len())

	// The displaced wait gets no outcome of its own.
	select {
	case <-first.Done():
		t.Fatal("superseded wait settled on replacement")
	default:
	}

	// Its own deadline ends it without touching the new waiter.
	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("superseded wait never ended")
	}
	require.Equal(t, StatusTimedOut, first.Outcome().Status)
	require.Equal(t, 1, c.Len())
	select {
	case <-second.Done():
		t.Fatal("second wait settled early")
	default:
	}

	require.True(t, c.ResolveSpawnReady("x"))
	require.Equal(t, StatusReady, second.Outcome().Status)
	require.Equal(t, StatusTimedOut, first.Outcome().Status)
}

func TestSupersededWait_IgnoresAcks(t *testing.T) {
	c := NewCoordinator()
	first := c.WaitForSpawnAck("x", time.Hour)
	second := c.WaitForSpawnAck("x", time.Hour)

	require.True(t, c.ResolveSpawnError("x", "exec failed"))
	require.Equal(t, StatusFailed, second.Outcome().Status)
	require.False(t, c.ResolveSpawnReady("x"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := first.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWait_ContextCancelled(t *testing.T) {
	c := NewCoordinator()
	p := c.WaitForSpawnAck("x", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, c.Len())
}

func TestConcurrentResolve_ExactlyOneWins(t *testing.T) {
	c := NewCoordinator()
	p := c.WaitForSpawnAck("x", time.Second)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var ok bool
			if i%2 == 0 {
				ok = c.ResolveSpawnReady("x")
			} else {
				ok = c.ResolveSpawnError("x", "err")
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.NotEqual(t, Status(0), p.Outcome().Status)
}

func TestClose_SettlesAll(t *testing.T) {
	c := NewCoordinator()
	a := c.WaitForSpawnAck("a", time.Minute)
	b := c.WaitForSpawnAck("b", time.Minute)
	c.Close()
	require.Equal(t, StatusTimedOut, a.Outcome().Status)
	require.Equal(t, StatusTimedOut, b.Outcome().Status)
	require.Zero(t, c.Len())
}
