package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionQueues_SerializesPerSession(t *testing.T) {
	q := NewSessionQueues()
	defer q.Close()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	const n = 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		require.True(t, q.Enqueue("s1", func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	wg.Wait()

	require.Len(t, got, n)
	for i := range got {
		require.Equal(t, i, got[i])
	}
}

func TestSessionQueues_DropsWhenFull(t *testing.T) {
	q := NewSessionQueues()
	defer q.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, q.Enqueue("s1", func() {
		close(started)
		<-block
	}))
	<-started

	for i := 0; i < queueDepth; i++ {
		require.True(t, q.Enqueue("s1", func() {}))
	}
	require.False(t, q.Enqueue("s1", func() {}))

	// Other sessions are unaffected.
	done := make(chan struct{})
	require.True(t, q.Enqueue("s2", func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("s2 job did not run")
	}
	close(block)
}

func TestSessionQueues_ReleaseDrainsBacklog(t *testing.T) {
	q := NewSessionQueues()

	ran := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		q.Enqueue("s1", func() { ran <- i })
	}
	q.Release("s1")

	for i := 0; i < 3; i++ {
		select {
		case got := <-ran:
			require.Equal(t, i, got)
		case <-time.After(time.Second):
			t.Fatal("backlog not drained")
		}
	}
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)

	q.Close()
	require.False(t, q.Enqueue("s1", func() {}))
	require.False(t, q.Enqueue("", func() {}))
}

func TestSessionQueues_SurvivesPanics(t *testing.T) {
	q := NewSessionQueues()
	defer q.Close()

	done := make(chan struct{})
	q.Enqueue("s1", func() { panic("boom") })
	q.Enqueue("s1", func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue stopped after panic")
	}
}

func TestSessionQueues_ReleaseFromJobKeepsOneWorker(t *testing.T) {
	q := NewSessionQueues()
	defer q.Close()

	released := make(chan struct{})
	unblock := make(chan struct{})
	second := make(chan struct{})
	require.True(t, q.Enqueue("s1", func() {
		q.Release("s1")
		close(released)
		<-unblock
	}))
	<-released

	require.True(t, q.Enqueue("s1", func() { close(second) }))
	select {
	case <-second:
		t.Fatal("job ran alongside the releasing job")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 1, q.Len())

	close(unblock)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("job queued after release did not run")
	}
}

func TestSessionQueues_CloseRunsBacklog(t *testing.T) {
	q := NewSessionQueues()

	block := make(chan struct{})
	done := make(chan struct{})
	q.Enqueue("s1", func() { <-block })
	q.Enqueue("s1", func() { close(done) })
	q.Close()
	require.False(t, q.Enqueue("s1", func() {}))

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("backlog not run after close")
	}
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
}
