package websocket

import (
	"sync"

	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
)

// queueDepth bounds the backlog of a single session before events are shed.
const queueDepth = 256

type sessionQueue struct {
	jobs chan func()
	// retiring asks the worker to exit once the backlog is empty. A new
	// job cancels it.
	retiring bool
}

// SessionQueues runs jobs for the same session one at a time, in arrival
// order, on a goroutine owned by that session. Jobs for different sessions
// run concurrently. A session never has more than one worker.
type SessionQueues struct {
	mu     sync.Mutex
	queues map[string]*sessionQueue
	closed bool
}

func NewSessionQueues() *SessionQueues {
	return &SessionQueues{queues: make(map[string]*sessionQueue)}
}

// Enqueue schedules job behind earlier jobs for sessionID. It never blocks
// the caller: when the backlog is full the job is dropped and Enqueue
// reports false.
func (q *SessionQueues) Enqueue(sessionID string, job func()) bool {
	if sessionID == "" || job == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	sq, ok := q.queues[sessionID]
	if !ok {
		sq = &sessionQueue{jobs: make(chan func(), queueDepth)}
		q.queues[sessionID] = sq
		go q.drain(sessionID, sq)
	}
	sq.retiring = false

	select {
	case sq.jobs <- job:
		return true
	default:
		logger.Warnf("Session %s queue full; dropping event", sessionID)
		return false
	}
}

// Release lets the worker for sessionID exit once its backlog is drained.
// It is safe to call from a job running on that worker.
func (q *SessionQueues) Release(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if sq, ok := q.queues[sessionID]; ok {
		sq.retiring = true
		wake(sq)
	}
}

// Len returns the number of sessions with a live worker.
func (q *SessionQueues) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}

// Close retires every worker and rejects further jobs. Queued jobs still
// run.
func (q *SessionQueues) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for _, sq := range q.queues {
		sq.retiring = true
		wake(sq)
	}
}

// wake nudges an idle worker to re-check retirement. A full backlog needs
// no nudge; the worker checks after every job.
func wake(sq *sessionQueue) {
	select {
	case sq.jobs <- nil:
	default:
	}
}

func (q *SessionQueues) drain(sessionID string, sq *sessionQueue) {
	for job := range sq.jobs {
		if job != nil {
			run(sessionID, job)
		}

		q.mu.Lock()
		if sq.retiring && len(sq.jobs) == 0 {
			if q.queues[sessionID] == sq {
				delete(q.queues, sessionID)
			}
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
	}
}

func run(sessionID string, job func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Session %s job panicked: %v", sessionID, r)
		}
	}()
	job()
}
