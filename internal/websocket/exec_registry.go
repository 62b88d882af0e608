package websocket

import "sync"

// ExecRegistry remembers which viewer socket issued each pending exec so the
// agent's exec_result can be routed back. It stores socket ids, not sockets,
// so lookups are validated against the live connection map.
type ExecRegistry struct {
	mu       sync.Mutex
	pending  map[string]string              // execID -> socketID
	bySocket map[string]map[string]struct{} // socketID -> execIDs
}

func NewExecRegistry() *ExecRegistry {
	return &ExecRegistry{
		pending:  make(map[string]string),
		bySocket: make(map[string]map[string]struct{}),
	}
}

// Track records socketID as the caller of execID. A repeated id is
// re-pointed at the newest caller.
func (r *ExecRegistry) Track(execID, socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.pending[execID]; ok {
		r.forgetLocked(prev, execID)
	}
	r.pending[execID] = socketID
	ids, ok := r.bySocket[socketID]
	if !ok {
		ids = make(map[string]struct{})
		r.bySocket[socketID] = ids
	}
	ids[execID] = struct{}{}
}

// Take returns and forgets the caller of execID.
func (r *ExecRegistry) Take(execID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	socketID, ok := r.pending[execID]
	if !ok {
		return "", false
	}
	delete(r.pending, execID)
	r.forgetLocked(socketID, execID)
	return socketID, true
}

// DropSocket forgets every exec issued by socketID.
func (r *ExecRegistry) DropSocket(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for execID := range r.bySocket[socketID] {
		delete(r.pending, execID)
	}
	delete(r.bySocket, socketID)
}

func (r *ExecRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *ExecRegistry) forgetLocked(socketID, execID string) {
	ids, ok := r.bySocket[socketID]
	if !ok {
		return
	}
	delete(ids, execID)
	if len(ids) == 0 {
		delete(r.bySocket, socketID)
	}
}
