package websocket

import (
	"sort"
	"sync"
)

// Rooms tracks which sockets belong to which broadcast group. Membership is
// local to this process.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // room -> socket ids
	joined  map[string]map[string]struct{} // socket id -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(socketID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets, ok := r.members[room]
	if !ok {
		sockets = make(map[string]struct{})
		r.members[room] = sockets
	}
	sockets[socketID] = struct{}{}

	rooms, ok := r.joined[socketID]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[socketID] = rooms
	}
	rooms[room] = struct{}{}
}

func (r *Rooms) Leave(socketID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(socketID, room)
}

func (r *Rooms) leaveLocked(socketID, room string) {
	if sockets, ok := r.members[room]; ok {
		delete(sockets, socketID)
		if len(sockets) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[socketID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, socketID)
		}
	}
}

// LeaveAll removes socketID from every room and returns the rooms it was in.
func (r *Rooms) LeaveAll(socketID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.joined[socketID] {
		left = append(left, room)
	}
	for _, room := range left {
		r.leaveLocked(socketID, room)
	}
	sort.Strings(left)
	return left
}

// Members returns a snapshot of the sockets in room.
func (r *Rooms) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sockets := r.members[room]
	out := make([]string, 0, len(sockets))
	for id := range sockets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Rooms) Size(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[room])
}
