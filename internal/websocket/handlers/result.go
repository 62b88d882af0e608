package handlers

// EmitInstruction describes a single outbound emission produced by a handler
// call. Exactly one of room or socketID is set.
type EmitInstruction struct {
	room     string
	socketID string
	event    string
	payload  any
}

func toRoom(room, event string, payload any) EmitInstruction {
	return EmitInstruction{room: room, event: event, payload: payload}
}

func toSocket(socketID, event string, payload any) EmitInstruction {
	return EmitInstruction{socketID: socketID, event: event, payload: payload}
}

// Room returns the target room, or "" for a socket-targeted emission.
func (e EmitInstruction) Room() string { return e.room }

// SocketID returns the target socket id, or "" for a room emission.
func (e EmitInstruction) SocketID() string { return e.socketID }

// Event returns the Socket.IO event name.
func (e EmitInstruction) Event() string { return e.event }

// Payload returns the event payload.
func (e EmitInstruction) Payload() any { return e.payload }

// Binding records which directory ids a socket is now attached to. The
// transport copies non-empty fields into its per-socket data.
type Binding struct {
	SessionID string
	RunnerID  string
}

// EventResult is the output of a handler invocation.
type EventResult struct {
	ack        any
	emits      []EmitInstruction
	joins      []string
	leaves     []string
	binding    Binding
	disconnect bool
}

// NewEventResult constructs a handler result.
func NewEventResult(ack any, emits []EmitInstruction) EventResult {
	return EventResult{ack: ack, emits: emits}
}

// Ack returns the ACK payload to send to the caller.
func (r EventResult) Ack() any { return r.ack }

// Emits returns the emissions requested by the handler, in order.
func (r EventResult) Emits() []EmitInstruction { return r.emits }

// Joins returns rooms the caller socket should join.
func (r EventResult) Joins() []string { return r.joins }

// Leaves returns rooms the caller socket should leave.
func (r EventResult) Leaves() []string { return r.leaves }

// Binding returns the directory ids the caller socket is now bound to.
func (r EventResult) Binding() Binding { return r.binding }

// Disconnect reports whether the transport should drop the caller.
func (r EventResult) Disconnect() bool { return r.disconnect }

func (r EventResult) withJoin(rooms ...string) EventResult {
	r.joins = append(r.joins, rooms...)
	return r
}

func (r EventResult) withLeave(rooms ...string) EventResult {
	r.leaves = append(r.leaves, rooms...)
	return r
}

func (r EventResult) withBinding(b Binding) EventResult {
	r.binding = b
	return r
}

func (r EventResult) withDisconnect() EventResult {
	r.disconnect = true
	return r
}

func empty() EventResult { return EventResult{} }
