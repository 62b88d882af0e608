package wire

import "encoding/json"

// ModelInfo identifies the model an agent session is running.
type ModelInfo struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// SessionInfo is the public view of a session record sent to hub and HTTP
// clients. The capability token is never included.
type SessionInfo struct {
	SessionID       string     `json:"sessionId"`
	UserID          string     `json:"userId"`
	Cwd             string     `json:"cwd"`
	StartedAt       int64      `json:"startedAt"`
	IsEphemeral     bool       `json:"isEphemeral"`
	ExpiresAt       *int64     `json:"expiresAt"`
	IsActive        bool       `json:"isActive"`
	LastHeartbeatAt int64      `json:"lastHeartbeatAt"`
	SessionName     *string    `json:"sessionName"`
	Model           *ModelInfo `json:"model"`
	RunnerID        *string    `json:"runnerId"`
	ShareURL        string     `json:"shareUrl"`
	ViewerCount     int64      `json:"viewerCount"`
}

// RegisterPayload is the relay "register" request.
type RegisterPayload struct {
	// SessionID reuses an existing record (reconnect) or names a spawned
	// placeholder. Empty means "allocate a new id".
	SessionID       string     `json:"sessionId,omitempty"`
	Cwd             string     `json:"cwd"`
	Ephemeral       bool       `json:"ephemeral"`
	SessionName     *string    `json:"sessionName,omitempty"`
	Model           *ModelInfo `json:"model,omitempty"`
	RunnerID        string     `json:"runnerId,omitempty"`
	ParentSessionID string     `json:"parentSessionId,omitempty"`
}

// RegisteredPayload answers a successful "register".
type RegisteredPayload struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	ShareURL  string `json:"shareUrl"`
}

// RelayEventPayload is the relay "event" request. Event is opaque to the
// server apart from its "type" discriminator.
type RelayEventPayload struct {
	SessionID string          `json:"sessionId"`
	Token     string          `json:"token"`
	Event     json.RawMessage `json:"event"`
}

// RelayEventHeader is the subset of an agent event the server inspects.
type RelayEventHeader struct {
	Type        string     `json:"type"`
	SessionName *string    `json:"sessionName,omitempty"`
	Model       *ModelInfo `json:"model,omitempty"`
}

const (
	// EventTypeHeartbeat refreshes liveness and TTL and may carry metadata.
	EventTypeHeartbeat = "heartbeat"
	// EventTypeSessionActive carries a full state snapshot for late joiners.
	EventTypeSessionActive = "session_active"
)

// EventAckPayload acknowledges an accepted relay event.
type EventAckPayload struct {
	SessionID string `json:"sessionId"`
	Seq       int64  `json:"seq"`
}

// ViewerEventPayload is the sequenced event delivered to viewers.
type ViewerEventPayload struct {
	SessionID string          `json:"sessionId"`
	Seq       int64           `json:"seq"`
	Event     json.RawMessage `json:"event"`
}

// SessionEndPayload is the relay "session_end" request.
type SessionEndPayload struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// ExecResultPayload is the relay "exec_result" answer to a viewer exec.
type ExecResultPayload struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Token     string          `json:"token,omitempty"`
	OK        bool            `json:"ok"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// SessionMessagePayload is a point-to-point message between live sessions.
// Inbound requests carry Token/SessionID/TargetSessionID; deliveries carry
// FromSessionID.
type SessionMessagePayload struct {
	SessionID       string          `json:"sessionId,omitempty"`
	Token           string          `json:"token,omitempty"`
	TargetSessionID string          `json:"targetSessionId,omitempty"`
	FromSessionID   string          `json:"fromSessionId,omitempty"`
	Message         json.RawMessage `json:"message"`
}

// SessionMessageErrorPayload reports an undeliverable session message.
type SessionMessageErrorPayload struct {
	TargetSessionID string `json:"targetSessionId"`
	Error           string `json:"error"`
}

// SessionExpiredPayload tells the relay owner its ephemeral session was pruned.
type SessionExpiredPayload struct {
	SessionID string `json:"sessionId"`
}

// ConnectedPayload is sent to viewers on join/resync and to the relay owner
// whenever its viewer count changes.
type ConnectedPayload struct {
	SessionID   string          `json:"sessionId"`
	LastSeq     int64           `json:"lastSeq"`
	ViewerCount int64           `json:"viewerCount"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
}

// DisconnectedPayload tells viewers the agent went away or the session ended.
type DisconnectedPayload struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}
