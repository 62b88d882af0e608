package wire

// SessionsPayload is the full list snapshot sent on hub connect.
type SessionsPayload struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionAddedPayload announces a new session.
type SessionAddedPayload struct {
	Session SessionInfo `json:"session"`
}

// SessionRemovedPayload announces a deleted or expired session.
type SessionRemovedPayload struct {
	SessionID string `json:"sessionId"`
}

// SessionStatusPayload announces a metadata/liveness change.
type SessionStatusPayload struct {
	Session SessionInfo `json:"session"`
}
