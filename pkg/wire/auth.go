// Package wire holds the JSON payload contracts for the relay channels.
//
// Field names follow the camelCase convention browsers and agent CLIs use on
// the socket; the framing (Socket.IO event name + single JSON argument) is
// owned by the transport.
package wire

// SocketAuthPayload is the Socket.IO handshake auth object.
type SocketAuthPayload struct {
	// ClientType selects the channel: relay, viewer, runner, terminal or hub.
	ClientType string `json:"clientType"`
	// Token is a bearer JWT.
	Token string `json:"token,omitempty"`
	// APIKey is an alternative credential for headless agents and runners.
	APIKey string `json:"apiKey,omitempty"`
	// SessionID is required for viewer connections.
	SessionID string `json:"sessionId,omitempty"`
	// TerminalID is required for terminal connections.
	TerminalID string `json:"terminalId,omitempty"`
}

// ErrorPayload is the structured "error" event shared by all channels.
type ErrorPayload struct {
	// Code is one of unauthorized, not_found, token_mismatch, unavailable,
	// bad_request.
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNotFound      = "not_found"
	ErrCodeTokenMismatch = "token_mismatch"
	ErrCodeUnavailable   = "unavailable"
	ErrCodeBadRequest    = "bad_request"
)
