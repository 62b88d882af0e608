package types

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new random identifier for sessions, runners, terminals and
// exec requests.
func NewID() string {
	return uuid.NewString()
}

// NewToken returns an opaque capability secret (dash-free UUIDv4 pair).
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// Common response types

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// ChannelType is the logical channel a socket connection is scoped to.
type ChannelType string

const (
	ChannelRelay    ChannelType = "relay"
	ChannelViewer   ChannelType = "viewer"
	ChannelRunner   ChannelType = "runner"
	ChannelTerminal ChannelType = "terminal"
	ChannelHub      ChannelType = "hub"
)
