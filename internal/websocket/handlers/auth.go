package handlers

import "github.com/Pizzaface/PizzaPi-sub003/pkg/types"

// AuthContext carries authenticated socket identity information into handler
// functions. It intentionally excludes transport-specific types.
type AuthContext struct {
	userID     string
	userName   string
	channel    types.ChannelType
	socketID   string
	sessionID  string
	runnerID   string
	terminalID string
}

// NewAuthContext constructs an AuthContext for a single socket event.
func NewAuthContext(userID string, channel types.ChannelType, socketID string) AuthContext {
	return AuthContext{userID: userID, channel: channel, socketID: socketID}
}

// WithUserName returns a copy carrying the display name.
func (a AuthContext) WithUserName(name string) AuthContext {
	a.userName = name
	return a
}

// WithSession returns a copy bound to a session id.
func (a AuthContext) WithSession(sessionID string) AuthContext {
	a.sessionID = sessionID
	return a
}

// WithRunner returns a copy bound to a runner id.
func (a AuthContext) WithRunner(runnerID string) AuthContext {
	a.runnerID = runnerID
	return a
}

// WithTerminal returns a copy bound to a terminal id.
func (a AuthContext) WithTerminal(terminalID string) AuthContext {
	a.terminalID = terminalID
	return a
}

func (a AuthContext) UserID() string             { return a.userID }
func (a AuthContext) UserName() string           { return a.userName }
func (a AuthContext) Channel() types.ChannelType { return a.channel }
func (a AuthContext) SocketID() string           { return a.socketID }
func (a AuthContext) SessionID() string          { return a.sessionID }
func (a AuthContext) RunnerID() string           { return a.runnerID }
func (a AuthContext) TerminalID() string         { return a.terminalID }
