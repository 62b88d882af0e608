package handlers

// Room names. Rooms are process-local groupings of sockets.

// RelayRoom holds the agent socket that owns a session.
func RelayRoom(sessionID string) string { return "relay:" + sessionID }

// ViewersRoom holds viewer sockets subscribed to a session.
func ViewersRoom(sessionID string) string { return "viewers:" + sessionID }

// RunnerRoom holds a runner daemon's control socket.
func RunnerRoom(runnerID string) string { return "runner:" + runnerID }

// TerminalRoom holds viewer sockets attached to a terminal.
func TerminalRoom(terminalID string) string { return "terminal:" + terminalID }

// HubRoom holds a user's session-list subscribers.
func HubRoom(userID string) string { return "hub:" + userID }
