package wire

// TerminalInfo is the public view of a terminal record.
type TerminalInfo struct {
	TerminalID string `json:"terminalId"`
	RunnerID   string `json:"runnerId"`
	UserID     string `json:"userId"`
	Cwd        string `json:"cwd"`
	CreatedAt  int64  `json:"createdAt"`
}

// CreateTerminalRequest is the HTTP body for POST /api/runners/:id/terminals.
type CreateTerminalRequest struct {
	Cwd  string `json:"cwd" binding:"required"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// NewTerminalPayload asks a runner to open a PTY.
type NewTerminalPayload struct {
	TerminalID string `json:"terminalId"`
	Cwd        string `json:"cwd"`
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
}

// TerminalInputPayload carries keystrokes from the viewer to the runner.
type TerminalInputPayload struct {
	TerminalID string `json:"terminalId"`
	Data       string `json:"data"`
}

// TerminalResizePayload carries a viewport resize.
type TerminalResizePayload struct {
	TerminalID string `json:"terminalId"`
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
}

// KillTerminalPayload asks the runner to terminate a PTY.
type KillTerminalPayload struct {
	TerminalID string `json:"terminalId"`
}

// TerminalConnectedPayload confirms a viewer joined a terminal stream.
type TerminalConnectedPayload struct {
	TerminalID string `json:"terminalId"`
}

// TerminalReadyPayload is sent by the runner once the PTY is running.
type TerminalReadyPayload struct {
	TerminalID string `json:"terminalId"`
}

// TerminalDataPayload is a chunk of PTY output.
type TerminalDataPayload struct {
	TerminalID string `json:"terminalId"`
	Data       string `json:"data"`
}

// TerminalExitPayload reports process exit.
type TerminalExitPayload struct {
	TerminalID string `json:"terminalId"`
	ExitCode   int    `json:"exitCode"`
}

// TerminalErrorPayload reports a PTY failure.
type TerminalErrorPayload struct {
	TerminalID string `json:"terminalId"`
	Message    string `json:"message"`
}
