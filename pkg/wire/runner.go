package wire

// Skill is a capability advertised by a runner.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Locator     string `json:"locator"`
}

// RunnerInfo is the public view of a runner record.
type RunnerInfo struct {
	RunnerID     string   `json:"runnerId"`
	Name         *string  `json:"name"`
	Roots        []string `json:"roots"`
	Skills       []Skill  `json:"skills"`
	UserID       *string  `json:"userId"`
	SessionCount int      `json:"sessionCount"`
}

// RegisterRunnerPayload is the runner "register_runner" request.
type RegisterRunnerPayload struct {
	RunnerID string   `json:"runnerId,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Roots    []string `json:"roots"`
	Skills   []Skill  `json:"skills"`
	// Public registers a shared runner with no owning user.
	Public bool `json:"public,omitempty"`
}

// RunnerRegisteredPayload answers "register_runner".
type RunnerRegisteredPayload struct {
	RunnerID string `json:"runnerId"`
}

// RunnerUpdatePayload reports live roots/skills changes. Nil fields are left
// unchanged.
type RunnerUpdatePayload struct {
	Roots  []string `json:"roots,omitempty"`
	Skills []Skill  `json:"skills,omitempty"`
}

// NewSessionPayload is the spawn command sent to a runner.
type NewSessionPayload struct {
	SessionID string     `json:"sessionId"`
	Cwd       string     `json:"cwd"`
	Prompt    string     `json:"prompt,omitempty"`
	Model     *ModelInfo `json:"model,omitempty"`
}

// SessionReadyPayload is the runner's spawn acknowledgment.
type SessionReadyPayload struct {
	SessionID string `json:"sessionId"`
}

// SessionErrorPayload is the runner's spawn failure report.
type SessionErrorPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// SpawnRequest is the HTTP body for POST /api/runners/:id/spawn.
type SpawnRequest struct {
	Cwd             string     `json:"cwd" binding:"required"`
	Prompt          string     `json:"prompt,omitempty"`
	Model           *ModelInfo `json:"model,omitempty"`
	ParentSessionID string     `json:"parentSessionId,omitempty"`
}

// SpawnResponse answers a successful spawn.
type SpawnResponse struct {
	SessionID string `json:"sessionId"`
	ShareURL  string `json:"shareUrl"`
}
