package directory

import (
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

// Model identifies the provider and model id an agent runs.
type Model struct {
	Provider string `cbor:"provider"`
	ID       string `cbor:"id"`
}

// Session is the directory record for one running agent process.
//
// Invariant: IsEphemeral == false exactly when ExpiresAt == nil. The
// directory re-establishes it on every write.
type Session struct {
	ID              string  `cbor:"id"`
	UserID          string  `cbor:"userId"`
	Cwd             string  `cbor:"cwd"`
	StartedAt       int64   `cbor:"startedAt"`
	IsEphemeral     bool    `cbor:"isEphemeral"`
	ExpiresAt       *int64  `cbor:"expiresAt"`
	IsActive        bool    `cbor:"isActive"`
	LastHeartbeatAt int64   `cbor:"lastHeartbeatAt"`
	SessionName     *string `cbor:"sessionName"`
	Model           *Model  `cbor:"model"`
	RunnerID        *string `cbor:"runnerId"`
	ShareURL        string  `cbor:"shareUrl"`
	// ViewerCount is kept in a separate counter and filled in on read.
	ViewerCount int64 `cbor:"-"`
	// Token is the per-session capability secret required on relay writes.
	Token string `cbor:"token"`
	// ParentSessionID is set when the session was spawned on behalf of
	// another session.
	ParentSessionID *string `cbor:"parentSessionId"`
}

// Expired reports whether an ephemeral session's expiry is before now.
// Non-ephemeral sessions never expire.
func (s Session) Expired(now time.Time) bool {
	if !s.IsEphemeral || s.ExpiresAt == nil {
		return false
	}
	return *s.ExpiresAt < now.UnixMilli()
}

// Info converts the record to its public wire shape (without the token).
func (s Session) Info() wire.SessionInfo {
	info := wire.SessionInfo{
		SessionID:       s.ID,
		UserID:          s.UserID,
		Cwd:             s.Cwd,
		StartedAt:       s.StartedAt,
		IsEphemeral:     s.IsEphemeral,
		ExpiresAt:       s.ExpiresAt,
		IsActive:        s.IsActive,
		LastHeartbeatAt: s.LastHeartbeatAt,
		SessionName:     s.SessionName,
		RunnerID:        s.RunnerID,
		ShareURL:        s.ShareURL,
		ViewerCount:     s.ViewerCount,
	}
	if s.Model != nil {
		info.Model = &wire.ModelInfo{Provider: s.Model.Provider, ID: s.Model.ID}
	}
	return info
}

// Skill is a runner capability.
type Skill struct {
	Name        string `cbor:"name"`
	Description string `cbor:"description"`
	Locator     string `cbor:"locator"`
}

// Runner is the directory record for a worker daemon. A nil UserID marks a
// shared runner visible to everyone.
type Runner struct {
	ID          string   `cbor:"id"`
	Name        *string  `cbor:"name"`
	Roots       []string `cbor:"roots"`
	Skills      []Skill  `cbor:"skills"`
	UserID      *string  `cbor:"userId"`
	ConnectedAt int64    `cbor:"connectedAt"`
}

// VisibleTo reports whether userID may use the runner.
func (r Runner) VisibleTo(userID string) bool {
	return r.UserID == nil || *r.UserID == userID
}

// RunnerView is a runner joined with its live session count. SessionCount is
// computed at read time and never stored.
type RunnerView struct {
	Runner
	SessionCount int
}

// Info converts the view to its wire shape.
func (v RunnerView) Info() wire.RunnerInfo {
	skills := make([]wire.Skill, 0, len(v.Skills))
	for _, s := range v.Skills {
		skills = append(skills, wire.Skill{Name: s.Name, Description: s.Description, Locator: s.Locator})
	}
	roots := v.Roots
	if roots == nil {
		roots = []string{}
	}
	return wire.RunnerInfo{
		RunnerID:     v.ID,
		Name:         v.Name,
		Roots:        roots,
		Skills:       skills,
		UserID:       v.UserID,
		SessionCount: v.SessionCount,
	}
}

// Terminal is the directory record for a PTY hosted by a runner.
type Terminal struct {
	ID        string `cbor:"id"`
	RunnerID  string `cbor:"runnerId"`
	UserID    string `cbor:"userId"`
	Cwd       string `cbor:"cwd"`
	Cols      int    `cbor:"cols"`
	Rows      int    `cbor:"rows"`
	CreatedAt int64  `cbor:"createdAt"`
}

// Info converts the record to its wire shape.
func (t Terminal) Info() wire.TerminalInfo {
	return wire.TerminalInfo{
		TerminalID: t.ID,
		RunnerID:   t.RunnerID,
		UserID:     t.UserID,
		Cwd:        t.Cwd,
		CreatedAt:  t.CreatedAt,
	}
}

// link is the pending parent/child handshake stored until the child
// registers.
type link struct {
	ParentSessionID string `cbor:"parentSessionId"`
	CreatedAt       int64  `cbor:"createdAt"`
}
