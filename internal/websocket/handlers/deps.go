package handlers

import (
	"context"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
)

// SessionDirectory is the subset of session operations used by handlers.
type SessionDirectory interface {
	GetSession(ctx context.Context, id string) (directory.Session, error)
	PutSession(ctx context.Context, s directory.Session) (directory.Session, error)
	UpdateSession(ctx context.Context, id string, fn func(*directory.Session)) (directory.Session, error)
	Touch(ctx context.Context, id string) (directory.Session, error)
	PurgeSession(ctx context.Context, id string) (bool, error)
	ListSessions(ctx context.Context, userID string) ([]directory.Session, error)
	IncrementSeq(ctx context.Context, sessionID string) (int64, error)
	CurrentSeq(ctx context.Context, sessionID string) (int64, error)
	AdjustViewers(ctx context.Context, sessionID string, delta int64) (int64, error)
	PutSnapshot(ctx context.Context, sessionID string, raw []byte) error
	GetSnapshot(ctx context.Context, sessionID string) ([]byte, error)
	PutLink(ctx context.Context, childSessionID, parentSessionID string) error
	TakeLink(ctx context.Context, childSessionID string) (string, bool, error)
}

// RunnerDirectory is the subset of runner and terminal operations used by
// handlers.
type RunnerDirectory interface {
	GetRunner(ctx context.Context, id string) (directory.Runner, error)
	PutRunner(ctx context.Context, r directory.Runner) (directory.Runner, error)
	UpdateRunner(ctx context.Context, id string, fn func(*directory.Runner)) (directory.Runner, error)
	DeleteRunner(ctx context.Context, id string) (bool, error)
	GetTerminal(ctx context.Context, id string) (directory.Terminal, error)
	PutTerminal(ctx context.Context, t directory.Terminal) (directory.Terminal, error)
	DeleteTerminal(ctx context.Context, id string) (bool, error)
	ListTerminals(ctx context.Context, runnerID string) ([]directory.Terminal, error)
}

// SpawnAcks resolves pending spawn waits.
type SpawnAcks interface {
	ResolveSpawnReady(sessionID string) bool
	ResolveSpawnError(sessionID, message string) bool
}

// ExecRouter remembers which viewer socket issued a remote exec so the
// agent's answer can be routed back.
type ExecRouter interface {
	Track(execID, socketID string)
	Take(execID string) (string, bool)
}

// Deps holds the narrow dependencies required by websocket handlers.
type Deps struct {
	sessions  SessionDirectory
	runners   RunnerDirectory
	spawns    SpawnAcks
	execs     ExecRouter
	publicURL string
	now       func() time.Time
	newID     func() string
	newToken  func() string
}

// NewDeps builds a dependency bundle for handler calls.
func NewDeps(
	sessions SessionDirectory,
	runners RunnerDirectory,
	spawns SpawnAcks,
	execs ExecRouter,
	publicURL string,
	now func() time.Time,
	newID func() string,
	newToken func() string,
) Deps {
	return Deps{
		sessions:  sessions,
		runners:   runners,
		spawns:    spawns,
		execs:     execs,
		publicURL: publicURL,
		now:       now,
		newID:     newID,
		newToken:  newToken,
	}
}

func (d Deps) Sessions() SessionDirectory { return d.sessions }
func (d Deps) Runners() RunnerDirectory   { return d.runners }
func (d Deps) Spawns() SpawnAcks          { return d.spawns }
func (d Deps) Execs() ExecRouter          { return d.execs }
func (d Deps) Now() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}
func (d Deps) NewID() string {
	if d.newID != nil {
		return d.newID()
	}
	return ""
}
func (d Deps) NewToken() string {
	if d.newToken != nil {
		return d.newToken()
	}
	return ""
}

// ShareURL returns the browser URL for a session.
func (d Deps) ShareURL(sessionID string) string {
	return d.publicURL + "/session/" + sessionID
}
