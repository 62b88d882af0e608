package handlers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

// SpawnPlan is a prepared spawn: the placeholder session is stored and the
// runner command is ready to send.
type SpawnPlan struct {
	Session directory.Session
	Command EmitInstruction
}

// TerminalPlan is a prepared terminal: the record is stored and the runner
// command is ready to send.
type TerminalPlan struct {
	Terminal directory.Terminal
	Command  EmitInstruction
}

// withinRoots reports whether cwd lies under one of the runner's roots. A
// runner that reports no roots accepts any path.
func withinRoots(roots []string, cwd string) bool {
	if len(roots) == 0 {
		return true
	}
	cwd = path.Clean(cwd)
	for _, root := range roots {
		root = path.Clean(root)
		if cwd == root || root == "/" || strings.HasPrefix(cwd, root+"/") {
			return true
		}
	}
	return false
}

// usableRunner loads a runner the user may use for cwd.
func usableRunner(ctx context.Context, deps Deps, userID, runnerID, cwd string) (directory.Runner, error) {
	if cwd == "" {
		return directory.Runner{}, fmt.Errorf("%w: cwd required", ErrBadRequest)
	}
	r, err := deps.Runners().GetRunner(ctx, runnerID)
	if err != nil {
		return directory.Runner{}, err
	}
	if !r.VisibleTo(userID) {
		return directory.Runner{}, fmt.Errorf("%w: runner not available", ErrForbidden)
	}
	if !withinRoots(r.Roots, cwd) {
		return directory.Runner{}, fmt.Errorf("%w: cwd outside runner roots", ErrForbidden)
	}
	return r, nil
}

// PrepareSpawn validates a spawn request and writes the placeholder session
// the new agent will register into.
func PrepareSpawn(ctx context.Context, deps Deps, userID, runnerID string, req wire.SpawnRequest) (SpawnPlan, error) {
	if _, err := usableRunner(ctx, deps, userID, runnerID, req.Cwd); err != nil {
		return SpawnPlan{}, err
	}

	if req.ParentSessionID != "" {
		parent, err := deps.Sessions().GetSession(ctx, req.ParentSessionID)
		if err != nil {
			return SpawnPlan{}, err
		}
		if parent.UserID != userID {
			return SpawnPlan{}, fmt.Errorf("parent session: %w", directory.ErrNotFound)
		}
	}

	sessionID := deps.NewID()
	rid := runnerID
	s := directory.Session{
		ID:          sessionID,
		UserID:      userID,
		Cwd:         req.Cwd,
		StartedAt:   deps.Now().UnixMilli(),
		IsEphemeral: true,
		RunnerID:    &rid,
		ShareURL:    deps.ShareURL(sessionID),
	}
	if req.Model != nil {
		s.Model = &directory.Model{Provider: req.Model.Provider, ID: req.Model.ID}
	}
	if req.ParentSessionID != "" {
		parentID := req.ParentSessionID
		s.ParentSessionID = &parentID
	}

	s, err := deps.Sessions().PutSession(ctx, s)
	if err != nil {
		return SpawnPlan{}, err
	}
	if s.ParentSessionID != nil {
		if err := deps.Sessions().PutLink(ctx, sessionID, *s.ParentSessionID); err != nil {
			return SpawnPlan{}, err
		}
	}

	return SpawnPlan{
		Session: s,
		Command: toRoom(RunnerRoom(runnerID), "new_session", wire.NewSessionPayload{
			SessionID: sessionID,
			Cwd:       req.Cwd,
			Prompt:    req.Prompt,
			Model:     req.Model,
		}),
	}, nil
}

// AbandonSpawn removes a placeholder session whose agent never registered.
// It reports whether anything was removed.
func AbandonSpawn(ctx context.Context, deps Deps, sessionID string) bool {
	s, err := deps.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			logger.Warnf("Load abandoned spawn %s: %v", sessionID, err)
		}
		return false
	}
	if s.LastHeartbeatAt != 0 {
		return false
	}
	removed, err := deps.Sessions().PurgeSession(ctx, sessionID)
	if err != nil {
		logger.Warnf("Remove abandoned spawn %s: %v", sessionID, err)
		return false
	}
	return removed
}

// PrepareTerminal validates a terminal request and stores its record.
func PrepareTerminal(ctx context.Context, deps Deps, userID, runnerID string, req wire.CreateTerminalRequest) (TerminalPlan, error) {
	if _, err := usableRunner(ctx, deps, userID, runnerID, req.Cwd); err != nil {
		return TerminalPlan{}, err
	}
	cols, rows := req.Cols, req.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	t, err := deps.Runners().PutTerminal(ctx, directory.Terminal{
		ID:       deps.NewID(),
		RunnerID: runnerID,
		UserID:   userID,
		Cwd:      req.Cwd,
		Cols:     cols,
		Rows:     rows,
	})
	if err != nil {
		return TerminalPlan{}, err
	}
	return TerminalPlan{
		Terminal: t,
		Command: toRoom(RunnerRoom(runnerID), "new_terminal", wire.NewTerminalPayload{
			TerminalID: t.ID,
			Cwd:        t.Cwd,
			Cols:       cols,
			Rows:       rows,
		}),
	}, nil
}

// EndSession deletes a session on the owner's request and returns the
// notices to deliver.
func EndSession(ctx context.Context, deps Deps, userID, sessionID string) ([]EmitInstruction, error) {
	s, err := deps.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, directory.ErrNotFound
	}
	existed, err := deps.Sessions().PurgeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, directory.ErrNotFound
	}
	logger.Infof("Session %s ended by user %s", sessionID, userID)
	return []EmitInstruction{
		hubRemoved(userID, sessionID),
		toRoom(RelayRoom(sessionID), "session_end", wire.SessionEndPayload{SessionID: sessionID}),
		toRoom(ViewersRoom(sessionID), "disconnected", wire.DisconnectedPayload{SessionID: sessionID, Reason: ReasonEnded}),
	}, nil
}
