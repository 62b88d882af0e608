package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

func toSkills(in []wire.Skill) []directory.Skill {
	out := make([]directory.Skill, 0, len(in))
	for _, s := range in {
		out = append(out, directory.Skill{Name: s.Name, Description: s.Description, Locator: s.Locator})
	}
	return out
}

// RunnerRegister records the calling daemon in the directory.
func RunnerRegister(ctx context.Context, deps Deps, a AuthContext, req wire.RegisterRunnerPayload) EventResult {
	runnerID := req.RunnerID
	if runnerID == "" {
		runnerID = deps.NewID()
	}

	existing, err := deps.Runners().GetRunner(ctx, runnerID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
	case err != nil:
		return errorResult(a, err)
	case existing.UserID != nil && *existing.UserID != a.UserID():
		return errorResult(a, fmt.Errorf("%w: runner belongs to another user", auth.ErrUnauthorized))
	}

	r := directory.Runner{
		ID:          runnerID,
		Name:        req.Name,
		Roots:       req.Roots,
		Skills:      toSkills(req.Skills),
		ConnectedAt: deps.Now().UnixMilli(),
	}
	if !req.Public {
		userID := a.UserID()
		r.UserID = &userID
	}
	if _, err := deps.Runners().PutRunner(ctx, r); err != nil {
		return errorResult(a, err)
	}
	logger.Infof("Runner %s registered (user: %s, public: %v)", runnerID, a.UserID(), req.Public)

	registered := wire.RunnerRegisteredPayload{RunnerID: runnerID}
	result := NewEventResult(registered, []EmitInstruction{
		toSocket(a.SocketID(), "runner_registered", registered),
	}).withJoin(RunnerRoom(runnerID)).withBinding(Binding{RunnerID: runnerID})
	if prev := a.RunnerID(); prev != "" && prev != runnerID {
		result = result.withLeave(RunnerRoom(prev))
	}
	return result
}

// RunnerUpdate applies live roots/skills reports.
func RunnerUpdate(ctx context.Context, deps Deps, a AuthContext, req wire.RunnerUpdatePayload) EventResult {
	if a.RunnerID() == "" {
		return errorResult(a, fmt.Errorf("%w: runner not registered", ErrBadRequest))
	}
	if req.Roots == nil && req.Skills == nil {
		return empty()
	}
	_, err := deps.Runners().UpdateRunner(ctx, a.RunnerID(), func(r *directory.Runner) {
		if req.Roots != nil {
			r.Roots = req.Roots
		}
		if req.Skills != nil {
			r.Skills = toSkills(req.Skills)
		}
	})
	if err != nil {
		return errorResult(a, err)
	}
	return empty()
}

// spawnedSession loads a session and checks it was spawned on the calling
// runner.
func spawnedSession(ctx context.Context, deps Deps, a AuthContext, sessionID string) (directory.Session, error) {
	s, err := deps.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		return directory.Session{}, err
	}
	if a.RunnerID() == "" || s.RunnerID == nil || *s.RunnerID != a.RunnerID() {
		return directory.Session{}, fmt.Errorf("%w: session not spawned on this runner", auth.ErrUnauthorized)
	}
	return s, nil
}

// RunnerSessionReady acknowledges a spawn.
func RunnerSessionReady(ctx context.Context, deps Deps, a AuthContext, req wire.SessionReadyPayload) EventResult {
	if req.SessionID == "" {
		return empty()
	}
	if _, err := spawnedSession(ctx, deps, a, req.SessionID); err != nil {
		return errorResult(a, err)
	}
	if !deps.Spawns().ResolveSpawnReady(req.SessionID) {
		logger.Debugf("Runner %s acked %s with no pending spawn", a.RunnerID(), req.SessionID)
	}
	return empty()
}

// RunnerSessionError fails a spawn.
func RunnerSessionError(ctx context.Context, deps Deps, a AuthContext, req wire.SessionErrorPayload) EventResult {
	if req.SessionID == "" {
		return empty()
	}
	if _, err := spawnedSession(ctx, deps, a, req.SessionID); err != nil {
		return errorResult(a, err)
	}
	msg := req.Message
	if msg == "" {
		msg = "session failed to start"
	}
	if !deps.Spawns().ResolveSpawnError(req.SessionID, msg) {
		logger.Debugf("Runner %s failed %s with no pending spawn", a.RunnerID(), req.SessionID)
	}
	return empty()
}

// ownedTerminal loads a terminal and checks it is hosted by the caller.
func ownedTerminal(ctx context.Context, deps Deps, a AuthContext, terminalID string) (directory.Terminal, error) {
	if terminalID == "" {
		return directory.Terminal{}, fmt.Errorf("%w: terminalId required", ErrBadRequest)
	}
	t, err := deps.Runners().GetTerminal(ctx, terminalID)
	if err != nil {
		return directory.Terminal{}, err
	}
	if a.RunnerID() == "" || t.RunnerID != a.RunnerID() {
		return directory.Terminal{}, fmt.Errorf("%w: terminal hosted by another runner", auth.ErrUnauthorized)
	}
	return t, nil
}

// RunnerTerminalReady tells terminal viewers the PTY is running.
func RunnerTerminalReady(ctx context.Context, deps Deps, a AuthContext, req wire.TerminalReadyPayload) EventResult {
	t, err := ownedTerminal(ctx, deps, a, req.TerminalID)
	if err != nil {
		return errorResult(a, err)
	}
	return NewEventResult(nil, []EmitInstruction{toRoom(TerminalRoom(t.ID), "terminal_ready", req)})
}

// RunnerTerminalData forwards PTY output. Ownership was established when the
// runner was asked to open the terminal, so data frames skip the lookup.
func RunnerTerminalData(_ context.Context, _ Deps, a AuthContext, req wire.TerminalDataPayload) EventResult {
	if req.TerminalID == "" || a.RunnerID() == "" {
		return empty()
	}
	return NewEventResult(nil, []EmitInstruction{toRoom(TerminalRoom(req.TerminalID), "terminal_data", req)})
}

// RunnerTerminalExit removes the terminal record and notifies viewers.
func RunnerTerminalExit(ctx context.Context, deps Deps, a AuthContext, req wire.TerminalExitPayload) EventResult {
	t, err := ownedTerminal(ctx, deps, a, req.TerminalID)
	if err != nil {
		return errorResult(a, err)
	}
	if _, err := deps.Runners().DeleteTerminal(ctx, t.ID); err != nil {
		logger.Warnf("Delete terminal %s: %v", t.ID, err)
	}
	return NewEventResult(nil, []EmitInstruction{toRoom(TerminalRoom(t.ID), "terminal_exit", req)})
}

// RunnerTerminalError forwards a PTY failure.
func RunnerTerminalError(ctx context.Context, deps Deps, a AuthContext, req wire.TerminalErrorPayload) EventResult {
	t, err := ownedTerminal(ctx, deps, a, req.TerminalID)
	if err != nil {
		return errorResult(a, err)
	}
	return NewEventResult(nil, []EmitInstruction{toRoom(TerminalRoom(t.ID), "terminal_error", req)})
}

// RunnerDisconnect removes the runner and its terminals, and fails spawns
// still waiting on it.
func RunnerDisconnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	runnerID := a.RunnerID()
	if runnerID == "" {
		return empty()
	}
	if _, err := deps.Runners().DeleteRunner(ctx, runnerID); err != nil {
		logger.Warnf("Delete runner %s: %v", runnerID, err)
	}
	logger.Infof("Runner %s disconnected", runnerID)

	var emits []EmitInstruction
	terminals, err := deps.Runners().ListTerminals(ctx, runnerID)
	if err != nil {
		logger.Warnf("List terminals of runner %s: %v", runnerID, err)
	}
	for _, t := range terminals {
		if _, err := deps.Runners().DeleteTerminal(ctx, t.ID); err != nil {
			logger.Warnf("Delete terminal %s: %v", t.ID, err)
		}
		emits = append(emits, toRoom(TerminalRoom(t.ID), "terminal_exit", wire.TerminalExitPayload{
			TerminalID: t.ID,
			ExitCode:   -1,
		}))
	}

	sessions, err := deps.Sessions().ListSessions(ctx, "")
	if err != nil {
		logger.Warnf("List sessions for runner %s: %v", runnerID, err)
	}
	for _, s := range sessions {
		if s.RunnerID == nil || *s.RunnerID != runnerID || s.LastHeartbeatAt != 0 {
			continue
		}
		deps.Spawns().ResolveSpawnError(s.ID, "runner disconnected")
	}

	return NewEventResult(nil, emits).withLeave(RunnerRoom(runnerID))
}
