package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

// Disconnect reasons sent to viewers.
const (
	ReasonAgentDisconnected = "agent_disconnected"
	ReasonEnded             = "session_ended"
	ReasonExpired           = "expired"
)

// authorizeRelay loads a session and checks that the caller owns it and
// presented its capability token.
func authorizeRelay(ctx context.Context, deps Deps, a AuthContext, sessionID, token string) (directory.Session, error) {
	if sessionID == "" {
		return directory.Session{}, fmt.Errorf("%w: session id required", ErrBadRequest)
	}
	s, err := deps.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		return directory.Session{}, err
	}
	if s.UserID != a.UserID() {
		return directory.Session{}, fmt.Errorf("%w: session belongs to another user", auth.ErrUnauthorized)
	}
	if err := auth.CheckSessionToken(s.Token, token); err != nil {
		return directory.Session{}, err
	}
	return s, nil
}

func orSession(id string, a AuthContext) string {
	if id != "" {
		return id
	}
	return a.SessionID()
}

func childReadyMessage(childSessionID string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"type":      "child_session_ready",
		"sessionId": childSessionID,
	})
	return raw
}

// RelayRegister creates or reuses a session record for the calling agent and
// issues a fresh capability token.
func RelayRegister(ctx context.Context, deps Deps, a AuthContext, req wire.RegisterPayload) EventResult {
	now := deps.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = deps.NewID()
	}

	s, err := deps.Sessions().GetSession(ctx, sessionID)
	isNew := false
	switch {
	case errors.Is(err, directory.ErrNotFound):
		isNew = true
		s = directory.Session{ID: sessionID, UserID: a.UserID(), StartedAt: now.UnixMilli()}
	case err != nil:
		return errorResult(a, err)
	case s.UserID != a.UserID():
		return errorResult(a, fmt.Errorf("%w: session belongs to another user", auth.ErrUnauthorized))
	}
	// A spawned placeholder has never heard from its agent.
	announce := isNew || s.LastHeartbeatAt == 0

	if req.Cwd != "" {
		s.Cwd = req.Cwd
	}
	s.IsEphemeral = req.Ephemeral
	s.ExpiresAt = nil
	s.IsActive = true
	s.LastHeartbeatAt = now.UnixMilli()
	if req.SessionName != nil {
		s.SessionName = req.SessionName
	}
	if req.Model != nil {
		s.Model = &directory.Model{Provider: req.Model.Provider, ID: req.Model.ID}
	}
	if req.RunnerID != "" {
		runnerID := req.RunnerID
		s.RunnerID = &runnerID
	}
	if req.ParentSessionID != "" {
		parentID := req.ParentSessionID
		s.ParentSessionID = &parentID
	}
	s.ShareURL = deps.ShareURL(sessionID)
	s.Token = deps.NewToken()

	s, err = deps.Sessions().PutSession(ctx, s)
	if err != nil {
		return errorResult(a, err)
	}
	logger.Infof("Session %s registered (user: %s, ephemeral: %v)", sessionID, a.UserID(), s.IsEphemeral)

	registered := wire.RegisteredPayload{SessionID: sessionID, Token: s.Token, ShareURL: s.ShareURL}
	emits := []EmitInstruction{toSocket(a.SocketID(), "registered", registered)}
	if announce {
		emits = append(emits, hubAdded(s))
	} else {
		emits = append(emits, hubStatus(s))
	}

	if deps.Spawns() != nil && deps.Spawns().ResolveSpawnReady(sessionID) {
		logger.Debugf("Spawn of %s acknowledged by register", sessionID)
	}

	parentID, ok, err := deps.Sessions().TakeLink(ctx, sessionID)
	if err != nil {
		logger.Warnf("Take pending link for %s: %v", sessionID, err)
	} else if ok {
		emits = append(emits, toRoom(RelayRoom(parentID), "session_message", wire.SessionMessagePayload{
			FromSessionID: sessionID,
			Message:       childReadyMessage(sessionID),
		}))
	}

	result := NewEventResult(registered, emits).
		withJoin(RelayRoom(sessionID)).
		withBinding(Binding{SessionID: sessionID})
	if prev := a.SessionID(); prev != "" && prev != sessionID {
		result = result.withLeave(RelayRoom(prev))
	}
	return result
}

// RelayEvent sequences one agent event and fans it out to the session's
// viewers. Callers must serialize invocations per session.
func RelayEvent(ctx context.Context, deps Deps, a AuthContext, req wire.RelayEventPayload) EventResult {
	if len(req.Event) == 0 {
		return empty()
	}
	var header wire.RelayEventHeader
	if err := json.Unmarshal(req.Event, &header); err != nil {
		return empty()
	}

	s, err := authorizeRelay(ctx, deps, a, orSession(req.SessionID, a), req.Token)
	if err != nil {
		return errorResult(a, err)
	}

	seq, err := deps.Sessions().IncrementSeq(ctx, s.ID)
	if err != nil {
		return errorResult(a, err)
	}

	var emits []EmitInstruction
	switch header.Type {
	case wire.EventTypeHeartbeat:
		updated, changed, err := applyHeartbeat(ctx, deps, s, header)
		if err != nil {
			logger.Warnf("Heartbeat for %s: %v", s.ID, err)
		} else if changed {
			emits = append(emits, hubStatus(updated))
		}
	case wire.EventTypeSessionActive:
		if err := deps.Sessions().PutSnapshot(ctx, s.ID, req.Event); err != nil {
			logger.Warnf("Store snapshot for %s: %v", s.ID, err)
		}
	}

	ack := wire.EventAckPayload{SessionID: s.ID, Seq: seq}
	emits = append(emits,
		toRoom(ViewersRoom(s.ID), "event", wire.ViewerEventPayload{SessionID: s.ID, Seq: seq, Event: req.Event}),
		toSocket(a.SocketID(), "event_ack", ack),
	)
	return NewEventResult(nil, emits)
}

// applyHeartbeat refreshes liveness and applies metadata carried by a
// heartbeat. It reports whether hub subscribers should be told.
func applyHeartbeat(ctx context.Context, deps Deps, s directory.Session, h wire.RelayEventHeader) (directory.Session, bool, error) {
	wasActive := s.IsActive
	touched, err := deps.Sessions().Touch(ctx, s.ID)
	if err != nil {
		return s, false, err
	}

	nameChanged := h.SessionName != nil && !equalStringPtr(touched.SessionName, h.SessionName)
	modelChanged := h.Model != nil && (touched.Model == nil ||
		touched.Model.Provider != h.Model.Provider || touched.Model.ID != h.Model.ID)
	if !nameChanged && !modelChanged {
		return touched, !wasActive, nil
	}

	updated, err := deps.Sessions().UpdateSession(ctx, s.ID, func(rec *directory.Session) {
		if nameChanged {
			rec.SessionName = h.SessionName
		}
		if modelChanged {
			rec.Model = &directory.Model{Provider: h.Model.Provider, ID: h.Model.ID}
		}
	})
	if err != nil {
		return touched, !wasActive, err
	}
	return updated, true, nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RelaySessionEnd deletes the caller's session.
func RelaySessionEnd(ctx context.Context, deps Deps, a AuthContext, req wire.SessionEndPayload) EventResult {
	s, err := authorizeRelay(ctx, deps, a, orSession(req.SessionID, a), req.Token)
	if err != nil {
		return errorResult(a, err)
	}
	existed, err := deps.Sessions().PurgeSession(ctx, s.ID)
	if err != nil {
		return errorResult(a, err)
	}
	logger.Infof("Session %s ended by agent", s.ID)

	var emits []EmitInstruction
	if existed {
		emits = append(emits, hubRemoved(s.UserID, s.ID))
	}
	emits = append(emits, toRoom(ViewersRoom(s.ID), "disconnected", wire.DisconnectedPayload{
		SessionID: s.ID,
		Reason:    ReasonEnded,
	}))
	return NewEventResult(nil, emits).withLeave(RelayRoom(s.ID))
}

// RelayExecResult routes an agent's exec answer back to the viewer that
// issued the request. Unknown or already answered ids are ignored.
func RelayExecResult(ctx context.Context, deps Deps, a AuthContext, req wire.ExecResultPayload) EventResult {
	if req.ID == "" {
		return empty()
	}
	s, err := authorizeRelay(ctx, deps, a, orSession(req.SessionID, a), req.Token)
	if err != nil {
		return errorResult(a, err)
	}
	socketID, ok := deps.Execs().Take(req.ID)
	if !ok {
		logger.Debugf("Exec result %s has no waiting viewer", req.ID)
		return empty()
	}
	req.SessionID = s.ID
	req.Token = ""
	return NewEventResult(nil, []EmitInstruction{toSocket(socketID, "exec_result", req)})
}

// RelaySessionMessage delivers a message to another live session owned by
// the same user.
func RelaySessionMessage(ctx context.Context, deps Deps, a AuthContext, req wire.SessionMessagePayload) EventResult {
	s, err := authorizeRelay(ctx, deps, a, orSession(req.SessionID, a), req.Token)
	if err != nil {
		return errorResult(a, err)
	}
	if req.TargetSessionID == "" {
		return errorResult(a, fmt.Errorf("%w: targetSessionId required", ErrBadRequest))
	}

	undeliverable := func(msg string) EventResult {
		return NewEventResult(nil, []EmitInstruction{
			toSocket(a.SocketID(), "session_message_error", wire.SessionMessageErrorPayload{
				TargetSessionID: req.TargetSessionID,
				Error:           msg,
			}),
		})
	}

	target, err := deps.Sessions().GetSession(ctx, req.TargetSessionID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return undeliverable("target session not found")
	case err != nil:
		return errorResult(a, err)
	case target.UserID != s.UserID:
		return undeliverable("target session not found")
	case !target.IsActive:
		return undeliverable("target session is not connected")
	}

	return NewEventResult(nil, []EmitInstruction{
		toRoom(RelayRoom(target.ID), "session_message", wire.SessionMessagePayload{
			FromSessionID: s.ID,
			Message:       req.Message,
		}),
	})
}

// RelayDisconnect marks the caller's session inactive. The record is kept;
// removal is explicit or left to the pruner. Sessions of other users are
// never touched.
func RelayDisconnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	sessionID := a.SessionID()
	if sessionID == "" {
		return empty()
	}
	s, err := deps.Sessions().GetSession(ctx, sessionID)
	if errors.Is(err, directory.ErrNotFound) {
		return empty()
	}
	if err == nil && s.UserID != a.UserID() {
		logger.Warnf("Relay socket %s of %s bound to foreign session %s", a.SocketID(), a.UserID(), sessionID)
		return empty()
	}
	if err == nil {
		s, err = deps.Sessions().UpdateSession(ctx, sessionID, func(rec *directory.Session) {
			rec.IsActive = false
		})
	}
	if errors.Is(err, directory.ErrNotFound) {
		return empty()
	}
	if err != nil {
		logger.Warnf("Mark session %s inactive: %v", sessionID, err)
		return empty()
	}
	return NewEventResult(nil, []EmitInstruction{
		hubStatus(s),
		toRoom(ViewersRoom(sessionID), "disconnected", wire.DisconnectedPayload{
			SessionID: sessionID,
			Reason:    ReasonAgentDisconnected,
		}),
	}).withLeave(RelayRoom(sessionID))
}
