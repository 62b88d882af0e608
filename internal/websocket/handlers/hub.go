package handlers

import (
	"context"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

func hubAdded(s directory.Session) EmitInstruction {
	return toRoom(HubRoom(s.UserID), "session_added", wire.SessionAddedPayload{Session: s.Info()})
}

func hubStatus(s directory.Session) EmitInstruction {
	return toRoom(HubRoom(s.UserID), "session_status", wire.SessionStatusPayload{Session: s.Info()})
}

func hubRemoved(userID, sessionID string) EmitInstruction {
	return toRoom(HubRoom(userID), "session_removed", wire.SessionRemovedPayload{SessionID: sessionID})
}

// HubConnect joins the caller to its user's broadcast group and sends the
// full session list.
func HubConnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	sessions, err := deps.Sessions().ListSessions(ctx, a.UserID())
	if err != nil {
		return errorResult(a, err).withJoin(HubRoom(a.UserID()))
	}

	infos := make([]wire.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return NewEventResult(nil, []EmitInstruction{
		toSocket(a.SocketID(), "sessions", wire.SessionsPayload{Sessions: infos}),
	}).withJoin(HubRoom(a.UserID()))
}

// ExpiredNotices are the emissions for a session removed by the pruner.
func ExpiredNotices(s directory.Session) []EmitInstruction {
	return []EmitInstruction{
		hubRemoved(s.UserID, s.ID),
		toRoom(RelayRoom(s.ID), "session_expired", wire.SessionExpiredPayload{SessionID: s.ID}),
		toRoom(ViewersRoom(s.ID), "disconnected", wire.DisconnectedPayload{SessionID: s.ID, Reason: ReasonExpired}),
	}
}
