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

// viewedSession loads the viewer's session and checks ownership.
func viewedSession(ctx context.Context, deps Deps, a AuthContext) (directory.Session, error) {
	s, err := deps.Sessions().GetSession(ctx, a.SessionID())
	if err != nil {
		return directory.Session{}, err
	}
	if s.UserID != a.UserID() {
		return directory.Session{}, fmt.Errorf("%w: session belongs to another user", auth.ErrUnauthorized)
	}
	return s, nil
}

func connectedPayload(ctx context.Context, deps Deps, s directory.Session) (wire.ConnectedPayload, error) {
	lastSeq, err := deps.Sessions().CurrentSeq(ctx, s.ID)
	if err != nil {
		return wire.ConnectedPayload{}, err
	}
	snapshot, err := deps.Sessions().GetSnapshot(ctx, s.ID)
	if err != nil {
		return wire.ConnectedPayload{}, err
	}
	return wire.ConnectedPayload{
		SessionID:   s.ID,
		LastSeq:     lastSeq,
		ViewerCount: s.ViewerCount,
		Snapshot:    json.RawMessage(snapshot),
	}, nil
}

func viewerCountNotice(s directory.Session) EmitInstruction {
	return toRoom(RelayRoom(s.ID), "connected", wire.ConnectedPayload{
		SessionID:   s.ID,
		ViewerCount: s.ViewerCount,
	})
}

// ViewerConnect subscribes the caller to a session's event stream.
func ViewerConnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	s, err := viewedSession(ctx, deps, a)
	if err != nil {
		return fatalResult(a, err)
	}
	s.ViewerCount, err = deps.Sessions().AdjustViewers(ctx, s.ID, 1)
	if err != nil {
		return fatalResult(a, err)
	}
	payload, err := connectedPayload(ctx, deps, s)
	if err != nil {
		return fatalResult(a, err)
	}
	logger.Debugf("Viewer %s joined session %s (%d viewers)", a.SocketID(), s.ID, s.ViewerCount)

	return NewEventResult(nil, []EmitInstruction{
		toSocket(a.SocketID(), "connected", payload),
		viewerCountNotice(s),
		hubStatus(s),
	}).withJoin(ViewersRoom(s.ID)).withBinding(Binding{SessionID: s.ID})
}

// ViewerResync resends the current sequence position and snapshot.
func ViewerResync(ctx context.Context, deps Deps, a AuthContext, _ struct{}) EventResult {
	s, err := viewedSession(ctx, deps, a)
	if err != nil {
		return errorResult(a, err)
	}
	payload, err := connectedPayload(ctx, deps, s)
	if err != nil {
		return errorResult(a, err)
	}
	return NewEventResult(nil, []EmitInstruction{toSocket(a.SocketID(), "connected", payload)})
}

// ViewerInput forwards user text to the session's agent.
func ViewerInput(ctx context.Context, deps Deps, a AuthContext, req wire.InputPayload) EventResult {
	if req.Text == "" && len(req.Attachments) == 0 {
		return empty()
	}
	s, err := viewedSession(ctx, deps, a)
	if err != nil {
		return errorResult(a, err)
	}
	return NewEventResult(nil, []EmitInstruction{
		toRoom(RelayRoom(s.ID), "input", wire.InputPayload{
			SessionID:   s.ID,
			Text:        req.Text,
			Attachments: req.Attachments,
		}),
	})
}

// ViewerModelSet asks the agent to switch model.
func ViewerModelSet(ctx context.Context, deps Deps, a AuthContext, req wire.ModelSetPayload) EventResult {
	if req.Provider == "" || req.ModelID == "" {
		return errorResult(a, fmt.Errorf("%w: provider and modelId required", ErrBadRequest))
	}
	s, err := viewedSession(ctx, deps, a)
	if err != nil {
		return errorResult(a, err)
	}
	return NewEventResult(nil, []EmitInstruction{
		toRoom(RelayRoom(s.ID), "model_set", wire.ModelSetPayload{
			SessionID: s.ID,
			Provider:  req.Provider,
			ModelID:   req.ModelID,
		}),
	})
}

// ViewerExec forwards a remote command to the agent and remembers the
// caller so the result can be routed back.
func ViewerExec(ctx context.Context, deps Deps, a AuthContext, req wire.ExecPayload) EventResult {
	if req.ID == "" || req.Command == "" {
		return errorResult(a, fmt.Errorf("%w: id and command required", ErrBadRequest))
	}
	s, err := viewedSession(ctx, deps, a)
	if err != nil {
		return errorResult(a, err)
	}
	deps.Execs().Track(req.ID, a.SocketID())
	return NewEventResult(nil, []EmitInstruction{
		toRoom(RelayRoom(s.ID), "exec", wire.ExecPayload{
			ID:        req.ID,
			SessionID: s.ID,
			Command:   req.Command,
			Args:      req.Args,
		}),
	})
}

// ViewerDisconnect decrements the session's viewer count.
func ViewerDisconnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	if a.SessionID() == "" {
		return empty()
	}
	s, err := deps.Sessions().GetSession(ctx, a.SessionID())
	if errors.Is(err, directory.ErrNotFound) {
		return empty()
	}
	if err == nil {
		s.ViewerCount, err = deps.Sessions().AdjustViewers(ctx, s.ID, -1)
	}
	if err != nil {
		logger.Warnf("Decrement viewers of %s: %v", a.SessionID(), err)
		return empty()
	}
	return NewEventResult(nil, []EmitInstruction{
		viewerCountNotice(s),
		hubStatus(s),
	}).withLeave(ViewersRoom(s.ID))
}
